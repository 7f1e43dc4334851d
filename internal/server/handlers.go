package server

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cellmorph/cellmorph/pkg/encode"
	"github.com/cellmorph/cellmorph/pkg/errors"
	"github.com/cellmorph/cellmorph/pkg/pipeline"
	"github.com/cellmorph/cellmorph/pkg/preset"
)

// allowedExts are the accepted upload extensions.
var allowedExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"presets": preset.Names(s.presets)})
}

// handleGenerate runs the full pipeline for an uploaded image and responds
// with the download URL of the rendered GIF.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUpload)
	if err := r.ParseMultipartForm(s.cfg.MaxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "upload too large or malformed")
		return
	}

	id := uuid.New().String()

	srcPath, err := s.saveUpload(r, "source", id+"_source")
	if err != nil {
		s.writeCodeError(w, err)
		return
	}
	defer os.Remove(srcPath)

	var tgtPath string
	if len(r.MultipartForm.File["target"]) > 0 {
		tgtPath, err = s.saveUpload(r, "target", id+"_target")
		if err != nil {
			s.writeCodeError(w, err)
			return
		}
		defer os.Remove(tgtPath)
	} else {
		// No target uploaded; fall back to the configured one.
		tgtPath = s.cfg.TargetPath
		if _, err := os.Stat(tgtPath); err != nil {
			s.logger.Error("configured target image missing", "path", tgtPath)
			writeError(w, http.StatusInternalServerError, "no target image available")
			return
		}
	}

	opts, err := s.requestOptions(r, srcPath, tgtPath)
	if err != nil {
		s.writeCodeError(w, err)
		return
	}

	result, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		s.writeCodeError(w, err)
		return
	}

	outName := id + ".gif"
	outPath := filepath.Join(s.cfg.OutputDir, outName)
	stream := result.Renderer.Stream(r.Context())
	if err := encode.Write(r.Context(), outPath, stream, opts.FPS); err != nil {
		s.writeCodeError(w, err)
		return
	}

	s.logger.Info("morph generated",
		"id", id,
		"cells", result.Stats.CellCount,
		"frames", result.Stats.FrameCount,
		"algorithm", result.Stats.Algorithm,
		"cache_hit", result.CacheInfo.AssignHit)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"video_url": "/download/" + outName,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	path := filepath.Join(s.cfg.OutputDir, name)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	http.ServeFile(w, r, path)
}

// saveUpload stores the named multipart file under the upload dir, keeping
// its extension. A missing or empty file is INVALID_INPUT.
func (s *Server) saveUpload(r *http.Request, field, base string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", errors.New(errors.ErrCodeInvalidInput, "missing %s image", field)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExts[ext] {
		return "", errors.New(errors.ErrCodeInvalidInput,
			"invalid %s file type %q (allowed: png, jpg, jpeg, gif)", field, ext)
	}
	path := filepath.Join(s.cfg.UploadDir, base+ext)
	if err := writeMultipartFile(path, file); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "could not store %s upload", field)
	}
	return path, nil
}

func writeMultipartFile(path string, src multipart.File) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}

// requestOptions builds pipeline options from the form fields. A preset
// (other than "custom") fixes the visual parameters; custom requests may set
// them individually. Timing fields can always be overridden.
func (s *Server) requestOptions(r *http.Request, srcPath, tgtPath string) (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	opts.Source = srcPath
	opts.Target = tgtPath
	opts.OptimalFallback = true
	opts.Seed = time.Now().UnixNano()

	presetName := r.FormValue("preset")
	if presetName != "" && presetName != "custom" {
		p, err := preset.Lookup(s.presets, presetName)
		if err != nil {
			return opts, err
		}
		p.Apply(&opts)
	} else {
		if err := formInt(r, "resolution", &opts.Resolution); err != nil {
			return opts, err
		}
		if v := r.FormValue("algorithm"); v != "" {
			opts.Algorithm = v
		}
		if v := r.FormValue("shape"); v != "" {
			opts.Shape = v
		}
		if err := formFloat(r, "particle_scale", &opts.ParticleScale); err != nil {
			return opts, err
		}
		if err := formFloat(r, "color_mix", &opts.ColorMix); err != nil {
			return opts, err
		}
		if err := formFloat(r, "jitter", &opts.Jitter); err != nil {
			return opts, err
		}
		if err := formFloat(r, "proximity_importance", &opts.Proximity); err != nil {
			return opts, err
		}
	}

	if err := formFloat(r, "duration", &opts.Duration); err != nil {
		return opts, err
	}
	if err := formInt(r, "fps", &opts.FPS); err != nil {
		return opts, err
	}
	if err := formFloat(r, "hold_start", &opts.HoldStart); err != nil {
		return opts, err
	}
	if err := formFloat(r, "hold_end", &opts.HoldEnd); err != nil {
		return opts, err
	}
	if err := formInt(r, "output_size", &opts.OutputSize); err != nil {
		return opts, err
	}
	if err := formInt64(r, "seed", &opts.Seed); err != nil {
		return opts, err
	}
	return opts, nil
}

func formFloat(r *http.Request, name string, dst *float64) error {
	v := r.FormValue(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return errors.New(errors.ErrCodeInvalidArgument, "invalid %s: %q", name, v)
	}
	*dst = f
	return nil
}

func formInt(r *http.Request, name string, dst *int) error {
	v := r.FormValue(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return errors.New(errors.ErrCodeInvalidArgument, "invalid %s: %q", name, v)
	}
	*dst = n
	return nil
}

func formInt64(r *http.Request, name string, dst *int64) error {
	v := r.FormValue(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return errors.New(errors.ErrCodeInvalidArgument, "invalid %s: %q", name, v)
	}
	*dst = n
	return nil
}

// writeCodeError maps structured error codes to HTTP status codes.
func (s *Server) writeCodeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidArgument, errors.ErrCodeInvalidPreset:
		status = http.StatusBadRequest
	case errors.ErrCodeFileNotFound, errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeResourceExhausted:
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeError(w, status, errors.UserMessage(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
