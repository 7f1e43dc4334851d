package cli

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/cellmorph/cellmorph/pkg/pipeline"
)

// defaultPreviewWidth is the fallback frame width in terminal columns before
// the first WindowSizeMsg arrives.
const defaultPreviewWidth = 48

// previewCommand plays the animation in the terminal instead of encoding it.
func (c *CLI) previewCommand() *cobra.Command {
	var (
		presetName string
		presetFile string
		noCache    bool
	)
	opts := pipeline.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Play the morph animation in the terminal",
		Long: `Play the morph animation in the terminal.

Frames are drawn with half-block characters, two pixel rows per text row,
at the configured frame rate. Press q to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := finishMorphOptions(cmd, &opts, presetName, presetFile); err != nil {
				return err
			}
			return c.runPreview(cmd.Context(), opts, noCache)
		},
	}

	morphFlags(cmd, &opts, &presetName, &presetFile)
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the assignment cache")

	return cmd
}

func (c *CLI) runPreview(ctx context.Context, opts pipeline.Options, noCache bool) error {
	opts.Logger = loggerFromContext(ctx)
	runner, store, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer store.Close()

	spinner := newSpinnerWithContext(ctx, "Computing assignment...")
	spinner.Start()
	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Morph failed")
		return err
	}
	spinner.Stop()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream := result.Renderer.Stream(streamCtx)

	model := newPreviewModel(stream.Frames(), stream.Len(), opts.FPS)
	p := tea.NewProgram(model, tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return err
	}
	cancel()
	// Unblock the producer if playback stopped early.
	for range stream.Frames() {
	}

	if m, ok := final.(previewModel); ok && m.played > 0 {
		printSuccess("Played %d of %d frames", m.played, stream.Len())
	}
	return nil
}

// =============================================================================
// PreviewModel - terminal frame playback
// =============================================================================

type frameMsg struct {
	img *image.NRGBA
}

type nextMsg struct{}

type streamDoneMsg struct{}

// previewModel is the bubbletea model that paces the frame stream.
type previewModel struct {
	frames <-chan *image.NRGBA
	total  int
	fps    int
	width  int

	view   string
	played int
	done   bool
}

func newPreviewModel(frames <-chan *image.NRGBA, total, fps int) previewModel {
	return previewModel{
		frames: frames,
		total:  total,
		fps:    fps,
		width:  defaultPreviewWidth,
	}
}

func (m previewModel) Init() tea.Cmd {
	return waitForFrame(m.frames)
}

// waitForFrame blocks on the stream and hands the next frame to Update.
func waitForFrame(frames <-chan *image.NRGBA) tea.Cmd {
	return func() tea.Msg {
		img, ok := <-frames
		if !ok {
			return streamDoneMsg{}
		}
		return frameMsg{img: img}
	}
}

func (m previewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		width := msg.Width
		if width > 2 {
			width -= 2
		}
		if width > 0 {
			m.width = width
		}
	case frameMsg:
		m.view = renderHalfBlocks(msg.img, m.width)
		m.played++
		interval := time.Second / time.Duration(m.fps)
		return m, tea.Tick(interval, func(time.Time) tea.Msg { return nextMsg{} })
	case nextMsg:
		return m, waitForFrame(m.frames)
	case streamDoneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m previewModel) View() string {
	var b strings.Builder
	b.WriteString(m.view)
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("frame %d/%d · q to quit", m.played, m.total)))
	b.WriteString("\n")
	return b.String()
}

// renderHalfBlocks draws the frame with ▀ characters, packing two pixel rows
// into each text row: the top pixel colors the foreground, the bottom pixel
// the background.
func renderHalfBlocks(img *image.NRGBA, width int) string {
	small := imaging.Resize(img, width, width, imaging.Box)
	bounds := small.Bounds()

	var b strings.Builder
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 2 {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			top := small.NRGBAAt(x, y)
			bottom := top
			if y+1 < bounds.Max.Y {
				bottom = small.NRGBAAt(x, y+1)
			}
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", top.R, top.G, top.B))).
				Background(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", bottom.R, bottom.G, bottom.B)))
			b.WriteString(style.Render("▀"))
		}
		b.WriteString("\n")
	}
	return b.String()
}
