package anim

import (
	"context"
	"image"

	"github.com/cellmorph/cellmorph/pkg/errors"
)

// Stream is a finite, single-pass, non-restartable frame sequence. The
// length is known up front so a downstream writer can begin consuming before
// the full sequence is rendered. It is intended for exactly one consumer.
type Stream struct {
	frames chan *image.NRGBA
	total  int
	err    error // set before frames is closed
}

// Len returns the total number of frames the stream will deliver.
func (s *Stream) Len() int { return s.total }

// Frames returns the ordered frame channel. The channel is closed after the
// last frame, or early on cancellation; check Err afterwards.
func (s *Stream) Frames() <-chan *image.NRGBA { return s.frames }

// Err reports why the stream terminated early. It is valid only after the
// Frames channel has been closed.
func (s *Stream) Err() error { return s.err }

// Stream starts rendering and returns the ordered frame stream. Frames are
// rendered by Workers goroutines concurrently but delivered in strict time
// order: hold-start copies of the t=0 frame, animated frames 0..F-1, then
// hold-end copies of the t=1 frame. Hold frames reuse the boundary renders;
// frames are never mutated after creation, so repeated delivery is safe.
//
// Canceling ctx stops rendering and closes the channel early.
func (r *Renderer) Stream(ctx context.Context) *Stream {
	s := &Stream{
		frames: make(chan *image.NRGBA),
		total:  r.TotalFrames(),
	}
	go r.produce(ctx, s)
	return s
}

// frameJob is one unique render. Jobs are ordered exactly as the consumer
// first needs their results, which lets a small semaphore bound the number
// of undelivered frames held in memory.
type frameJob struct {
	t float64
}

func (r *Renderer) produce(ctx context.Context, s *Stream) {
	defer close(s.frames)

	// Unique renders: the F animated frames, preceded by a dedicated t=0
	// render only when a single animated frame (which sits at t=1) cannot
	// serve as the hold-start image.
	var jobs []frameJob
	if r.holdStart > 0 && r.animated == 1 {
		jobs = append(jobs, frameJob{t: 0})
	}
	firstAnimated := len(jobs)
	for f := 0; f < r.animated; f++ {
		jobs = append(jobs, frameJob{t: r.timeAt(f)})
	}

	results := make([]*image.NRGBA, len(jobs))
	done := make([]chan struct{}, len(jobs))
	for i := range done {
		done[i] = make(chan struct{})
	}

	// Admission control: at most Workers+1 rendered-but-undelivered frames.
	sem := make(chan struct{}, r.opts.Workers+1)
	idx := make(chan int)
	go func() {
		defer close(idx)
		for i := range jobs {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			select {
			case idx <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	for w := 0; w < r.opts.Workers; w++ {
		go func() {
			for i := range idx {
				results[i] = r.RenderAt(jobs[i].t)
				close(done[i])
			}
		}()
	}

	wait := func(i int) (*image.NRGBA, bool) {
		select {
		case <-done[i]:
			return results[i], true
		case <-ctx.Done():
			s.err = errors.Wrap(errors.ErrCodeCanceled, ctx.Err(), "frame stream canceled")
			return nil, false
		}
	}
	emit := func(img *image.NRGBA) bool {
		select {
		case s.frames <- img:
			return true
		case <-ctx.Done():
			s.err = errors.Wrap(errors.ErrCodeCanceled, ctx.Err(), "frame stream canceled")
			return false
		}
	}

	if r.holdStart > 0 {
		first, ok := wait(0)
		if !ok {
			return
		}
		for k := 0; k < r.holdStart; k++ {
			if !emit(first) {
				return
			}
		}
	}

	var last *image.NRGBA
	for f := 0; f < r.animated; f++ {
		img, ok := wait(firstAnimated + f)
		if !ok {
			return
		}
		if !emit(img) {
			return
		}
		last = img
		results[firstAnimated+f] = nil // release all but the boundary refs
		<-sem
	}

	for k := 0; k < r.holdEnd; k++ {
		if !emit(last) {
			return
		}
	}
}
