package discovery

import (
	"context"

	"github.com/google/uuid"

	"github.com/scottpeterman/netdisco/pkg/progress"
)

// Run is a discovery executing in the background.
type Run struct {
	ID string

	events chan progress.Event
	done   chan struct{}
	cancel context.CancelFunc

	result *Result
	err    error
}

// Start validates req and launches the run. Validation errors are
// returned here and nothing is scanned.
//
// Events must be drained: the run blocks while the event buffer is
// full, until ctx is cancelled or Cancel is called.
func (e *Engine) Start(ctx context.Context, req Request) (*Run, error) {
	p, err := req.validate()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &Run{
		ID:     uuid.NewString(),
		events: make(chan progress.Event, progress.DefaultBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer cancel()
		res, err := e.run(ctx, r.ID, p, progress.NewReporter(r.events, r.ID))
		r.result, r.err = res, err
		close(r.events)
		close(r.done)
	}()
	return r, nil
}

// Events streams progress. The channel is closed when the run ends.
func (r *Run) Events() <-chan progress.Event {
	return r.events
}

// Cancel aborts the run. In-flight agent calls see a cancelled context.
func (r *Run) Cancel() {
	r.cancel()
}

// Wait blocks until the run ends and returns its result. The result is
// non-nil whenever the run got past validation.
func (r *Run) Wait() (*Result, error) {
	<-r.done
	return r.result, r.err
}
