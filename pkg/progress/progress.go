// Package progress carries discovery progress as a bounded stream of
// events instead of a synchronous callback.
package progress

import (
	"context"
	"time"
)

// DefaultBuffer is the channel capacity used by discovery runs.
const DefaultBuffer = 64

// Stage names a phase of a run.
type Stage string

const (
	StagePlan  Stage = "plan"
	StageHosts Stage = "hosts"
	StageVlans Stage = "vlans"
	StageMacs  Stage = "macs"
	StageDone  Stage = "done"
)

// Event is one progress report. Percent is relative to the whole run.
type Event struct {
	RunID   string    `json:"run_id,omitempty"`
	Stage   Stage     `json:"stage"`
	Message string    `json:"message"`
	Percent int       `json:"percent"`
	Time    time.Time `json:"time"`
}

// Reporter publishes events into a channel, mapping a stage-local
// 0..100 percentage onto the [lo, hi] slice of the run. A nil Reporter
// discards everything.
type Reporter struct {
	ch     chan<- Event
	runID  string
	stage  Stage
	lo, hi int
}

// NewReporter creates a reporter covering the full 0..100 range.
func NewReporter(ch chan<- Event, runID string) *Reporter {
	return &Reporter{ch: ch, runID: runID, lo: 0, hi: 100}
}

// Stage returns a reporter for a sub-range of r.
func (r *Reporter) Stage(stage Stage, lo, hi int) *Reporter {
	if r == nil {
		return nil
	}
	span := r.hi - r.lo
	return &Reporter{
		ch:    r.ch,
		runID: r.runID,
		stage: stage,
		lo:    r.lo + span*lo/100,
		hi:    r.lo + span*hi/100,
	}
}

// Report sends msg at the stage-local percent pct. It blocks while the
// channel is full and gives up when ctx is done.
func (r *Reporter) Report(ctx context.Context, msg string, pct int) {
	if r == nil || r.ch == nil {
		return
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	ev := Event{
		RunID:   r.runID,
		Stage:   r.stage,
		Message: msg,
		Percent: r.lo + (r.hi-r.lo)*pct/100,
		Time:    time.Now(),
	}
	select {
	case r.ch <- ev:
	case <-ctx.Done():
	}
}

// Linear is the stage-local percent after done of total units.
func Linear(done, total int) int {
	if total <= 0 {
		return 100
	}
	return done * 100 / total
}
