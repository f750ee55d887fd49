// Package ticker provides a pause/resume-able ticker whose rate can be
// switched between a relaxed and an intense cadence. No other package in
// this module imports it.
package ticker

import "time"

// Ticker is the interface IntensityTicker satisfies; this package ships no
// mock implementation of it.
type Ticker interface {
	// Ticks returns the channel on which ticks are delivered.
	Ticks() <-chan time.Time

	// Resume starts the ticker, if not already running.
	Resume()

	// Pause stops the ticker from delivering further ticks.
	Pause()

	// Stop releases the underlying timer. The ticker must not be used
	// afterwards.
	Stop()
}

// IntensityTicker delivers ticks at one of two rates: a relaxed interval
// used during normal operation, and an intense interval switched to once a
// watched timelock draws near.
type IntensityTicker struct {
	relaxed time.Duration
	intense time.Duration

	ticker *time.Ticker
	ch     chan time.Time
	quit   chan struct{}
}

// New returns an IntensityTicker that is not yet running.
func New(relaxed, intense time.Duration) *IntensityTicker {
	return &IntensityTicker{
		relaxed: relaxed,
		intense: intense,
		ch:      make(chan time.Time),
		quit:    make(chan struct{}),
	}
}

func (t *IntensityTicker) Ticks() <-chan time.Time { return t.ch }

func (t *IntensityTicker) Resume() {
	t.start(t.relaxed)
}

// SwitchToIntense restarts the ticker at the intense rate. Idempotent if
// already running at that rate.
func (t *IntensityTicker) SwitchToIntense() {
	t.start(t.intense)
}

func (t *IntensityTicker) start(interval time.Duration) {
	t.Pause()
	t.ticker = time.NewTicker(interval)

	go func(src *time.Ticker) {
		for {
			select {
			case tm := <-src.C:
				select {
				case t.ch <- tm:
				case <-t.quit:
					return
				}
			case <-t.quit:
				return
			}
		}
	}(t.ticker)
}

func (t *IntensityTicker) Pause() {
	if t.ticker != nil {
		t.ticker.Stop()
		t.ticker = nil
	}
}

func (t *IntensityTicker) Stop() {
	t.Pause()
	close(t.quit)
}
