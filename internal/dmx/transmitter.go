// Package dmx owns the device channel buffer and the protocol-rate
// transmission to the rig.
package dmx

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/IronBasement/drum-lights/internal/logger"
)

// ErrSendTimeout reports a frame send that outlived its deadline.
var ErrSendTimeout = errors.New("dmx: send timed out")

// Transmitter pairs the universe buffer with a Sender and emits one
// frame per protocol tick. The buffer is the only hand-off point
// between the animation loop (sole writer) and the transmission loop
// (sole reader); both sides copy the whole universe under the lock, so
// a frame always reflects exactly one animation tick. The lock is never
// held across I/O.
type Transmitter struct {
	log    logger.Logger
	sender Sender
	period time.Duration

	mu       sync.Mutex
	universe Universe

	done chan struct{}
}

// NewTransmitter wires a sender to a fresh all-zero universe.
func NewTransmitter(log logger.Logger, sender Sender, period time.Duration) *Transmitter {
	return &Transmitter{
		log:    log,
		sender: sender,
		period: period,
	}
}

// SetUniverse replaces the buffer contents in one atomic copy.
func (t *Transmitter) SetUniverse(u Universe) {
	t.mu.Lock()
	t.universe = u
	t.mu.Unlock()
}

// Snapshot returns a copy of the buffer as it would next go on the wire.
func (t *Transmitter) Snapshot() Universe {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.universe
}

// Start opens the link in the background and begins the transmission
// schedule. Frames are skipped silently until the link is up; a failed
// open leaves the schedule running as a no-op.
func (t *Transmitter) Start(ctx context.Context) {
	go func() {
		if err := t.sender.Connect(); err != nil {
			t.log.With(logger.Fields{"module": "dmx"}).Errorf("output connect failed, frames will be dropped: %v", err)
		}
	}()
	t.done = make(chan struct{})
	go t.run(ctx)
}

// Join waits for the transmission loop to exit after its context was
// cancelled, so no tick is still mid-send when the caller pushes the
// shutdown frame or closes the link. Reports false on timeout; returns
// immediately if Start never ran.
func (t *Transmitter) Join(timeout time.Duration) bool {
	if t.done == nil {
		return true
	}
	select {
	case <-t.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (t *Transmitter) run(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

// tick emits at most one frame. Fixtures hold their last received state,
// so a dropped frame costs nothing; the next tick tries again.
func (t *Transmitter) tick() {
	if !t.sender.Connected() {
		return
	}
	if err := t.sender.Send(t.Snapshot()); err != nil {
		t.log.With(logger.Fields{"module": "dmx"}).Errorf("frame send failed: %v", err)
	}
}

// SendNow pushes u on the wire immediately, bounded by timeout. Used for
// the shutdown blackout frame so a wedged link cannot hang the process.
func (t *Transmitter) SendNow(u Universe, timeout time.Duration) error {
	if !t.sender.Connected() {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- t.sender.Send(u)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return ErrSendTimeout
	}
}

// Close releases the output link.
func (t *Transmitter) Close() error {
	return t.sender.Close()
}
