// Package engine turns drum strikes into DMX frames. It keeps the set
// of live flashes, composites them at animation rate into the device
// channel buffer, and runs the transmitter's protocol schedule beside
// its own. The two schedules never block each other; note ingestion
// only appends and never touches I/O.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/IronBasement/drum-lights/internal/colors"
	"github.com/IronBasement/drum-lights/internal/config"
	"github.com/IronBasement/drum-lights/internal/dmx"
	"github.com/IronBasement/drum-lights/internal/logger"
	"github.com/IronBasement/drum-lights/internal/rig"
)

// fullBright holds the master dimmer wide open whenever the engine
// runs. Darkness comes from the color channels, never from the dimmer.
const fullBright = 255

// stopTimeout bounds the join on the animation loop and the final
// blackout frame during Stop.
const stopTimeout = 500 * time.Millisecond

// Engine is the lighting engine facade.
type Engine struct {
	log      logger.Logger
	table    rig.Table
	tx       *dmx.Transmitter
	fixtures int
	fade     time.Duration
	period   time.Duration

	mu      sync.Mutex
	flashes []flash

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// New wires the engine to its mapping table and transmitter.
func New(log logger.Logger, cfg config.EngineConf, table rig.Table, tx *dmx.Transmitter) *Engine {
	fixtures := cfg.Fixtures
	if fixtures > dmx.MaxFixtures {
		log.With(logger.Fields{"module": "engine"}).Warnf(
			"fixture count %d exceeds the universe, clamping to %d", fixtures, dmx.MaxFixtures)
		fixtures = dmx.MaxFixtures
	}
	return &Engine{
		log:      log,
		table:    table,
		tx:       tx,
		fixtures: fixtures,
		fade:     time.Duration(cfg.FadeMillis) * time.Millisecond,
		period:   time.Duration(cfg.AnimateTick) * time.Millisecond,
		done:     make(chan struct{}),
	}
}

// Start begins both schedules. The animation loop runs immediately; the
// transmitter connects its link in the background and drops frames
// until it is up.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.tx.Start(ctx)
	go e.animate(ctx)
	e.log.With(logger.Fields{"module": "engine"}).Infof(
		"started: %d fixtures, %v fade, %v animation tick", e.fixtures, e.fade, e.period)
}

// Stop cancels both schedules, clears the registry, sends one blacked
// out frame if the link is open and closes it. Idempotent, and safe
// after a partial Start.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if e.cancel != nil {
			e.cancel()
			select {
			case <-e.done:
			case <-time.After(stopTimeout):
				e.log.With(logger.Fields{"module": "engine"}).Warn("animation loop did not stop in time")
			}
		}

		if !e.tx.Join(stopTimeout) {
			e.log.With(logger.Fields{"module": "engine"}).Warn("transmission loop did not stop in time")
		}

		e.mu.Lock()
		e.flashes = nil
		e.mu.Unlock()

		if err := e.tx.SendNow(e.blackout(), stopTimeout); err != nil {
			e.log.With(logger.Fields{"module": "engine"}).Errorf("blackout frame: %v", err)
		}
		if err := e.tx.Close(); err != nil {
			e.log.With(logger.Fields{"module": "engine"}).Errorf("output close: %v", err)
		}
		e.log.With(logger.Fields{"module": "engine"}).Info("stopped")
	})
}

// NoteOn records one note strike. Unmapped notes are dropped without
// comment, which is the common case. Safe to call from any goroutine at
// any time; it appends under the registry lock and returns.
func (e *Engine) NoteOn(note, velocity uint8) {
	light := e.table.FindByNote(note)
	if light == nil {
		return
	}

	f := newFlash(light.Color, velocity)
	e.mu.Lock()
	e.flashes = append(e.flashes, f)
	e.mu.Unlock()

	e.log.With(logger.Fields{"module": "engine"}).Debugf(
		"note %d velocity %d -> %s", note, velocity, light.Name)
}

func (e *Engine) animate(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.step(e.period)
		}
	}
}

// step runs one animation tick: age every flash by dt, drop the dead
// ones, sum the survivors and publish the frame. Aged flashes are
// filtered into a fresh slice rather than removed in place, so the scan
// never skips an entry.
func (e *Engine) step(dt time.Duration) {
	sum := colors.Black

	e.mu.Lock()
	live := make([]flash, 0, len(e.flashes))
	for _, f := range e.flashes {
		if f.step(dt, e.fade) {
			live = append(live, f)
			sum = sum.Add(f.contribution())
		}
	}
	e.flashes = live
	e.mu.Unlock()

	u := e.compose(sum)
	e.tx.SetUniverse(u)
}

// compose mirrors one color to every fixture. Per-fixture addressing is
// a mapping-table extension, not a runtime decision.
func (e *Engine) compose(c colors.RGB) dmx.Universe {
	var u dmx.Universe
	u.SetMaster(fullBright)
	for i := 0; i < e.fixtures; i++ {
		u.SetFixture(i, c)
	}
	return u
}

// blackout is the shutdown frame: all color channels dark, dimmer open.
func (e *Engine) blackout() dmx.Universe {
	return e.compose(colors.Black)
}

// ActiveFlashes reports the registry size, for logging and tests.
func (e *Engine) ActiveFlashes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.flashes)
}
