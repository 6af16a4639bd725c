// Package reconcile drives the polling loop that keeps game memory and
// the multiworld room converging on the same state.
package reconcile

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"snesclient/internal/deathlink"
	"snesclient/internal/games"
	"snesclient/internal/protocol"
	"snesclient/internal/session"
	"snesclient/logging"
	synclog "snesclient/logging/sync"
)

// Config carries the engine's tunables. Zero values take the defaults.
type Config struct {
	PollInterval   time.Duration
	BounceInterval time.Duration
	DeathCooldown  time.Duration

	// SlotLabel names the local player in outbound death broadcasts.
	SlotLabel string
}

func (c *Config) fill() {
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.BounceInterval <= 0 {
		c.BounceInterval = 5 * time.Minute
	}
	if c.DeathCooldown <= 0 {
		c.DeathCooldown = deathlink.DefaultCooldown
	}
}

// Engine schedules reconciliation passes at a fixed cadence. A tick that
// fires while the previous pass is still against the wire is dropped, so
// passes never overlap.
type Engine struct {
	cfg     Config
	adapter games.Adapter
	sess    *session.Session
	sender  games.Sender
	tracker *deathlink.Tracker
	log     logging.Publisher

	// Fault is invoked once per run when a pass aborts on an error. The
	// engine stops itself first; the owner decides how to relink.
	Fault func(err error)

	inFlight atomic.Bool

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	lastBounce time.Time
}

// NewEngine builds a stopped engine.
func NewEngine(cfg Config, adapter games.Adapter, sess *session.Session, sender games.Sender, log logging.Publisher) *Engine {
	cfg.fill()
	return &Engine{
		cfg:     cfg,
		adapter: adapter,
		sess:    sess,
		sender:  sender,
		tracker: deathlink.NewTracker(cfg.DeathCooldown),
		log:     log,
	}
}

// Start launches the polling loop. Calling Start on a running engine is
// a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.lastBounce = time.Now()
	go e.loop(ctx, e.done)
}

// Stop halts the loop and waits for any in-flight pass to finish. Safe
// to call repeatedly.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	done := e.done
	e.cancel = nil
	e.done = nil
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// HandleRemoteDeath applies an inbound death broadcast. Broadcasts are
// dropped outright when the ROM has the feature off, and the kill is
// skipped inside the shared cooldown window so deaths cannot ping-pong
// between clients.
func (e *Engine) HandleRemoteDeath(ctx context.Context, data protocol.DeathLinkData) error {
	enabled, err := e.adapter.DeathLinkEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}
	if !e.tracker.RecordRemote(time.Now()) {
		return nil
	}
	return e.adapter.KillLocalPlayer(ctx)
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	// Run one pass immediately so a fresh connect converges before the
	// first full interval elapses.
	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	if !e.inFlight.CompareAndSwap(false, true) {
		synclog.PassSkipped(ctx, e.log)
		return
	}
	defer e.inFlight.Store(false)

	if err := e.pass(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		synclog.PassFault(ctx, e.log, err)
		e.abort(err)
	}
	e.keepAlive(ctx)
}

func (e *Engine) pass(ctx context.Context) error {
	if err := e.observeDeath(ctx); err != nil {
		return err
	}
	return e.adapter.RunReconciliationPass(ctx)
}

// observeDeath polls the local death state and broadcasts at most one
// death per life, outside the shared cooldown window.
func (e *Engine) observeDeath(ctx context.Context) error {
	enabled, err := e.adapter.DeathLinkEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}
	dead, err := e.adapter.LocalPlayerDead(ctx)
	if err != nil {
		return err
	}
	if !e.tracker.ObserveLocal(dead, time.Now()) {
		return nil
	}
	return e.sender.Send(ctx, protocol.Bounce{
		Cmd:  protocol.CmdBounce,
		Tags: []string{protocol.DeathLinkTag},
		Data: protocol.DeathLinkData{
			Time:   float64(time.Now().UnixMilli()) / 1000,
			Source: e.slotLabel(),
		},
	})
}

// keepAlive bounces an empty payload at a slow cadence so idle sockets
// are not reaped by intermediaries.
func (e *Engine) keepAlive(ctx context.Context) {
	e.mu.Lock()
	due := time.Since(e.lastBounce) >= e.cfg.BounceInterval
	if due {
		e.lastBounce = time.Now()
	}
	e.mu.Unlock()
	if !due {
		return
	}
	// Best effort; a dropped socket surfaces through its own close path.
	bounce := protocol.Bounce{
		Cmd:  protocol.CmdBounce,
		Data: time.Now().UnixMilli(),
	}
	if e.sess != nil {
		if slot := e.sess.Slot(); slot != 0 {
			bounce.Slots = []int{slot}
		}
	}
	_ = e.sender.Send(ctx, bounce)
}

func (e *Engine) abort(err error) {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.done = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if e.Fault != nil {
		e.Fault(err)
	}
}

func (e *Engine) slotLabel() string {
	if e.cfg.SlotLabel != "" {
		return e.cfg.SlotLabel
	}
	if e.sess != nil {
		if alias := e.sess.PlayerAlias(e.sess.Slot()); alias != "" {
			return alias
		}
	}
	return "Player"
}
