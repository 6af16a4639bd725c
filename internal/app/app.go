// Package app is the composition root: it builds the logging router, the
// device link, the coordination socket and the reconciliation engine, and
// keeps the two links converging after faults.
package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"snesclient/internal/config"
	"snesclient/internal/console"
	"snesclient/internal/coordinator"
	"snesclient/internal/datapkg"
	"snesclient/internal/games"
	"snesclient/internal/protocol"
	"snesclient/internal/reconcile"
	"snesclient/internal/session"
	"snesclient/internal/snes"
	"snesclient/logging"
	devicelog "snesclient/logging/device"
	"snesclient/logging/lifecycle"
	loggingsinks "snesclient/logging/sinks"
)

// App owns every long-lived component of the client process.
type App struct {
	cfg    config.Config
	router *logging.Router
	log    logging.Publisher
	store  *datapkg.Store
	tables *datapkg.Tables
	sess   *session.Session

	socket  *coordinator.Socket
	engine  *reconcile.Engine
	console *console.Console
	adapter games.Adapter

	paused atomic.Bool

	mu          sync.Mutex
	device      *snes.Client
	relinkTimer *time.Timer
}

// New wires the process-lifetime components. Run starts the links.
func New(cfg config.Config) (*App, error) {
	logCfg := logging.DefaultConfig()
	logCfg.MinimumSeverity = parseSeverity(cfg.LogSeverity)
	logCfg.MutedCategories = cfg.LogMute
	sinks := []logging.NamedSink{
		{Name: "console", Sink: loggingsinks.NewConsoleSink(os.Stderr, logCfg.Console)},
	}
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		sinks = append(sinks, logging.NamedSink{
			Name: "json",
			Sink: loggingsinks.NewJSON(file, logCfg.JSON.FlushInterval),
		})
	}
	router, err := logging.NewRouter(nil, logCfg, sinks)
	if err != nil {
		return nil, fmt.Errorf("build logging router: %w", err)
	}

	store, err := datapkg.OpenStore(cfg.StorePath)
	if err != nil {
		router.Close(context.Background())
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &App{
		cfg:    cfg,
		router: router,
		log:    router,
		store:  store,
		tables: datapkg.NewTables(),
		sess:   session.New(),
	}, nil
}

// Run links the device, builds the game adapter and serves console input
// until ctx is cancelled or stdin closes.
func (a *App) Run(ctx context.Context) error {
	defer a.shutdown()

	lifecycle.Startup(ctx, a.log, lifecycle.StartupPayload{
		Game:          a.cfg.GameTitle,
		DeviceServer:  a.cfg.DeviceServerAddress,
		ServerAddress: a.cfg.ServerAddress,
	})

	clientID, err := a.store.ClientID()
	if err != nil {
		return fmt.Errorf("client id: %w", err)
	}

	rt := &games.Runtime{
		Memory:        linkProxy{a},
		Session:       a.sess,
		Tables:        a.tables,
		ClientID:      clientID,
		Log:           a.log,
		ReceivePaused: a.paused.Load,
	}
	adapter, err := games.New(a.cfg.GameTitle, rt)
	if err != nil {
		return err
	}
	a.adapter = adapter

	a.socket = coordinator.New(coordinator.Config{
		SlotName:             a.cfg.SlotName,
		Password:             a.cfg.Password,
		ReconnectDelay:       a.cfg.ReconnectDelay,
		MaxReconnectAttempts: a.cfg.MaxReconnectAttempts,
		DeviceBound:          a.deviceLive,
	}, adapter, a.sess, a.tables, a.store, a.log, coordinator.Hooks{
		AuthAccepted: func() { a.engine.Start(ctx) },
		SocketClosed: func(string) { a.engine.Stop() },
		LinkFault:    func(err error) { a.handleFault(ctx, err) },
		DeathLink: func(data protocol.DeathLinkData) {
			if err := a.engine.HandleRemoteDeath(ctx, data); err != nil {
				a.console.Append(fmt.Sprintf("Applying remote death failed: %v", err))
			} else if data.Source != "" {
				a.console.Append(fmt.Sprintf("%s died, and so did you.", data.Source))
			}
		},
		Print: func(line string) { a.console.Append(line) },
	})
	rt.Sender = a.socket

	a.engine = reconcile.NewEngine(reconcile.Config{
		PollInterval:   a.cfg.PollInterval,
		BounceInterval: a.cfg.BounceInterval,
		DeathCooldown:  a.cfg.DeathCooldown,
		SlotLabel:      a.cfg.SlotName,
	}, adapter, a.sess, a.socket, a.log)
	a.engine.Fault = func(err error) { a.handleFault(ctx, err) }

	a.console = console.New(console.Actions{
		Connect:     a.socket.Connect,
		Send:        a.socket.Send,
		RequestSync: a.requestSync,
		TogglePause: a.togglePause,
		Names:       adapter,
		Session:     a.sess,
	}, func(line string) { fmt.Fprintln(os.Stdout, line) })

	if err := a.linkDevice(ctx); err != nil {
		a.console.Append(fmt.Sprintf("Device link failed: %v. Retrying.", err))
		a.scheduleRelink(ctx)
	}
	if a.cfg.ServerAddress != "" && a.deviceLive() {
		if err := a.socket.Connect(ctx, a.cfg.ServerAddress); err != nil {
			a.console.Append(fmt.Sprintf("Connect failed: %v", err))
		}
	}

	return a.serveInput(ctx)
}

func (a *App) serveInput(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			a.console.HandleInput(ctx, line)
		}
	}
}

// linkDevice dials the device server and binds the configured device.
func (a *App) linkDevice(ctx context.Context) error {
	client, err := snes.Dial(ctx, a.cfg.DeviceServerAddress, a.cfg.Space(), a.cfg.Mapping())
	if err != nil {
		return err
	}
	descriptor, err := client.Bind(ctx, a.cfg.DeviceURI, "snesclient")
	if err != nil {
		client.Close()
		return err
	}

	a.mu.Lock()
	old := a.device
	a.device = client
	a.mu.Unlock()
	if old != nil {
		old.Close()
	}

	devicelog.Attached(ctx, a.log, devicelog.AttachPayload{
		URI:      descriptor.URI,
		Name:     descriptor.Name,
		Firmware: descriptor.Firmware,
	})
	return nil
}

func (a *App) deviceLive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.device != nil
}

// handleFault tears down both links after a pass error and schedules a
// full relink. Duplicate check reports and re-delivered grants are
// absorbed on the next session, so tearing down hard is safe.
func (a *App) handleFault(ctx context.Context, err error) {
	devicelog.Detached(ctx, a.log, err.Error())
	a.console.Append(fmt.Sprintf("Lost the console link: %v. Relinking.", err))

	a.mu.Lock()
	device := a.device
	a.device = nil
	a.mu.Unlock()
	if device != nil {
		device.Close()
	}
	a.socket.Disconnect()
	a.scheduleRelink(ctx)
}

func (a *App) scheduleRelink(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.relinkTimer != nil {
		a.relinkTimer.Stop()
	}
	a.relinkTimer = time.AfterFunc(a.cfg.RelinkDelay, func() {
		a.relink(ctx)
	})
}

func (a *App) relink(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := a.linkDevice(ctx); err != nil {
		a.console.Append(fmt.Sprintf("Device link failed: %v. Retrying.", err))
		a.scheduleRelink(ctx)
		return
	}
	address := a.socket.Address()
	if address == "" {
		address = a.cfg.ServerAddress
	}
	if address != "" {
		if err := a.socket.Connect(ctx, address); err != nil {
			a.console.Append(fmt.Sprintf("Reconnect failed: %v", err))
		}
	}
}

func (a *App) requestSync(ctx context.Context) error {
	return a.socket.Send(ctx, protocol.Sync{Cmd: protocol.CmdSync})
}

func (a *App) togglePause() bool {
	for {
		old := a.paused.Load()
		if a.paused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (a *App) shutdown() {
	ctx := context.Background()
	lifecycle.Shutdown(ctx, a.log, "exit")

	if a.engine != nil {
		a.engine.Stop()
	}
	if a.socket != nil {
		a.socket.Disconnect()
	}
	a.mu.Lock()
	if a.relinkTimer != nil {
		a.relinkTimer.Stop()
	}
	device := a.device
	a.device = nil
	a.mu.Unlock()
	if device != nil {
		device.Close()
	}
	a.store.Close()
	a.router.Close(ctx)
}

// linkProxy routes adapter memory traffic to whichever device client is
// currently bound, so a relink does not invalidate the runtime.
type linkProxy struct {
	app *App
}

func (p linkProxy) ReadMemory(ctx context.Context, address uint32, length int) ([]byte, error) {
	client := p.current()
	if client == nil {
		return nil, snes.ErrLinkUnavailable
	}
	data, err := client.ReadMemory(ctx, address, length)
	if err != nil {
		devicelog.ReadFault(ctx, p.app.log, devicelog.FaultPayload{Address: address, Length: length}, err)
	}
	return data, err
}

func (p linkProxy) WriteMemory(ctx context.Context, address uint32, data []byte) error {
	client := p.current()
	if client == nil {
		return snes.ErrLinkUnavailable
	}
	err := client.WriteMemory(ctx, address, data)
	if err != nil {
		devicelog.WriteFault(ctx, p.app.log, devicelog.FaultPayload{Address: address, Length: len(data)}, err)
	}
	return err
}

func (p linkProxy) current() *snes.Client {
	p.app.mu.Lock()
	defer p.app.mu.Unlock()
	return p.app.device
}

func parseSeverity(name string) logging.Severity {
	switch name {
	case "debug":
		return logging.SeverityDebug
	case "warn":
		return logging.SeverityWarn
	case "error":
		return logging.SeverityError
	default:
		return logging.SeverityInfo
	}
}
