// Package service runs one adapter family as a daemon: it loads
// configuration, probes the session, applies the environment gate,
// and wires the adapter into the context hub, the D-Bus surface, the
// event journal and the status web server. The per-family commands
// differ only in the adapter they build.
package service

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/winctx/winctx/internal/busio"
	"github.com/winctx/winctx/internal/config"
	"github.com/winctx/winctx/internal/daemon"
	"github.com/winctx/winctx/internal/hub"
	"github.com/winctx/winctx/internal/journal"
	"github.com/winctx/winctx/internal/lifecycle"
	"github.com/winctx/winctx/internal/logging"
	"github.com/winctx/winctx/internal/web"
	"github.com/winctx/winctx/pkg/environ"
	"github.com/winctx/winctx/pkg/window"
)

// Adapter is the family-specific tracking loop the service runs. Run
// blocks until the backend connection ends or ctx is canceled.
type Adapter interface {
	Run(ctx context.Context) error
	Close() error
}

// notifier is implemented by adapters that are fed through the
// NotifyActiveWindow D-Bus method instead of their own backend
// subscription.
type notifier interface {
	Notify(caption, resourceClass, resourceName string)
}

// BuildFunc constructs the adapter once the environment gate has
// passed. A failed build means the backend is unavailable and the
// service exits with a failure status.
type BuildFunc func(cfg *config.Config, h *hub.Hub, log zerolog.Logger) (Adapter, error)

// Options carries the command-line settings of a service binary.
// Zero values defer to the configuration file.
type Options struct {
	ConfigPath   string
	LogLevel     string
	LogFile      string
	PollInterval time.Duration
	ExitDelay    time.Duration
	Web          bool
	NoJournal    bool
	Detach       bool
}

// Load resolves the effective configuration: defaults, then the
// config file, then WINCTX_* environment variables, then the
// command-line options.
func Load(opts Options) (*config.Config, error) {
	cfg := config.Default()

	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	if err := config.LoadFile(cfg, path); err != nil {
		return nil, err
	}
	config.LoadFromEnv(cfg)

	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFile != "" {
		cfg.Log.File = opts.LogFile
	}
	if opts.ExitDelay > 0 {
		cfg.Adapter.ExitDelay = opts.ExitDelay
	}
	if opts.PollInterval > 0 {
		if err := cfg.SetPollInterval(opts.PollInterval); err != nil {
			return nil, err
		}
	}
	if opts.Web {
		cfg.Web.Enabled = true
	}
	if opts.NoJournal {
		cfg.Journal.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// Run executes the service for one adapter family and returns its
// process exit code. With Detach set it forks a background child and
// returns immediately in the parent.
func Run(kind window.Kind, opts Options, build BuildFunc) int {
	cfg, err := Load(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "winctx-%s: %v\n", kind, err)
		return lifecycle.ExitFailure
	}

	if opts.Detach && !daemon.Detached() {
		pid, err := daemon.Detach(cfg.LogFileFor(kind))
		if err != nil {
			fmt.Fprintf(os.Stderr, "winctx-%s: detach: %v\n", kind, err)
			return lifecycle.ExitFailure
		}
		fmt.Printf("winctx-%s started in the background (pid %d)\n", kind, pid)
		return lifecycle.ExitOK
	}

	if cfg.Log.File != "" {
		f, err := logging.SetupFile(cfg.Log.Level, cfg.Log.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "winctx-%s: %v\n", kind, err)
			return lifecycle.ExitFailure
		}
		defer f.Close()
	} else {
		logging.Setup(cfg.Log.Level, os.Stderr)
	}

	return serve(kind, cfg, opts.ConfigPath, build)
}

func serve(kind window.Kind, cfg *config.Config, configPath string, build BuildFunc) int {
	log := logging.WithComponent("service")
	log.Info().Str("adapter", string(kind)).Msg("starting window context service")

	life := lifecycle.New(kind, logging.WithComponent("lifecycle"))
	life.ExitDelay = cfg.Adapter.ExitDelay

	// Attach the journal before the gate so even a self-terminated
	// run leaves a trace of why it exited.
	repo, closeJournal := openJournal(cfg, log)
	if closeJournal != nil {
		defer closeJournal()
	}
	if repo != nil {
		life.OnTransition = func(from, to lifecycle.State, detail string) {
			err := repo.RecordLifecycle(&journal.LifecycleEvent{
				Timestamp: time.Now(),
				Adapter:   string(kind),
				FromState: string(from),
				ToState:   string(to),
				Detail:    detail,
			})
			if err != nil {
				log.Warn().Err(err).Msg("could not record lifecycle event")
			}
		}
	}

	probe := environ.NewProbe()
	probe.Overrides = environ.Resolver{FromConfig: cfg.Overrides}.Resolve()
	probe.SettleDelay = cfg.Probe.SettleDelay
	env := probe.Detect()
	log.Info().
		Str("distro", env.DistroID).
		Str("session", env.SessionType).
		Str("desktop", env.DesktopEnv).
		Str("window_manager", env.WindowManager).
		Msg("environment detected")

	if !life.Gate(env) {
		return life.ExitCode()
	}

	dm := daemon.New(cfg.PIDFileFor(kind))
	if err := dm.Acquire(); err != nil {
		life.Fail(err)
		return life.ExitCode()
	}
	defer dm.Release()

	h := hub.New()

	srv, err := busio.NewServer(h, kind, logging.WithComponent("busio"))
	if err != nil {
		life.Fail(errors.Wrap(err, "session bus"))
		return life.ExitCode()
	}
	defer srv.Close()

	adapter, err := build(cfg, h, logging.WithComponent(string(kind)))
	if err != nil {
		life.Fail(err)
		return life.ExitCode()
	}
	defer adapter.Close()

	if n, ok := adapter.(notifier); ok {
		srv.SetNotifyHandler(n.Notify)
	}

	if err := srv.Start(); err != nil {
		life.Fail(err)
		return life.ExitCode()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if repo != nil {
		updates, unsubscribe := h.Subscribe()
		defer unsubscribe()
		go recordContexts(ctx, repo, updates, log)
	}

	// Detection is start-time only. When the config file changes
	// under a running service, all we can do is say so.
	watchPath := configPath
	if watchPath == "" {
		watchPath = config.DefaultPath()
	}
	err = config.Watch(ctx, watchPath, log, func() {
		log.Info().Msg("restart the service to apply configuration changes")
	})
	if err != nil {
		log.Warn().Err(err).Msg("config watcher unavailable")
	}

	if cfg.Web.Enabled {
		ws := web.NewServer(web.Deps{
			Config:  cfg,
			Hub:     h,
			Env:     env,
			Kind:    kind,
			Life:    life,
			Journal: repo,
			Log:     logging.WithComponent("web"),
		})
		go func() {
			if err := ws.Start(); err != nil && err != http.ErrServerClosed {
				log.Warn().Err(err).Msg("status web server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancelShutdown()
			ws.Shutdown(shutdownCtx)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	life.Activate()
	if err := adapter.Run(ctx); err != nil && ctx.Err() == nil {
		life.Fail(err)
	}

	log.Info().Str("state", string(life.State())).Msg("service stopped")
	return life.ExitCode()
}

// openJournal opens the event journal when enabled. A journal that
// cannot be opened degrades to a warning: context tracking works the
// same without history.
func openJournal(cfg *config.Config, log zerolog.Logger) (*journal.Repository, func()) {
	if !cfg.Journal.Enabled {
		return nil, nil
	}

	path := cfg.Journal.Path
	if path == "" {
		p, err := journal.DefaultPath()
		if err != nil {
			log.Warn().Err(err).Msg("journal disabled: no usable data directory")
			return nil, nil
		}
		path = p
	}

	db, err := journal.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("journal disabled: could not open database")
		return nil, nil
	}
	if err := db.Initialize(); err != nil {
		db.Close()
		log.Warn().Err(err).Msg("journal disabled: migration failed")
		return nil, nil
	}
	return journal.NewRepository(db), func() { db.Close() }
}

// recordContexts drains hub updates into the journal until ctx ends.
func recordContexts(ctx context.Context, repo *journal.Repository, updates <-chan window.Context, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-updates:
			if !ok {
				return
			}
			err := repo.RecordContext(&journal.ContextEvent{
				Timestamp: c.ObservedAt,
				Adapter:   string(c.Source),
				AppID:     c.AppID,
				AppClass:  c.AppClass,
				Title:     c.Title,
			})
			if err != nil {
				log.Warn().Err(err).Msg("could not record context event")
			}
		}
	}
}
