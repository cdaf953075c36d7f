package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/winctx/winctx/internal/busio"
	"github.com/winctx/winctx/internal/config"
	"github.com/winctx/winctx/internal/daemon"
	"github.com/winctx/winctx/internal/journal"
	"github.com/winctx/winctx/internal/logging"
	"github.com/winctx/winctx/pkg/environ"
	"github.com/winctx/winctx/pkg/provider"
	"github.com/winctx/winctx/pkg/window"
	"github.com/winctx/winctx/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "env":
		showEnvironment()
	case "current":
		showCurrent()
	case "watch":
		watchContext()
	case "status":
		showStatus()
	case "stop":
		stopService()
	case "report":
		generateReport()
	case "journal":
		showJournal()
	case "prune":
		pruneJournal()
	case "version":
		showVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`winctx - window context for Linux keymappers

Usage:
  winctx <command> [options]

Commands:
  env                Show the detected environment
  current            Show the current window context
  watch              Stream window context updates until interrupted
  status             Show environment, adapter services and current window
  stop <family>      Stop a running adapter service
  report [period]    Per-app focus report (period: day, week, month; --json)
  journal [n]        Show the latest context events (default 20)
  prune [age]        Delete journal events older than age (default 720h)
  version            Show version information
  help               Show this help message

Examples:
  winctx env
  winctx current
  winctx watch
  winctx report week --json
  winctx journal 50
  winctx stop wlroots
  WINCTX_OVERRIDE_DESKTOP_ENV=kde winctx env

Environment Variables:
  WINCTX_OVERRIDE_DESKTOP_ENV  Trust this desktop value instead of detecting
  WINCTX_OVERRIDE_WINDOW_MGR   Trust this window manager instead of detecting
  WINCTX_JOURNAL_PATH          Journal database path
  WINCTX_LOG_LEVEL             Diagnostic verbosity on stderr

Version: %s
`, version.Version)
}

func loadConfig() *config.Config {
	cfg, err := config.New()
	if err != nil {
		fatalf("%v", err)
	}
	return cfg
}

// quietLevel keeps one-shot commands from spraying probe diagnostics
// over their output; an explicit WINCTX_LOG_LEVEL still wins.
func quietLevel(cfg *config.Config) string {
	if os.Getenv("WINCTX_LOG_LEVEL") != "" {
		return cfg.Log.Level
	}
	return "warn"
}

func detectEnvironment(cfg *config.Config) environ.Info {
	probe := environ.NewProbe()
	probe.Overrides = environ.Resolver{FromConfig: cfg.Overrides}.Resolve()
	probe.SettleDelay = cfg.Probe.SettleDelay
	return probe.Detect()
}

func providerOptions(cfg *config.Config) provider.Options {
	return provider.Options{
		XPollInterval: cfg.Adapter.PollInterval,
		Bus: busio.Options{
			CallTimeout:   cfg.Bus.CallTimeout,
			RetryAttempts: cfg.Bus.RetryAttempts,
			RetryBackoff:  cfg.Bus.RetryBackoff,
		},
	}
}

func showEnvironment() {
	cfg := loadConfig()
	logging.Setup(quietLevel(cfg), os.Stderr)

	fmt.Println(detectEnvironment(cfg).String())
}

func showCurrent() {
	cfg := loadConfig()
	logging.Setup(quietLevel(cfg), os.Stderr)

	env := detectEnvironment(cfg)
	prov, err := provider.New(env, providerOptions(cfg), logging.WithComponent("provider"))
	if err != nil {
		fatalf("%v", err)
	}
	defer prov.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Bus.CallTimeout)
	defer cancel()

	c, ok, err := prov.Current(ctx)
	if err != nil {
		fatalf("cannot query the %s context source: %v", prov.Kind(), err)
	}
	if !ok {
		fmt.Println("No window context available yet")
		return
	}
	printContext(c)
}

func watchContext() {
	cfg := loadConfig()
	logging.Setup(quietLevel(cfg), os.Stderr)

	env := detectEnvironment(cfg)
	prov, err := provider.New(env, providerOptions(cfg), logging.WithComponent("provider"))
	if err != nil {
		fatalf("%v", err)
	}
	defer prov.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("Watching %s context updates (Ctrl-C to stop)\n", prov.Kind())
	err = prov.Watch(ctx, func(c window.Context) {
		fmt.Printf("%s  %-28s  %s\n", c.ObservedAt.Format("15:04:05"), c.AppClass, c.Title)
	})
	if err != nil && ctx.Err() == nil {
		fatalf("%v", err)
	}
}

func showStatus() {
	cfg := loadConfig()
	logging.Setup(quietLevel(cfg), os.Stderr)

	env := detectEnvironment(cfg)
	fmt.Println(env.String())

	fmt.Println("\nServices:")
	for _, kind := range window.Kinds() {
		if kind == window.KindX11 {
			// X11 context is read in-process, no service to run.
			continue
		}
		dm := daemon.New(cfg.PIDFileFor(kind))
		running, pid, err := dm.IsRunning()
		switch {
		case err != nil:
			fmt.Printf("  winctx-%-8s %v\n", kind, err)
		case running:
			fmt.Printf("  winctx-%-8s running (pid %d)\n", kind, pid)
		default:
			fmt.Printf("  winctx-%-8s not running\n", kind)
		}
	}

	prov, err := provider.New(env, providerOptions(cfg), logging.WithComponent("provider"))
	if err != nil {
		fmt.Printf("\nNo context source for this session: %v\n", err)
		return
	}
	defer prov.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Bus.CallTimeout)
	defer cancel()

	c, ok, err := prov.Current(ctx)
	switch {
	case err != nil:
		fmt.Printf("\nCould not query the current window: %v\n", err)
	case !ok:
		fmt.Println("\nNo window context reported yet")
	default:
		fmt.Println("\nCurrent window:")
		printContext(c)
	}
}

func stopService() {
	if len(os.Args) < 3 {
		fatalf("usage: winctx stop <gnome|kwin|cosmic|wlroots>")
	}
	kind := kindFromArg(os.Args[2])

	cfg := loadConfig()
	dm := daemon.New(cfg.PIDFileFor(kind))
	running, pid, err := dm.IsRunning()
	if err != nil {
		fatalf("%v", err)
	}
	if !running {
		fmt.Printf("winctx-%s is not running\n", kind)
		return
	}

	fmt.Printf("Stopping winctx-%s (pid %d)...\n", kind, pid)
	if err := dm.Stop(); err != nil {
		fatalf("%v", err)
	}
	fmt.Println("Stopped")
}

func generateReport() {
	periodType := "day"
	if len(os.Args) > 2 {
		periodType = os.Args[2]
	}
	jsonOutput := len(os.Args) > 3 && os.Args[3] == "--json"

	repo, closeDB := openJournal()
	defer closeDB()

	rep := journal.NewReporter(repo)
	report, err := rep.Generate(periodType)
	if err != nil {
		fatalf("%v", err)
	}

	if jsonOutput {
		out, err := rep.FormatJSON(report)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Println(out)
	} else {
		fmt.Println(rep.FormatText(report))
	}
}

func showJournal() {
	limit := 20
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil || n < 1 {
			fatalf("journal limit must be a positive number, got %q", os.Args[2])
		}
		limit = n
	}

	repo, closeDB := openJournal()
	defer closeDB()

	events, err := repo.RecentContexts(limit)
	if err != nil {
		fatalf("%v", err)
	}
	if len(events) == 0 {
		fmt.Println("No context events recorded yet")
		return
	}
	for _, e := range events {
		fmt.Printf("%s  %-8s %-28s %s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Adapter, e.AppClass, e.Title)
	}
}

func pruneJournal() {
	keep := 30 * 24 * time.Hour
	if len(os.Args) > 2 {
		d, err := time.ParseDuration(os.Args[2])
		if err != nil || d <= 0 {
			fatalf("prune age must be a positive duration like 720h, got %q", os.Args[2])
		}
		keep = d
	}
	cutoff := time.Now().Add(-keep)

	fmt.Printf("This deletes journal events older than %s. Are you sure? (yes/no): ", cutoff.Format("2006-01-02"))
	var response string
	fmt.Scanln(&response)
	if response != "yes" && response != "y" {
		fmt.Println("Operation cancelled")
		return
	}

	repo, closeDB := openJournal()
	defer closeDB()

	n, err := repo.Prune(cutoff)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Removed %d journal events\n", n)
}

func showVersion() {
	fmt.Printf("version: %s\n", version.Version)
	fmt.Printf("built  : %s\n", version.Date)
}

func openJournal() (*journal.Repository, func()) {
	cfg := loadConfig()
	logging.Setup(quietLevel(cfg), os.Stderr)

	path := cfg.Journal.Path
	if path == "" {
		p, err := journal.DefaultPath()
		if err != nil {
			fatalf("%v", err)
		}
		path = p
	}

	db, err := journal.Open(path)
	if err != nil {
		fatalf("cannot open the journal at %s: %v", path, err)
	}
	if err := db.Initialize(); err != nil {
		db.Close()
		fatalf("%v", err)
	}
	return journal.NewRepository(db), func() { db.Close() }
}

func printContext(c window.Context) {
	fmt.Printf("  App ID:    %s\n", c.AppID)
	fmt.Printf("  App Class: %s\n", c.AppClass)
	fmt.Printf("  Title:     %s\n", c.Title)
	fmt.Printf("  Source:    %s\n", c.Source)
}

func kindFromArg(arg string) window.Kind {
	for _, k := range window.Kinds() {
		if string(k) == arg && k != window.KindX11 {
			return k
		}
	}
	fatalf("unknown adapter family %q (expected gnome, kwin, cosmic or wlroots)", arg)
	return ""
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "winctx: "+format+"\n", args...)
	os.Exit(1)
}
