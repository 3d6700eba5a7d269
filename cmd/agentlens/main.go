package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/agentlens/agentlens/internal/analytics"
	"github.com/agentlens/agentlens/internal/backfill"
	"github.com/agentlens/agentlens/internal/config"
	"github.com/agentlens/agentlens/internal/indexer"
	"github.com/agentlens/agentlens/internal/parser"
	"github.com/agentlens/agentlens/internal/readiness"
	"github.com/agentlens/agentlens/internal/rollup"
	"github.com/agentlens/agentlens/internal/server"
	"github.com/agentlens/agentlens/internal/session"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

const (
	periodicRefreshInterval = 15 * time.Minute
	watcherDebounce         = 500 * time.Millisecond
	rebuildDebounce         = 2 * time.Second
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("agentlens %s (commit %s, built %s)\n",
				version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`agentlens %s - comparative analytics for AI coding agents

Indexes session transcripts from Claude Code, Codex, Gemini,
Copilot, and Amp, and serves usage analytics via a local REST API.

Usage:
  agentlens [flags]          Start the server (default command)
  agentlens serve [flags]    Start the server (explicit)
  agentlens version          Show version information
  agentlens help             Show this help

Server flags:
  -addr string         Address to listen on (default "127.0.0.1:8080")
  -data-dir string     Data directory override
  -range string        Initial date range (today, yesterday, 7d, 30d, all)
  -source string       Restrict to one agent source
  -project string      Restrict to one repository name
  -once                Print one snapshot as JSON and exit

Environment variables:
`, version)
	for _, def := range parser.Registry {
		fmt.Printf("  %-22s %s session directory\n",
			def.EnvVar, def.DisplayName)
	}
	fmt.Printf("  %-22s Data directory (rollups, config)\n",
		"AGENTLENS_DATA_DIR")
	fmt.Println("\nData is stored in ~/.agentlens/ by default.")
}

func runServe(args []string) {
	fs := flag.NewFlagSet("agentlens", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: agentlens [serve] [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	config.RegisterFlags(fs)
	rangeKind := fs.String(
		"range", "30d", "Initial date range")
	source := fs.String(
		"source", "", "Restrict to one agent source")
	project := fs.String(
		"project", "", "Restrict to one repository name")
	once := fs.Bool(
		"once", false, "Print one snapshot as JSON and exit")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}

	req, err := buildRequest(*rangeKind, *source, *project)
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	opts := analytics.Options{
		HideZeroMessage: cfg.HideZeroMessage,
		HideLowMessage:  cfg.HideLowMessage,
	}

	indexers := buildIndexers(cfg)

	if *once {
		runOnce(indexers, opts, req)
		return
	}

	app := newApp(cfg, indexers, opts)
	defer app.close()

	app.refreshAll()
	app.rebuildRollups()

	stopWatcher := app.startFileWatcher()
	defer stopWatcher()
	go app.periodicRefresh()

	app.agg.SetRequest(req)

	srv := server.New(
		cfg.Addr, app.agg, app.tracker, app.backfill, app.targets(),
	)
	fmt.Printf("agentlens %s listening at http://%s\n",
		version, cfg.Addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// runOnce computes a single snapshot in memory and prints it. No
// rollup store, watcher, or server is involved.
func runOnce(
	indexers []*indexer.Indexer,
	opts analytics.Options,
	req analytics.Request,
) {
	sources := make([]analytics.SessionSource, len(indexers))
	for i, ix := range indexers {
		ix.Refresh()
		sources[i] = ix
	}
	agg := analytics.New(sources, nil, opts)
	snap := agg.SetRequest(req)

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Fatalf("encoding snapshot: %v", err)
	}
	fmt.Println(string(out))
}

func buildRequest(
	rangeKind, source, project string,
) (analytics.Request, error) {
	req := analytics.Request{Project: project}

	switch kind := analytics.RangeKind(rangeKind); kind {
	case analytics.RangeToday, analytics.RangeYesterday,
		analytics.RangeLast7Days, analytics.RangeLast30Days,
		analytics.RangeAllTime:
		req.Range = analytics.DateRange{Kind: kind}
	default:
		return req, fmt.Errorf("unknown range %q", rangeKind)
	}

	if source != "" {
		src := session.Source(source)
		if _, ok := parser.AgentBySource(src); !ok {
			return req, fmt.Errorf("unknown source %q", source)
		}
		req.Source = src
	}
	return req, nil
}

func buildIndexers(cfg config.Config) []*indexer.Indexer {
	indexers := make([]*indexer.Indexer, 0, len(parser.Registry))
	for _, def := range parser.Registry {
		indexers = append(
			indexers, indexer.New(def, cfg.AgentDirs[def.Source]))
	}
	return indexers
}

// app owns the long-running components of serve mode.
type app struct {
	cfg      config.Config
	indexers []*indexer.Indexer
	store    *rollup.Store // nil when the database cannot open
	agg      *analytics.Aggregator
	tracker  *readiness.Tracker
	backfill *backfill.Controller

	mu           sync.Mutex
	rebuildTimer *time.Timer
}

func newApp(
	cfg config.Config,
	indexers []*indexer.Indexer,
	opts analytics.Options,
) *app {
	a := &app{cfg: cfg, indexers: indexers}

	// A broken rollup database degrades to the in-memory path
	// rather than failing startup.
	store, err := rollup.Open(cfg.DBPath)
	if err != nil {
		log.Printf("warning: rollup store unavailable: %v", err)
	} else {
		a.store = store
	}

	sources := make([]analytics.SessionSource, len(indexers))
	enabled := make([]session.Source, len(indexers))
	for i, ix := range indexers {
		sources[i] = ix
		enabled[i] = ix.Source()
	}

	var aggStore analytics.RollupStore
	var trackerStore readiness.RollupReadiness
	if a.store != nil {
		aggStore = a.store
		trackerStore = a.store
	}
	a.agg = analytics.New(sources, aggStore, opts)
	a.tracker = readiness.New(enabled, trackerStore, nil)
	a.backfill = backfill.New(nil)

	for _, ix := range indexers {
		src := ix.Source()
		ix.SubscribePhase(func(phase indexer.Phase) {
			a.tracker.SetPhase(src, phase)
		})
		ix.Subscribe(a.scheduleRebuild)
	}
	return a
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

func (a *app) targets() []backfill.Target {
	targets := make([]backfill.Target, len(a.indexers))
	for i, ix := range a.indexers {
		targets[i] = ix
	}
	return targets
}

func (a *app) refreshAll() {
	for _, ix := range a.indexers {
		ix.Refresh()
	}
}

func (a *app) allSessions() []*session.Session {
	var all []*session.Session
	for _, ix := range a.indexers {
		all = append(all, ix.Sessions()...)
	}
	return all
}

// scheduleRebuild coalesces bursts of index changes into one rollup
// rebuild.
func (a *app) scheduleRebuild() {
	if a.store == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rebuildTimer != nil {
		a.rebuildTimer.Stop()
	}
	a.rebuildTimer = time.AfterFunc(rebuildDebounce, a.rebuildRollups)
}

func (a *app) rebuildRollups() {
	if a.store == nil {
		return
	}
	err := a.store.Rebuild(
		context.Background(), a.allSessions(),
		rollup.DefaultCountFilter(), time.Local, time.Now(),
	)
	if err != nil {
		log.Printf("rebuilding rollups: %v", err)
		return
	}
	a.tracker.StoreChanged()
}

func (a *app) startFileWatcher() func() {
	watcher, err := indexer.NewWatcher(watcherDebounce)
	if err != nil {
		log.Printf("warning: file watcher unavailable: %v", err)
		return func() {}
	}

	for _, ix := range a.indexers {
		watcher.Watch(a.cfg.AgentDirs[ix.Source()], ix.Refresh)
	}
	watcher.Start()
	return watcher.Stop
}

func (a *app) periodicRefresh() {
	ticker := time.NewTicker(periodicRefreshInterval)
	defer ticker.Stop()
	for range ticker.C {
		log.Println("Running scheduled refresh...")
		a.refreshAll()
	}
}
