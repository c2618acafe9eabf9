package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/coworkhq/coworkd/internal/config"
	"github.com/coworkhq/coworkd/internal/feedback"
	"github.com/coworkhq/coworkd/internal/lockfile"
	"github.com/coworkhq/coworkd/internal/monitor"
	"github.com/coworkhq/coworkd/internal/orchestrator"
	"github.com/coworkhq/coworkd/internal/rendezvous"
	"github.com/coworkhq/coworkd/internal/server"
	"github.com/coworkhq/coworkd/internal/skills"
	"github.com/coworkhq/coworkd/internal/store"
	"github.com/coworkhq/coworkd/internal/tools"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"
	// Commit is set via -ldflags at build time.
	Commit = "unknown"
	// BuildTime is set via -ldflags at build time.
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "init":
		initCmd(os.Args[2:])
	case "run":
		runCmd(os.Args[2:])
	case "version":
		fmt.Printf("coworkd %s (%s) %s\n", Version, Commit, BuildTime)
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `coworkd

Usage:
  coworkd init [flags]
  coworkd run [flags]
  coworkd version

Commands:
  init      Write a config file with the given settings.
  run       Run the session coordination service using the local config file.
  version   Print build information.

`)
}

func initCmd(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)

	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	listenAddr := fs.String("listen", config.DefaultListenAddr, "HTTP listen address (host:port)")
	stateDir := fs.String("state-dir", "", "State directory (default: ~/.coworkd)")
	logFormat := fs.String("log-format", "json", "Log format: json|text")
	logLevel := fs.String("log-level", "info", "Log level: debug|info|warn|error")

	_ = fs.Parse(args)

	cfg := &config.Config{
		ListenAddr: *listenAddr,
		StateDir:   *stateDir,
		LogFormat:  *logFormat,
		LogLevel:   *logLevel,
	}
	if err := config.Save(filepath.Clean(*cfgPath), cfg); err != nil {
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config written: %s\n", filepath.Clean(*cfgPath))
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	_ = fs.Parse(args)

	cfg, err := config.Load(filepath.Clean(*cfgPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg)

	stateDir := cfg.ResolveStateDir()
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create state dir: %v\n", err)
		os.Exit(1)
	}
	lock, err := lockfile.Acquire(filepath.Join(stateDir, "coworkd.lock"))
	if err != nil {
		if errors.Is(err, lockfile.ErrAlreadyLocked) {
			fmt.Fprintf(os.Stderr, "another coworkd instance owns %s\n", stateDir)
		} else {
			fmt.Fprintf(os.Stderr, "failed to acquire lock: %v\n", err)
		}
		os.Exit(1)
	}
	defer func() { _ = lock.Release() }()

	st, err := store.Open(filepath.Join(stateDir, "coworkd.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	runTimeout := cfg.AgentRunTimeout()
	orch, err := orchestrator.New(orchestrator.Options{
		Logger:         log,
		Store:          st,
		DefaultTimeout: runTimeout,
		Retention:      cfg.AgentRetention(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init orchestrator: %v\n", err)
		os.Exit(1)
	}
	defer orch.Close()

	questions := rendezvous.New(rendezvous.Options{
		Logger:        log,
		Timeout:       cfg.QuestionTimeout(),
		MaxAge:        cfg.QuestionMaxAge(),
		SweepInterval: cfg.QuestionSweepInterval(),
	})
	defer questions.Close()

	// Result delivery must outlive the run budget, or a delegated run would
	// time out on the rendezvous before its own deadline.
	results := rendezvous.New(rendezvous.Options{
		Logger:        log,
		Timeout:       runTimeout,
		MaxAge:        2 * runTimeout,
		SweepInterval: cfg.QuestionSweepInterval(),
	})
	defer results.Close()

	resolver, err := skills.NewResolver(skills.Options{Logger: log, Store: st})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init skills: %v\n", err)
		os.Exit(1)
	}
	agg, err := feedback.New(feedback.Options{Logger: log, Store: st})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init feedback: %v\n", err)
		os.Exit(1)
	}

	router := tools.NewRouter(log)
	if err := tools.BindCore(router, tools.BindOptions{
		Logger:       log,
		Store:        st,
		Orchestrator: orch,
		Questions:    questions,
		Results:      results,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind tools: %v\n", err)
		os.Exit(1)
	}
	log.Info("tools bound", "tools", router.Names())

	srv, err := server.New(server.Options{
		Logger:       log,
		Store:        st,
		Orchestrator: orch,
		Questions:    questions,
		Skills:       resolver,
		Feedback:     agg,
		Monitor:      monitor.NewService(log),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init server: %v\n", err)
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("coworkd listening", "addr", cfg.Addr(), "version", Version)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "err", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "server exited with error: %v\n", err)
			os.Exit(1)
		}
	}
}
