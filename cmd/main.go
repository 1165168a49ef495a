// divtracker looks up The Division player statistics by display name.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	flag "github.com/spf13/pflag"

	"github.com/okian/divtracker/internal/adapters/http/api"
	"github.com/okian/divtracker/internal/adapters/http/swagger"
	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/logger"
)

var version = "dev"

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	// Lookups can wait on a browser session, so writes get the browser deadline on top.
	writeTimeoutSlack = 10 * time.Second
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		os.Exit(cmdServe(os.Args[2:]))
	case "lookup":
		os.Exit(cmdLookup(os.Args[2:]))
	case "names":
		os.Exit(cmdNames(os.Args[2:]))
	case "version":
		fmt.Printf("divtracker %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: divtracker <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                                   Start the HTTP API")
	fmt.Println("  lookup --game N [--format F] <name>     Look up every profile using <name>")
	fmt.Println("  names <profile id>                      Show the recorded names of a profile")
	fmt.Println("  version                                 Show version")
	fmt.Println("  help                                    Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <path>    YAML configuration file (or DIVTRACKER_CONFIG)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  divtracker serve --config /etc/divtracker/config.yml")
	fmt.Println("  divtracker lookup --game 2 --format json Alice")
	fmt.Println("  divtracker names 6d1f0b2e-3c1a-4f5e-9a7b-1c2d3e4f5a6b")
}

func cmdServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	addr := fs.String("addr", "", "listen address (overrides config)")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := setup(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	log := logger.Get()

	svc, err := build(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		return 1
	}
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return 1
	}
	defer svc.Stop()

	r := chi.NewRouter()
	swagger.Register(r)
	r.Mount("/", api.NewServer(svc, logger.Named("api")).Router())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.BrowserTimeout() + writeTimeoutSlack,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			return 1
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return 0
}

func cmdLookup(args []string) int {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	gameFlag := fs.StringP("game", "g", "", "game: 1 or 2")
	format := fs.StringP("format", "f", formatText, "output format: text, json or yaml")
	_ = fs.Parse(args)

	if fs.NArg() == 0 || *gameFlag == "" {
		fmt.Fprintln(os.Stderr, "Usage: divtracker lookup --game <1|2> [--format text|json|yaml] <player name>")
		return 2
	}
	game, err := model.ParseGame(*gameFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	if !validFormat(*format) {
		fmt.Fprintf(os.Stderr, "unknown format: %s\n", *format)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := open(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer svc.Stop()

	recs, err := svc.GetStats(ctx, game, joinArgs(fs.Args()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "lookup failed: %v\n", err)
		return 1
	}
	if err := render(os.Stdout, *format, recs); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

func cmdNames(args []string) int {
	fs := flag.NewFlagSet("names", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	format := fs.StringP("format", "f", formatText, "output format: text, json or yaml")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: divtracker names [--format text|json|yaml] <profile id>")
		return 2
	}
	if !validFormat(*format) {
		fmt.Fprintf(os.Stderr, "unknown format: %s\n", *format)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := open(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer svc.Stop()

	history, err := svc.NameHistory(ctx, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if err := renderNames(os.Stdout, *format, history); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}
