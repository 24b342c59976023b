package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/kk-code-lab/packsync/internal/admin"
	"github.com/kk-code-lab/packsync/internal/app"
	"github.com/kk-code-lab/packsync/internal/clock"
	"github.com/kk-code-lab/packsync/internal/fetch"
	"github.com/kk-code-lab/packsync/internal/storage/fs"
	"github.com/kk-code-lab/packsync/internal/store"
	"github.com/kk-code-lab/packsync/internal/syncer"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	showVersionShort := flag.Bool("v", false, "Print version and exit (shorthand)")
	addr := flag.String("addr", ":9400", "Admin HTTP listen address")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	manifestURL := flag.String("manifest-url", "", "Remote manifest URL")
	storeKind := flag.String("store", "file", "Manifest store: file|sqlite")
	adminToken := flag.String("admin-token", "", "Admin API token (required for server mode)")
	mode := flag.String("mode", "server", "Mode: server|status|check|commit|verify")
	jsonOut := flag.Bool("json", false, "Output reports as JSON")
	showModeHelp := flag.Bool("mode-help", false, "Show help for the selected mode")
	flag.Parse()

	if *showVersion || *showVersionShort {
		fmt.Printf("packsync %s (commit %s)\n", app.Version, app.BuildCommit)
		return
	}
	if *showModeHelp {
		printModeHelp(*mode)
		return
	}

	if flag.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "unknown arguments:", flag.Args())
		os.Exit(2)
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "data dir error: %v\n", err)
		os.Exit(1)
	}

	layout := fs.NewLayout(*dataDir)
	handler, closeStore, err := openStore(*storeKind, layout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store open error: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	var fetcher fetch.Fetcher
	if *manifestURL != "" {
		httpFetcher, err := fetch.NewHTTPFetcher(*manifestURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fetcher error: %v\n", err)
			os.Exit(1)
		}
		fetcher = httpFetcher
	}

	mgr, err := syncer.New(syncer.Options{Fetcher: fetcher, Store: handler})
	if err != nil {
		fmt.Fprintf(os.Stderr, "syncer init error: %v\n", err)
		os.Exit(1)
	}

	if *mode != "server" {
		if err := runOps(*mode, layout, handler, mgr, *jsonOut); err != nil {
			exitCode := 1
			quiet := false
			var coded *exitCodeError
			if errors.As(err, &coded) {
				exitCode = coded.ExitCode()
				quiet = coded.Quiet()
			}
			if !quiet {
				fmt.Fprintf(os.Stderr, "ops error: %v\n", err)
			}
			os.Exit(exitCode)
		}
		return
	}

	if *adminToken == "" {
		fmt.Fprintln(os.Stderr, "server mode requires -admin-token")
		os.Exit(2)
	}

	// The admin API serves the held manifest, so persisted state must be
	// loaded before the first request can arrive.
	if err := loadHeld(context.Background(), mgr); err != nil {
		fmt.Fprintf(os.Stderr, "load manifest error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("packsync %s (commit %s)\n", app.Version, app.BuildCommit)
	adminHandler := &admin.Handler{
		Layout:    layout,
		Manager:   mgr,
		Store:     handler,
		AuthToken: *adminToken,
	}
	if err := http.ListenAndServe(*addr, admin.LoggingMiddleware(adminHandler, clock.RealClock{})); err != nil {
		fmt.Fprintf(os.Stderr, "listen error: %v\n", err)
		os.Exit(1)
	}
}

func openStore(kind string, layout fs.Layout) (store.Handler, func(), error) {
	switch kind {
	case "file":
		s, err := store.NewFileStore(layout.ManifestPath, nil)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "sqlite":
		s, err := store.OpenSQLite(filepath.Join(layout.Root, "manifest.db"))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", kind)
	}
}
