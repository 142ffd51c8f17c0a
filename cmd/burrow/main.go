// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Burrow is a small Matrix homeserver backed by a flat-file JSON object
// store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/wingedpig/burrow/internal/app"
)

var version = "0.4"

func main() {
	var (
		dataDir     string
		configFile  string
		verbose     bool
		showVersion bool
	)

	flag.StringVar(&dataDir, "d", "", "Path to the data directory (required)")
	flag.StringVar(&configFile, "c", "", "Import a config file into the database at startup")
	flag.BoolVar(&verbose, "v", false, "Verbose output (debug log level)")
	flag.BoolVar(&showVersion, "V", false, "Show version")
	flag.Parse()

	if showVersion {
		fmt.Printf("burrow %s\n", version)
		os.Exit(0)
	}

	if dataDir == "" {
		fmt.Fprintln(os.Stderr, "Error: -d <data-dir> is required")
		flag.Usage()
		os.Exit(1)
	}

	application, err := app.New(app.Options{
		DataDir:    dataDir,
		ConfigFile: configFile,
		Verbose:    verbose,
		Version:    version,
	})
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
