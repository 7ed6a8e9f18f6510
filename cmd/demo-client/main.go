package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/apsara-ai/derma/internal/demo"
)

// Default configuration constants.
const (
	defaultNumUploads  = 24
	defaultChatTurns   = 6
	defaultTimeout     = 30 * time.Second
	defaultDemoTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:8880", "Base URL of the service")
		numUploads = flag.Int("uploads", defaultNumUploads, "Number of synthetic images to generate and submit")
		workers    = flag.Int("workers", runtime.NumCPU(), "Number of concurrent workers")
		chatTurns  = flag.Int("turns", defaultChatTurns, "Number of scripted chat turns")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile    = flag.String("log", "", "Log file for demo output (default: demo_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		demo.ShowHelp()
		return
	}

	if err := demo.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultDemoTimeout)
	defer cancel()

	config := &demo.Config{
		BaseURL:    *baseURL,
		NumUploads: *numUploads,
		Workers:    *workers,
		ChatTurns:  *chatTurns,
		Timeout:    *timeout,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if err := demo.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Demo failed: " + err.Error() + "\n")
		return
	}
}
