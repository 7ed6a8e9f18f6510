package demo

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/apsara-ai/derma/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "demo_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the demo client.
func ShowHelp() {
	os.Stdout.WriteString(`Derma Demo Client
=================

Submits synthetic face images to a running derma service and walks a
scripted chat session against it.

Usage:
  go run cmd/demo-client/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8880")
  -uploads int
        Number of synthetic images to generate and submit (default 24)
  -workers int
        Number of concurrent workers (default CPU cores)
  -turns int
        Number of scripted chat turns (default 6)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file for demo output (default: demo_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Demo with default settings
  go run cmd/demo-client/main.go

  # Heavier load against a remote instance
  go run cmd/demo-client/main.go -uploads 200 -workers 16 -url http://derma.internal:8880

  # Verbose single-shot run
  go run cmd/demo-client/main.go -uploads 6 -verbose
`)
}
