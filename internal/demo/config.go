package demo

import (
	"time"

	"github.com/apsara-ai/derma/internal/domain/types"
)

// Config holds configuration for the demo run
type Config struct {
	BaseURL    string        // Base URL of the service
	NumUploads int           // Number of synthetic images to submit
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	ChatTurns  int           // Number of scripted chat turns per session
	LogFile    string        // Log file for demo output
	Verbose    bool          // Enable verbose logging
}

// Upload pairs a generated image with its generation parameters, so runs
// can report which synthetic profiles produced which assessments.
type Upload struct {
	Name  string
	Image []byte
}

// AnalyzeResult is the per-upload outcome.
type AnalyzeResult struct {
	Upload  string
	Result  types.AnalysisResult
	Err     error
	Elapsed time.Duration
}

// Stats holds demo run statistics
type Stats struct {
	UploadsGenerated  int
	UploadsSubmitted  int
	UploadsSuccessful int
	UploadsFailed     int
	ChatSessions      int
	ChatTurns         int
	SkinTypeCounts    map[string]int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
