package demo

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/apsara-ai/derma/pkg/logger"
)

// Run executes the complete demo: health check, concurrent analyze
// submissions, then a scripted chat session with an image attachment.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime:      time.Now(),
		SkinTypeCounts: make(map[string]int),
	}

	logger.Get().Info(ctx, "starting derma demo run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("uploads", config.NumUploads),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()))

	client := NewClient(config.BaseURL, config.Timeout)

	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	uploads, err := GenerateUploads(config.NumUploads, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("upload generation failed: %w", err)
	}
	stats.UploadsGenerated = len(uploads)

	if err := submitUploads(ctx, config, client, uploads, stats); err != nil {
		return fmt.Errorf("upload submission failed: %w", err)
	}

	if len(uploads) > 0 {
		if err := runChatSession(ctx, config, client, uploads[0], stats); err != nil {
			return fmt.Errorf("chat session failed: %w", err)
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "demo completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.BaseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	hc := &http.Client{Timeout: config.Timeout}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	// Any 200 counts as healthy; the endpoint serves Prometheus metrics.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// submitUploads pushes the generated images through a worker pool.
func submitUploads(ctx context.Context, config *Config, client *Client, uploads []Upload, stats *Stats) error {
	logger.Get().Info(ctx, "submitting uploads", logger.Int("count", len(uploads)))

	jobs := make(chan Upload, config.Workers)
	results := make(chan AnalyzeResult, len(uploads))

	var wg sync.WaitGroup
	for w := 0; w < config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for upload := range jobs {
				start := time.Now()
				result, err := client.Analyze(ctx, upload)
				results <- AnalyzeResult{
					Upload:  upload.Name,
					Result:  result,
					Err:     err,
					Elapsed: time.Since(start),
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, upload := range uploads {
			select {
			case <-ctx.Done():
				return
			case jobs <- upload:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		stats.UploadsSubmitted++
		if r.Err != nil {
			stats.UploadsFailed++
			logger.Get().Warn(ctx, "upload failed",
				logger.String("upload", r.Upload),
				logger.Error(r.Err))
			continue
		}
		stats.UploadsSuccessful++
		stats.SkinTypeCounts[r.Result.SkinType]++
		if config.Verbose {
			logger.Get().Info(ctx, "upload analyzed",
				logger.String("upload", r.Upload),
				logger.String("skin_type", r.Result.SkinType),
				logger.Int("concerns", len(r.Result.Concerns)),
				logger.Int("products", len(r.Result.Products)),
				logger.Duration("elapsed", r.Elapsed))
		}
	}

	return nil
}

// runChatSession walks the scripted conversation, attaching one image
// midway so later turns can reference the analysis.
func runChatSession(ctx context.Context, config *Config, client *Client, upload Upload, stats *Stats) error {
	logger.Get().Info(ctx, "running scripted chat session")

	script := ChatScript(config.ChatTurns)
	sessionID := ""

	for i, message := range script {
		reply, err := client.Chat(ctx, sessionID, message)
		if err != nil {
			return fmt.Errorf("chat turn %d: %w", i, err)
		}
		sessionID = reply.SessionID
		stats.ChatTurns++

		if config.Verbose {
			logger.Get().Info(ctx, "chat turn",
				logger.String("message", message),
				logger.String("response", truncate(reply.Response, 120)))
		}

		// Attach the image after the first turn so the "my results"
		// turn in the script has something to reference.
		if i == 0 {
			attach, err := client.AttachImage(ctx, sessionID, upload)
			if err != nil {
				return fmt.Errorf("attach image: %w", err)
			}
			if config.Verbose {
				logger.Get().Info(ctx, "image attached",
					logger.String("response", truncate(attach.Response, 120)))
			}
		}
	}
	stats.ChatSessions++

	export, err := client.ExportSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("export session: %w", err)
	}
	logger.Get().Info(ctx, "session exported",
		logger.String("session_id", export.SessionID),
		logger.String("skin_type", export.SkinType),
		logger.Int("turns", len(export.Turns)))

	return nil
}

// displayFinalStats logs the run summary.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "demo run summary",
		logger.Int("uploads_generated", stats.UploadsGenerated),
		logger.Int("uploads_submitted", stats.UploadsSubmitted),
		logger.Int("uploads_successful", stats.UploadsSuccessful),
		logger.Int("uploads_failed", stats.UploadsFailed),
		logger.Int("chat_sessions", stats.ChatSessions),
		logger.Int("chat_turns", stats.ChatTurns),
		logger.Any("skin_type_counts", stats.SkinTypeCounts),
		logger.Duration("duration", stats.Duration))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
