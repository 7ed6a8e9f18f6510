// Package types contains the JSON-facing result shapes shared across the application
package types

// ConcernItem is one detected concern with its confidence.
type ConcernItem struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ProductItem mirrors the catalog product shape returned to clients.
type ProductItem struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Brand      string   `json:"brand"`
	Category   string   `json:"category"`
	Concerns   []string `json:"concerns"`
	SkinTypes  []string `json:"skin_types"`
	Price      string   `json:"price,omitempty"`
	URL        string   `json:"url,omitempty"`
	MatchScore float64  `json:"match_score"`
}

// VideoItem is one third-party review video.
type VideoItem struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Channel   string `json:"channel"`
	Thumbnail string `json:"thumbnail"`
}

// ImageQuality reports the informational quality flags from extraction.
type ImageQuality struct {
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	FaceDetected bool    `json:"face_detected"`
	QualityScore float64 `json:"quality_score"`
}

// AnalysisResult is the assembled analyze response.
type AnalysisResult struct {
	AnalysisID       string        `json:"analysis_id"`
	SkinType         string        `json:"skin_type"`
	Concerns         []ConcernItem `json:"concerns"`
	Recommendations  string        `json:"recommendations"`
	Products         []ProductItem `json:"products"`
	Videos           []VideoItem   `json:"videos"`
	ImagePath        string        `json:"image_path"`
	Quality          ImageQuality  `json:"quality"`
	ProcessingTimeMS int64         `json:"processing_time_ms"`
}

// ChatReply is the response to a posted chat message.
type ChatReply struct {
	Response    string   `json:"response"`
	SessionID   string   `json:"session_id"`
	Suggestions []string `json:"suggestions"`
}

// TurnItem is one exported conversation turn.
type TurnItem struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// SessionExport is the session snapshot returned by the export endpoint.
type SessionExport struct {
	SessionID   string        `json:"session_id"`
	CreatedAt   string        `json:"created_at"`
	SkinType    string        `json:"skin_type,omitempty"`
	Concerns    []ConcernItem `json:"concerns,omitempty"`
	Turns       []TurnItem    `json:"turns"`
	Suggestions []string      `json:"suggestions,omitempty"`
}

// BackendInfo describes the classification backend.
type BackendInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Available bool   `json:"available"`
	Source    string `json:"source"` // builtin or artifact path
}
