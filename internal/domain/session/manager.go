// Package session manages conversational state: a store of live sessions,
// a keyword responder, and the manager tying them to image analysis.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apsara-ai/derma/internal/domain/classify"
	"github.com/apsara-ai/derma/internal/domain/descriptor"
	"github.com/apsara-ai/derma/internal/domain/model"
	"github.com/apsara-ai/derma/internal/domain/recommend"
	"github.com/apsara-ai/derma/internal/domain/types"
	"github.com/apsara-ai/derma/pkg/logger"
	"github.com/apsara-ai/derma/pkg/metrics"
)

// Reply is the manager's answer to a posted message.
type Reply struct {
	Response    string
	SessionID   string
	Suggestions []string
}

// ManagerOption applies a configuration option to the Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger used by the manager.
func WithManagerLogger(log logger.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// Manager orchestrates chat turns and image attachment over the store.
type Manager struct {
	store      *Store
	extractor  descriptor.Extractor
	classifier classify.Classifier
	responder  *Responder
	log        logger.Logger
}

// NewManager creates a Manager over the given store and analysis pipeline.
func NewManager(store *Store, ex descriptor.Extractor, cl classify.Classifier, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		extractor:  ex,
		classifier: cl,
		responder:  NewResponder(),
		log:        logger.Named("session-manager"),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// PostMessage appends a user turn, generates a reply, and appends the
// assistant turn, atomically per session. An absent or unknown session id
// starts a fresh session whose id is returned to the caller.
func (m *Manager) PostMessage(ctx context.Context, sessionID, text string) (Reply, error) {
	id := sessionID
	if id != "" {
		if err := m.store.View(id, func(*Session) {}); err != nil {
			id = ""
		}
	}
	if id == "" {
		sess := m.store.Create()
		id = sess.ID
		m.log.Debug(ctx, "created session", logger.String("session_id", id))
	}

	var reply Reply
	appendTurns := func(sess *Session) error {
		now := time.Now()
		response, suggestions := m.responder.Respond(sess, text)

		sess.Turns = append(sess.Turns,
			model.Turn{Role: model.RoleUser, Text: text, Timestamp: now},
			model.Turn{Role: model.RoleAssistant, Text: response, Timestamp: now},
		)
		sess.Suggestions = suggestions

		reply = Reply{Response: response, SessionID: sess.ID, Suggestions: suggestions}
		return nil
	}

	err := m.store.Update(id, appendTurns)
	if errors.Is(err, ErrNotFound) {
		// The session expired between the existence check above and the
		// update. An expired session answers like an unknown one, so start
		// fresh instead of surfacing the race to the caller.
		sess := m.store.Create()
		m.log.Debug(ctx, "session expired mid-request, created replacement",
			logger.String("session_id", sess.ID))
		err = m.store.Update(sess.ID, appendTurns)
	}
	if err != nil {
		return Reply{}, fmt.Errorf("post message: %w", err)
	}

	metrics.RecordSessionTurn()
	return reply, nil
}

// AttachImage analyzes the image and merges the result into an existing
// session: the assessment slot is replaced and an assistant turn summarizing
// it is appended. Unknown session ids fail with ErrNotFound and never create
// a session. A frame without a detectable face still produces a degraded
// assessment rather than an error.
func (m *Manager) AttachImage(ctx context.Context, sessionID string, data []byte) (Reply, error) {
	// Verify the session before doing any analysis work, so a bad id
	// fails fast and an orphan result is never produced.
	if err := m.store.View(sessionID, func(*Session) {}); err != nil {
		return Reply{}, fmt.Errorf("attach image: %w", err)
	}

	desc, err := m.extractor.Extract(data)
	if err != nil && !errors.Is(err, descriptor.ErrNoFaceDetected) {
		return Reply{}, fmt.Errorf("attach image: %w", err)
	}

	assessment, err := m.classifier.Classify(ctx, desc)
	if err != nil {
		return Reply{}, fmt.Errorf("attach image: %w", err)
	}

	response := summarizeAssessment(assessment, desc.FaceDetected)

	err = m.store.Update(sessionID, func(sess *Session) error {
		a := assessment
		sess.LastAssessment = &a
		sess.Turns = append(sess.Turns, model.Turn{
			Role:      model.RoleAssistant,
			Text:      response,
			Timestamp: time.Now(),
		})
		return nil
	})
	if err != nil {
		return Reply{}, fmt.Errorf("attach image: %w", err)
	}

	metrics.RecordSessionTurn()
	return Reply{
		Response:    response,
		SessionID:   sessionID,
		Suggestions: []string{"Recommend products for me", "Explain my concerns", "What routine should I follow?"},
	}, nil
}

// exportTurnLimit caps how much history the export endpoint returns.
const exportTurnLimit = 10

// Export returns a snapshot of the session for the export endpoint: the
// profile, pending suggestions, and the most recent turns. The skin type
// comes from the photo assessment when one exists, otherwise from what the
// user has stated in conversation.
func (m *Manager) Export(sessionID string) (types.SessionExport, error) {
	var out types.SessionExport
	err := m.store.View(sessionID, func(sess *Session) {
		out = types.SessionExport{
			SessionID:   sess.ID,
			CreatedAt:   sess.CreatedAt.UTC().Format(time.RFC3339),
			SkinType:    sess.StatedSkinType,
			Suggestions: sess.Suggestions,
		}
		if sess.LastAssessment != nil {
			out.SkinType = sess.LastAssessment.SkinType
			for _, c := range sess.LastAssessment.Concerns {
				out.Concerns = append(out.Concerns, types.ConcernItem{Name: c.Name, Confidence: c.Confidence})
			}
		}
		turns := sess.Turns
		if len(turns) > exportTurnLimit {
			turns = turns[len(turns)-exportTurnLimit:]
		}
		out.Turns = make([]types.TurnItem, 0, len(turns))
		for _, t := range turns {
			out.Turns = append(out.Turns, types.TurnItem{
				Role:      t.Role,
				Text:      t.Text,
				Timestamp: t.Timestamp.UTC().Format(time.RFC3339),
			})
		}
	})
	if err != nil {
		return types.SessionExport{}, fmt.Errorf("export session: %w", err)
	}
	return out, nil
}

// Reset discards the session. Resetting an unknown id is not an error.
func (m *Manager) Reset(sessionID string) {
	m.store.Delete(sessionID)
}

func summarizeAssessment(a model.SkinAssessment, faceDetected bool) string {
	var b strings.Builder
	b.WriteString("Image analysis complete. ")
	if !faceDetected {
		b.WriteString("I couldn't confidently locate a face, so this reading is approximate. ")
	}
	b.WriteString(fmt.Sprintf("Skin type: %s.", a.SkinType))

	if len(a.Concerns) > 0 {
		names := make([]string, 0, len(a.Concerns))
		for _, c := range a.Concerns {
			names = append(names, strings.ReplaceAll(c.Name, "_", " "))
		}
		b.WriteString(" Detected concerns: ")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString(".")
	} else {
		b.WriteString(" No standout concerns detected.")
	}

	b.WriteString(" ")
	b.WriteString(recommend.RoutineSummary(a))
	return b.String()
}
