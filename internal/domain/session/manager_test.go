package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/apsara-ai/derma/internal/domain/descriptor"
	"github.com/apsara-ai/derma/internal/domain/model"
	"github.com/apsara-ai/derma/internal/domain/session"
	"github.com/apsara-ai/derma/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type stubExtractor struct {
	desc model.ImageDescriptor
	err  error
}

func (s *stubExtractor) Extract(_ []byte) (model.ImageDescriptor, error) {
	return s.desc, s.err
}

type stubClassifier struct {
	assessment model.SkinAssessment
	err        error
}

func (s *stubClassifier) Classify(_ context.Context, _ model.ImageDescriptor) (model.SkinAssessment, error) {
	return s.assessment, s.err
}

func oilySetup() (*stubExtractor, *stubClassifier) {
	ex := &stubExtractor{desc: model.ImageDescriptor{FaceDetected: true, QualityScore: 0.9}}
	cl := &stubClassifier{assessment: model.SkinAssessment{
		SkinType: model.SkinTypeOily,
		Concerns: []model.Concern{{Name: model.ConcernAcne, Confidence: 0.8}},
	}}
	return ex, cl
}

func TestManager_PostMessage(t *testing.T) {
	Convey("Given a manager over a fresh store", t, func() {
		ctx := context.Background()
		store := session.NewStore()
		ex, cl := oilySetup()
		mgr := session.NewManager(store, ex, cl)

		Convey("When a message is posted without a session id", func() {
			reply, err := mgr.PostMessage(ctx, "", "hello")

			Convey("Then a fresh session id is minted", func() {
				So(err, ShouldBeNil)
				So(reply.SessionID, ShouldNotBeEmpty)
				So(reply.Response, ShouldNotBeEmpty)
			})

			Convey("Then a second message with that id reuses the session", func() {
				again, err := mgr.PostMessage(ctx, reply.SessionID, "tell me about retinol")
				So(err, ShouldBeNil)
				So(again.SessionID, ShouldEqual, reply.SessionID)

				export, err := mgr.Export(reply.SessionID)
				So(err, ShouldBeNil)
				So(export.Turns, ShouldHaveLength, 4)
				So(export.Turns[0].Role, ShouldEqual, model.RoleUser)
				So(export.Turns[1].Role, ShouldEqual, model.RoleAssistant)
				So(export.Turns[2].Role, ShouldEqual, model.RoleUser)
				So(export.Turns[3].Role, ShouldEqual, model.RoleAssistant)
			})
		})

		Convey("When a message is posted with an unknown session id", func() {
			reply, err := mgr.PostMessage(ctx, "nope", "hello")

			Convey("Then a new session is started instead", func() {
				So(err, ShouldBeNil)
				So(reply.SessionID, ShouldNotEqual, "nope")
				So(reply.SessionID, ShouldNotBeEmpty)
			})
		})

		Convey("When the message matches the knowledge base", func() {
			reply, err := mgr.PostMessage(ctx, "", "I keep getting pimples on my chin")

			Convey("Then a concern-specific answer comes back with suggestions", func() {
				So(err, ShouldBeNil)
				So(reply.Response, ShouldContainSubstring, "salicylic")
				So(reply.Suggestions, ShouldNotBeEmpty)
			})
		})

		Convey("When the message asks about prior results and an assessment exists", func() {
			first, err := mgr.PostMessage(ctx, "", "hello")
			So(err, ShouldBeNil)
			_, err = mgr.AttachImage(ctx, first.SessionID, []byte("img"))
			So(err, ShouldBeNil)

			reply, err := mgr.PostMessage(ctx, first.SessionID, "what were my results?")

			Convey("Then the reply references the last assessment", func() {
				So(err, ShouldBeNil)
				So(reply.Response, ShouldContainSubstring, "oily")
				So(reply.Response, ShouldContainSubstring, "acne")
			})
		})

		Convey("When the user describes their skin without a photo", func() {
			first, err := mgr.PostMessage(ctx, "", "my skin gets really greasy by noon")
			So(err, ShouldBeNil)
			_, err = mgr.PostMessage(ctx, first.SessionID, "and I have dark spots from old breakouts")
			So(err, ShouldBeNil)

			reply, err := mgr.PostMessage(ctx, first.SessionID, "so what did you find about my skin?")

			Convey("Then the stated profile answers in place of an analysis", func() {
				So(err, ShouldBeNil)
				So(reply.Response, ShouldContainSubstring, "haven't analyzed a photo")
				So(reply.Response, ShouldContainSubstring, "oily")
				So(reply.Response, ShouldContainSubstring, "dark spots")
			})

			Convey("Then the export carries the stated skin type", func() {
				export, err := mgr.Export(first.SessionID)
				So(err, ShouldBeNil)
				So(export.SkinType, ShouldEqual, model.SkinTypeOily)
				So(export.Concerns, ShouldBeEmpty)
			})
		})
	})
}

func TestManager_AttachImage(t *testing.T) {
	Convey("Given a manager over a fresh store", t, func() {
		ctx := context.Background()
		store := session.NewStore()
		ex, cl := oilySetup()
		mgr := session.NewManager(store, ex, cl)

		Convey("When an image is attached to an unknown session", func() {
			_, err := mgr.AttachImage(ctx, "ghost", []byte("img"))

			Convey("Then it fails with ErrNotFound", func() {
				So(errors.Is(err, session.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then no session is created", func() {
				So(store.Len(), ShouldEqual, 0)
			})
		})

		Convey("When an image is attached to a live session", func() {
			first, err := mgr.PostMessage(ctx, "", "hello")
			So(err, ShouldBeNil)

			reply, err := mgr.AttachImage(ctx, first.SessionID, []byte("img"))

			Convey("Then the reply summarizes the assessment", func() {
				So(err, ShouldBeNil)
				So(reply.Response, ShouldContainSubstring, "oily")
			})

			Convey("Then the assessment is stored and a turn appended", func() {
				export, err := mgr.Export(first.SessionID)
				So(err, ShouldBeNil)
				So(export.SkinType, ShouldEqual, model.SkinTypeOily)
				So(export.Turns, ShouldHaveLength, 3)
				So(export.Turns[2].Role, ShouldEqual, model.RoleAssistant)
			})
		})

		Convey("When a second image replaces the assessment", func() {
			first, err := mgr.PostMessage(ctx, "", "hello")
			So(err, ShouldBeNil)
			_, err = mgr.AttachImage(ctx, first.SessionID, []byte("img"))
			So(err, ShouldBeNil)

			cl.assessment = model.SkinAssessment{SkinType: model.SkinTypeDry}
			_, err = mgr.AttachImage(ctx, first.SessionID, []byte("img2"))
			So(err, ShouldBeNil)

			export, err := mgr.Export(first.SessionID)
			So(err, ShouldBeNil)
			So(export.SkinType, ShouldEqual, model.SkinTypeDry)
		})

		Convey("When no face is detected", func() {
			ex.err = descriptor.ErrNoFaceDetected
			ex.desc.FaceDetected = false
			first, err := mgr.PostMessage(ctx, "", "hello")
			So(err, ShouldBeNil)

			reply, err := mgr.AttachImage(ctx, first.SessionID, []byte("img"))

			Convey("Then a degraded assessment still succeeds", func() {
				So(err, ShouldBeNil)
				So(reply.Response, ShouldContainSubstring, "approximate")
			})
		})

		Convey("When the image is unreadable", func() {
			ex.err = descriptor.ErrUnreadableImage
			first, err := mgr.PostMessage(ctx, "", "hello")
			So(err, ShouldBeNil)

			_, err = mgr.AttachImage(ctx, first.SessionID, []byte("junk"))

			Convey("Then the failure is surfaced", func() {
				So(errors.Is(err, descriptor.ErrUnreadableImage), ShouldBeTrue)
			})

			Convey("Then the session holds no assessment", func() {
				export, eerr := mgr.Export(first.SessionID)
				So(eerr, ShouldBeNil)
				So(export.SkinType, ShouldBeEmpty)
			})
		})
	})
}

func TestManager_Reset(t *testing.T) {
	Convey("Given a live session", t, func() {
		ctx := context.Background()
		store := session.NewStore()
		ex, cl := oilySetup()
		mgr := session.NewManager(store, ex, cl)

		first, err := mgr.PostMessage(ctx, "", "hello")
		So(err, ShouldBeNil)

		Convey("When the session is reset", func() {
			mgr.Reset(first.SessionID)

			Convey("Then exporting it fails with ErrNotFound", func() {
				_, err := mgr.Export(first.SessionID)
				So(errors.Is(err, session.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then resetting again is harmless", func() {
				mgr.Reset(first.SessionID)
				So(store.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestManager_PostMessage_ExpiredMidRequest(t *testing.T) {
	Convey("Given a session that outlives its existence check but not its update", t, func() {
		ctx := context.Background()
		base := time.Unix(1700000000, 0)

		// The clock stays fresh for the creation and the existence check,
		// then expires the session for every later reading.
		var mu sync.Mutex
		calls := 0
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls <= 2 {
				return base
			}
			return base.Add(2 * time.Minute)
		}

		store := session.NewStore(
			session.WithIdleTimeout(time.Minute),
			session.WithStoreClock(clock),
		)
		ex, cl := oilySetup()
		mgr := session.NewManager(store, ex, cl)

		stale := store.Create()

		Convey("When a message is posted against it", func() {
			reply, err := mgr.PostMessage(ctx, stale.ID, "hello")

			Convey("Then a replacement session answers instead of an error", func() {
				So(err, ShouldBeNil)
				So(reply.SessionID, ShouldNotBeEmpty)
				So(reply.SessionID, ShouldNotEqual, stale.ID)
				So(reply.Response, ShouldNotBeEmpty)
			})

			Convey("Then the stale session is gone and the turns live on the new one", func() {
				So(err, ShouldBeNil)
				So(store.Len(), ShouldEqual, 1)
				export, eerr := mgr.Export(reply.SessionID)
				So(eerr, ShouldBeNil)
				So(export.Turns, ShouldHaveLength, 2)
			})
		})
	})
}

func TestManager_ConcurrentTurns(t *testing.T) {
	Convey("Given concurrent messages against one session", t, func() {
		ctx := context.Background()
		store := session.NewStore()
		ex, cl := oilySetup()
		mgr := session.NewManager(store, ex, cl)

		first, err := mgr.PostMessage(ctx, "", "hello")
		So(err, ShouldBeNil)

		const writers = 16
		var wg sync.WaitGroup
		wg.Add(writers)
		for i := 0; i < writers; i++ {
			go func() {
				defer wg.Done()
				_, _ = mgr.PostMessage(ctx, first.SessionID, "tell me about sunscreen")
			}()
		}
		wg.Wait()

		Convey("Then every turn pair committed atomically", func() {
			var turns []model.Turn
			err := store.View(first.SessionID, func(sess *session.Session) {
				turns = append(turns, sess.Turns...)
			})
			So(err, ShouldBeNil)
			So(turns, ShouldHaveLength, 2+writers*2)

			for i := 0; i < len(turns); i += 2 {
				So(turns[i].Role, ShouldEqual, model.RoleUser)
				So(turns[i+1].Role, ShouldEqual, model.RoleAssistant)
			}
		})

		Convey("Then the export trims to the most recent turns", func() {
			export, err := mgr.Export(first.SessionID)
			So(err, ShouldBeNil)
			So(export.Turns, ShouldHaveLength, 10)
			So(export.Turns[len(export.Turns)-1].Role, ShouldEqual, model.RoleAssistant)
		})
	})
}

func TestStore_Expiry(t *testing.T) {
	Convey("Given a store with a short idle timeout and a controllable clock", t, func() {
		now := time.Unix(1700000000, 0)
		var mu sync.Mutex
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
		advance := func(d time.Duration) {
			mu.Lock()
			now = now.Add(d)
			mu.Unlock()
		}

		store := session.NewStore(
			session.WithIdleTimeout(time.Minute),
			session.WithStoreClock(clock),
		)

		sess := store.Create()

		Convey("When the session idles past the timeout", func() {
			advance(2 * time.Minute)

			Convey("Then lookups report ErrNotFound", func() {
				err := store.Update(sess.ID, func(*session.Session) error { return nil })
				So(errors.Is(err, session.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then the expired entry is reclaimed lazily", func() {
				_ = store.View(sess.ID, func(*session.Session) {})
				So(store.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the session stays active", func() {
			advance(40 * time.Second)
			err := store.Update(sess.ID, func(*session.Session) error { return nil })
			So(err, ShouldBeNil)

			advance(40 * time.Second)

			Convey("Then activity extended its life", func() {
				err := store.View(sess.ID, func(*session.Session) {})
				So(err, ShouldBeNil)
			})
		})
	})
}
