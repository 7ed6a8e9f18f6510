package service_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	service "github.com/apsara-ai/derma/internal/app"
	"github.com/apsara-ai/derma/internal/domain/model"
	"github.com/apsara-ai/derma/internal/domain/reviews"
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

// facePNG renders a bright symmetric radial gradient that the extractor
// accepts as a face.
func facePNG(t *testing.T) []byte {
	t.Helper()
	const size = 600
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cx, cy := float64(size)/2, float64(size)/2
	maxDist := math.Hypot(cx, cy)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dist := math.Hypot(float64(x)-cx, float64(y)-cy)
			v := uint8(240 - 180*dist/maxDist)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type fixedProvider struct {
	result []model.Review
	err    error
}

func (p *fixedProvider) Search(context.Context, string, int) ([]model.Review, error) {
	return p.result, p.err
}

const catalogCSV = `id,name,brand,category,concerns,skin_types,price,url
p1,Clearing Cleanser,Lab,cleanser,acne|pores,,12.99,
p2,Barrier Cream,Lab,moisturizer,dryness,dry,19.99,
p3,Universal SPF,Sunco,sunscreen,,,15.00,
`

func newService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "products.csv")
	if err := os.WriteFile(catalogPath, []byte(catalogCSV), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	base := []service.Option{
		service.WithCatalogPath(catalogPath),
		service.WithUploadDir(filepath.Join(dir, "uploads")),
		service.WithReviewProvider(&fixedProvider{
			result: []model.Review{{Title: "Routine review", URL: "https://example.com/v"}},
		}),
	}
	return service.New(append(base, opts...)...)
}

func TestService_Analyze(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService(t)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a valid image is analyzed", func() {
			result, err := svc.Analyze(ctx, facePNG(t))

			Convey("Then the result carries the full shape", func() {
				So(err, ShouldBeNil)
				So(result.AnalysisID, ShouldNotBeEmpty)
				So(result.SkinType, ShouldBeIn, model.SkinTypes)
				So(result.Recommendations, ShouldNotBeEmpty)
				So(result.ImagePath, ShouldNotBeEmpty)
				So(result.Quality.FaceDetected, ShouldBeTrue)
			})

			Convey("Then the upload was persisted at the reference path", func() {
				_, statErr := os.Stat(result.ImagePath)
				So(statErr, ShouldBeNil)
			})

			Convey("Then repeated analysis is deterministic", func() {
				again, err := svc.Analyze(ctx, facePNG(t))
				So(err, ShouldBeNil)
				So(again.SkinType, ShouldEqual, result.SkinType)
				So(again.Concerns, ShouldResemble, result.Concerns)
			})
		})

		Convey("When the bytes are not an image", func() {
			_, err := svc.Analyze(ctx, []byte("definitely not an image"))

			Convey("Then the failure is surfaced", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given a service whose review provider times out", t, func() {
		ctx := context.Background()
		svc := newService(t, service.WithReviewProvider(&fixedProvider{err: context.DeadlineExceeded}))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a valid image is analyzed", func() {
			result, err := svc.Analyze(ctx, facePNG(t))

			Convey("Then the response still carries the primary fields", func() {
				So(err, ShouldBeNil)
				So(result.SkinType, ShouldNotBeEmpty)
				So(result.Videos, ShouldBeEmpty)
			})
		})
	})
}

func TestService_Chat(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService(t)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a chat message arrives without a session", func() {
			reply, err := svc.PostMessage(ctx, "", "what helps with acne?")

			Convey("Then a session is minted and a reply produced", func() {
				So(err, ShouldBeNil)
				So(reply.SessionID, ShouldNotBeEmpty)
				So(reply.Response, ShouldNotBeEmpty)
			})

			Convey("Then an image can be attached to that session", func() {
				attached, err := svc.AttachImage(ctx, reply.SessionID, facePNG(t))
				So(err, ShouldBeNil)
				So(attached.Response, ShouldContainSubstring, "Skin type")

				export, err := svc.ExportSession(reply.SessionID)
				So(err, ShouldBeNil)
				So(export.SkinType, ShouldNotBeEmpty)
			})
		})

		Convey("When an image is attached to an unknown session", func() {
			_, err := svc.AttachImage(ctx, "ghost", facePNG(t))

			Convey("Then it fails with session.ErrNotFound", func() {
				So(errors.Is(err, session.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a session is reset", func() {
			reply, err := svc.PostMessage(ctx, "", "hello")
			So(err, ShouldBeNil)

			svc.ResetSession(reply.SessionID)

			_, err = svc.ExportSession(reply.SessionID)
			So(errors.Is(err, session.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Info(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService(t)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When backend info is requested", func() {
			info := svc.ModelInfo()

			So(info.Name, ShouldNotBeEmpty)
			So(info.Available, ShouldBeTrue)
			So(info.Source, ShouldEqual, "builtin")
		})

		Convey("When stats are requested", func() {
			stats := svc.GetStats()

			So(stats["started"], ShouldBeTrue)
			So(stats["catalog_products"], ShouldEqual, 3)
		})
	})
}

var _ reviews.Provider = (*fixedProvider)(nil)
