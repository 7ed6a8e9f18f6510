package demo

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
)

// profile parameterizes one synthetic face image.
type profile struct {
	name       string
	base       uint8   // center brightness
	falloff    float64 // gradient strength toward the frame
	redShift   int     // extra red channel, simulates redness
	noise      int     // per-pixel jitter, simulates texture
	resolution int
}

// profiles covers the interesting corners of the pipeline: bright/dark,
// red-shifted, noisy, and a deliberately tiny low-quality frame.
var profiles = []profile{
	{name: "balanced", base: 235, falloff: 170, noise: 6, resolution: 640},
	{name: "bright-shiny", base: 250, falloff: 90, noise: 3, resolution: 640},
	{name: "dark-frame", base: 150, falloff: 130, noise: 5, resolution: 640},
	{name: "red-shifted", base: 225, falloff: 160, redShift: 40, noise: 8, resolution: 640},
	{name: "textured", base: 230, falloff: 160, noise: 28, resolution: 640},
	{name: "tiny-low-quality", base: 225, falloff: 160, noise: 4, resolution: 96},
}

// GenerateUploads renders count synthetic face images, cycling through the
// parameter profiles. The same seed reproduces the same run.
func GenerateUploads(count int, seed int64) ([]Upload, error) {
	rng := rand.New(rand.NewSource(seed))

	uploads := make([]Upload, 0, count)
	for i := 0; i < count; i++ {
		p := profiles[i%len(profiles)]
		img := renderFace(p, rng.Int63())

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode upload %d: %w", i, err)
		}
		uploads = append(uploads, Upload{
			Name:  fmt.Sprintf("%s-%03d", p.name, i),
			Image: buf.Bytes(),
		})
	}
	return uploads, nil
}

// renderFace draws a mirror-symmetric radial gradient with profile-driven
// tone, so the extractor's face localization accepts it.
func renderFace(p profile, noiseSeed int64) image.Image {
	size := p.resolution
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cx, cy := float64(size)/2, float64(size)/2
	maxDist := math.Hypot(cx, cy)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dist := math.Hypot(float64(x)-cx, float64(y)-cy)
			v := float64(p.base) - p.falloff*dist/maxDist

			// Mirror the jitter across the vertical axis to keep the
			// frame symmetric.
			if p.noise > 0 {
				mx := x
				if mx >= size/2 {
					mx = size - 1 - mx
				}
				h := uint64(noiseSeed) ^ uint64(mx)*0x9e3779b97f4a7c15 ^ uint64(y)*0xc2b2ae3d27d4eb4f
				h ^= h >> 33
				v += float64(int(h%uint64(2*p.noise)) - p.noise)
			}

			g := clampByte(v)
			r := clampByte(v + float64(p.redShift))
			img.Set(x, y, color.RGBA{R: r, G: g, B: g, A: 255})
		}
	}
	return img
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// ChatScript returns the scripted conversation each demo session runs,
// truncated to turns.
func ChatScript(turns int) []string {
	script := []string{
		"Hi, I want to improve my skin",
		"I keep getting breakouts on my forehead",
		"What were my results?",
		"Tell me about niacinamide",
		"Which sunscreen should I use?",
		"How often should I exfoliate?",
	}
	if turns > 0 && turns < len(script) {
		script = script[:turns]
	}
	return script
}
