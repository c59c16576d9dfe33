// Package derivative turns one original product image into its resized
// small, medium and large variants. It is a pure transform: it reads the
// source file and returns encoded bytes, and knows nothing about jobs,
// queues or the database.
package derivative

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"os"

	"github.com/disintegration/imaging"

	// Register the WebP decoder so originals uploaded as .webp can be derived.
	_ "golang.org/x/image/webp"
)

// Sentinel errors. Both mean the job can never succeed; they are kept apart
// so logs say which one happened.
var (
	// ErrSourceNotFound means the original file is not on disk, usually
	// because the media item or its product was deleted after enqueue.
	ErrSourceNotFound = errors.New("derivative: source not found")

	// ErrDecode means the original exists but is not a decodable image.
	ErrDecode = errors.New("derivative: decode failure")
)

// Target is one output variant and the width it is resized to.
type Target struct {
	Variant string
	Width   int
}

// DefaultTargets are the fixed derivative widths, in persistence order.
var DefaultTargets = []Target{
	{Variant: "small", Width: 300},
	{Variant: "medium", Width: 600},
	{Variant: "large", Width: 1200},
}

// DefaultQuality is the JPEG quality used for every derivative.
const DefaultQuality = 85

// Output is one encoded derivative.
type Output struct {
	Variant string
	Width   int
	Height  int
	Data    []byte
}

// Generator produces JPEG derivatives from an original image.
type Generator struct {
	targets []Target
	quality int
}

// NewGenerator returns a generator for DefaultTargets at DefaultQuality.
func NewGenerator() *Generator {
	return &Generator{targets: DefaultTargets, quality: DefaultQuality}
}

// Targets returns the variants this generator produces, in order.
func (g *Generator) Targets() []Target {
	return g.targets
}

// Generate reads srcPath, applies its EXIF orientation, and returns one JPEG
// per target. Each output is resized by width with the aspect ratio kept and
// is never wider than the source. The result depends only on the source
// bytes, so repeated runs produce identical output.
func (g *Generator) Generate(ctx context.Context, srcPath string) ([]Output, error) {
	src, err := g.open(srcPath)
	if err != nil {
		return nil, err
	}
	src = flatten(src)
	srcW := src.Bounds().Dx()

	outputs := make([]Output, 0, len(g.targets))
	for _, t := range g.targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w := min(t.Width, srcW)
		resized := imaging.Resize(src, w, 0, imaging.Lanczos)

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(g.quality)); err != nil {
			return nil, fmt.Errorf("encoding %s derivative: %w", t.Variant, err)
		}

		b := resized.Bounds()
		outputs = append(outputs, Output{
			Variant: t.Variant,
			Width:   b.Dx(),
			Height:  b.Dy(),
			Data:    buf.Bytes(),
		})
	}
	return outputs, nil
}

// open decodes the source with orientation applied, classifying failures.
func (g *Generator) open(srcPath string) (image.Image, error) {
	f, err := os.Open(srcPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, srcPath)
	}
	if err != nil {
		return nil, fmt.Errorf("opening source %s: %w", srcPath, err)
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, srcPath, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: %s: empty image", ErrDecode, srcPath)
	}
	return img, nil
}

// flatten composites images with transparency onto white. JPEG has no alpha
// channel and would otherwise render transparent pixels black.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
