// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

package imagerelay

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // register webp decoder
	"willnorris.com/go/gifresize"
)

// default compression quality of encoded images
const defaultQuality = 80

// maxPixels is the largest image, in pixels, that will be decoded.
const maxPixels = 100_000_000

// resample filter used for resizing
var resampleFilter = imaging.Lanczos

// State is the image being transformed by a pipeline run.
type State struct {
	Image   image.Image
	Format  string // output format
	Quality int    // output quality
}

// Size returns the dimensions of the current image.
func (s *State) Size() (w, h int, err error) {
	if s.Image == nil {
		return 0, 0, newError(ErrProcessing, nil, "Could not determine image width")
	}
	b := s.Image.Bounds()
	if b.Dx() <= 0 {
		return 0, 0, newError(ErrProcessing, nil, "Could not determine image width")
	}
	if b.Dy() <= 0 {
		return 0, 0, newError(ErrProcessing, nil, "Could not determine image height")
	}
	return b.Dx(), b.Dy(), nil
}

// A Stage is one step of a Pipeline.
type Stage interface {
	Name() string

	// AppliesTo reports whether the stage has anything to do for opt.
	AppliesTo(opt Options) bool

	// Apply transforms s according to opt.
	Apply(opt Options, s *State) error
}

// Pipeline is an ordered list of stages.
type Pipeline []Stage

// DefaultPipeline resizes, then rounds corners, then selects the output
// encoding.
var DefaultPipeline = Pipeline{ResizeStage{}, RoundStage{}, EncodeStage{}}

// Applicable returns the stages of p that apply to opt, in order.
func (p Pipeline) Applicable(opt Options) Pipeline {
	var stages Pipeline
	for _, s := range p {
		if s.AppliesTo(opt) {
			stages = append(stages, s)
		}
	}
	return stages
}

// Result is an encoded, transformed image.
type Result struct {
	Body   []byte
	Format string // gif, jpeg, png, webp, bmp or tiff
}

// ContentType returns the media type of r.
func (r *Result) ContentType() string {
	return "image/" + r.Format
}

// Transform the provided image with the default pipeline. img should contain
// the raw bytes of an encoded image in one of the supported formats (bmp,
// gif, jpeg, png, tiff or webp).
func Transform(img []byte, opt Options) (*Result, error) {
	return DefaultPipeline.Run(img, opt)
}

// Run decodes img, applies every stage of p that applies to opt and encodes
// the result.
func (p Pipeline) Run(img []byte, opt Options) (*Result, error) {
	stages := p.Applicable(opt)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, newError(ErrFetch, err, "Invalid image")
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, newError(ErrTooLarge, nil, "Image is too large: %dx%d pixels", cfg.Width, cfg.Height)
	}

	out := outputFormat(format, opt)

	// animated gifs are transformed frame by frame
	if format == "gif" && out == "gif" {
		buf := new(bytes.Buffer)
		var stageErr error
		fn := func(m image.Image) image.Image {
			s := &State{Image: m, Format: out}
			if err := stages.apply(opt, s); err != nil && stageErr == nil {
				stageErr = err
			}
			return s.Image
		}
		if err := gifresize.Process(buf, bytes.NewReader(img), fn); err != nil {
			return nil, newError(ErrProcessing, err, "Could not transform image")
		}
		if stageErr != nil {
			return nil, stageErr
		}
		return &Result{Body: buf.Bytes(), Format: out}, nil
	}

	m, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, newError(ErrFetch, err, "Invalid image")
	}

	if format == "jpeg" || format == "tiff" {
		m = orient(m, exifOrientation(bytes.NewReader(img)))
	}

	s := &State{Image: m, Format: format, Quality: defaultQuality}
	if err := stages.apply(opt, s); err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	timer := prometheus.NewTimer(compressionSummary)
	err = encode(buf, s.Image, s.Format, s.Quality)
	timer.ObserveDuration()
	if err != nil {
		return nil, newError(ErrProcessing, err, "Could not encode image as %s", s.Format)
	}
	return &Result{Body: buf.Bytes(), Format: s.Format}, nil
}

func (p Pipeline) apply(opt Options, s *State) error {
	defer prometheus.NewTimer(imageTransformationSummary).ObserveDuration()
	for _, stage := range p {
		if err := stage.Apply(opt, s); err != nil {
			return fmt.Errorf("%s: %w", stage.Name(), err)
		}
	}
	return nil
}

// ResizeStage scales the image to the requested dimensions. If only one
// dimension is given, the other is derived from the source aspect ratio. If
// both are given, the image is scaled to cover them and cropped to fit.
type ResizeStage struct{}

func (ResizeStage) Name() string { return "resize" }

func (ResizeStage) AppliesTo(opt Options) bool {
	return opt.Width > 0 || opt.Height > 0
}

func (ResizeStage) Apply(opt Options, s *State) error {
	srcW, srcH, err := s.Size()
	if err != nil {
		return err
	}
	w, h := resizeParams(srcW, srcH, opt)
	if w == srcW && h == srcH {
		return nil
	}
	if opt.Width > 0 && opt.Height > 0 {
		s.Image = imaging.Fill(s.Image, w, h, imaging.Center, resampleFilter)
	} else {
		s.Image = imaging.Resize(s.Image, w, h, resampleFilter)
	}
	return nil
}

// resizeParams returns the output dimensions for an image of srcW by srcH
// pixels.
func resizeParams(srcW, srcH int, opt Options) (w, h int) {
	w, h = opt.Width, opt.Height
	switch {
	case w > 0 && h == 0:
		h = int(math.Round(float64(srcH) * float64(w) / float64(srcW)))
	case h > 0 && w == 0:
		w = int(math.Round(float64(srcW) * float64(h) / float64(srcH)))
	case w == 0 && h == 0:
		return srcW, srcH
	}
	return max(w, 1), max(h, 1)
}

// RoundStage makes the corners of the image transparent.
type RoundStage struct{}

func (RoundStage) Name() string { return "round" }

func (RoundStage) AppliesTo(opt Options) bool {
	return opt.Rounded > 0
}

func (RoundStage) Apply(opt Options, s *State) error {
	w, h := opt.Width, opt.Height
	if w == 0 || h == 0 {
		iw, ih, err := s.Size()
		if err != nil {
			return err
		}
		if w == 0 {
			w = iw
		}
		if h == 0 {
			h = ih
		}
	}
	s.Image = roundCorners(s.Image, cornerRadius(opt.Rounded, w, h))
	return nil
}

// cornerRadius returns the radius for rounded percent of the largest
// possible radius of a w by h rectangle.
func cornerRadius(rounded, w, h int) float64 {
	return float64(rounded) / 100 * float64(min(w, h)) / 2
}

// roundCorners returns a copy of m with pixels outside a rounded rectangle of
// radius r made transparent. Edge pixels are partially transparent.
func roundCorners(m image.Image, r float64) *image.NRGBA {
	dst := imaging.Clone(m)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	if r <= 0 {
		return dst
	}

	n := int(math.Ceil(r))
	for y := 0; y < h; y++ {
		if y >= n && y < h-n {
			continue
		}
		for x := 0; x < w; x++ {
			if x >= n && x < w-n {
				x = w - n - 1
				continue
			}
			c := coverage(float64(x)+0.5, float64(y)+0.5, float64(w), float64(h), r)
			if c >= 1 {
				continue
			}
			i := dst.PixOffset(x, y)
			dst.Pix[i+3] = uint8(float64(dst.Pix[i+3])*c + 0.5)
		}
	}
	return dst
}

// coverage returns how much of the pixel centered at (px, py) lies inside a
// w by h rounded rectangle with corner radius r.
func coverage(px, py, w, h, r float64) float64 {
	cx := math.Min(math.Max(px, r), w-r)
	cy := math.Min(math.Max(py, r), h-r)
	d := math.Hypot(px-cx, py-cy)
	return math.Min(math.Max(r-d+0.5, 0), 1)
}

// EncodeStage selects the output format and quality.
type EncodeStage struct{}

func (EncodeStage) Name() string { return "encode" }

func (EncodeStage) AppliesTo(opt Options) bool {
	return opt.Format != "" || opt.Quality > 0 || opt.Optimize
}

func (EncodeStage) Apply(opt Options, s *State) error {
	s.Format = outputFormat(s.Format, opt)
	s.Quality = defaultQuality
	if opt.Quality > 0 {
		s.Quality = opt.Quality
	}
	return nil
}

// outputFormat returns the format an image of format src is encoded as.
// Optimized images are encoded as webp unless a format is requested.
func outputFormat(src string, opt Options) string {
	switch {
	case opt.Format != "":
		return opt.Format
	case opt.Optimize:
		return "webp"
	}
	return src
}

func encode(w io.Writer, m image.Image, format string, quality int) error {
	switch format {
	case "bmp":
		return bmp.Encode(w, m)
	case "gif":
		return gif.Encode(w, m, nil)
	case "jpeg":
		return jpeg.Encode(w, m, &jpeg.Options{Quality: quality})
	case "png":
		return png.Encode(w, m)
	case "tiff":
		return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case "webp":
		return webp.Encode(w, m, webp.Options{Quality: quality})
	}
	return fmt.Errorf("unsupported format: %v", format)
}

// exifOrientation returns the EXIF orientation of the image in r, or 0 if
// it has none.
func exifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	o, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return o
}

// orient returns m transformed so that it is displayed upright, given its EXIF
// orientation.
func orient(m image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(m)
	case 3:
		return imaging.Rotate180(m)
	case 4:
		return imaging.FlipV(m)
	case 5:
		return imaging.Transpose(m)
	case 6:
		return imaging.Rotate270(m)
	case 7:
		return imaging.Transverse(m)
	case 8:
		return imaging.Rotate90(m)
	}
	return m
}
