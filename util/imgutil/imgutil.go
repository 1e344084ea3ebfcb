package imgutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"
	"github.com/muesli/smartcrop/nfnt"
)

// Decode parses image bytes in any registered format.
func Decode(data []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(data))
}

// ConvertFormat reads image data from input, detects its format, and writes
// it to output converted to the format implied by ext (with or without
// leading dot).
func ConvertFormat(input io.Reader, output io.Writer, ext string) error {
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return fmt.Errorf("%s: %w", ext, err)
	}
	img, err := imaging.Decode(input)
	if err != nil {
		return err
	}
	return imaging.Encode(output, img, format)
}

// ResizeExact scales to exactly width x height with Lanczos resampling,
// ignoring aspect ratio. Matches the e-ink display preparation the pipeline
// has always used.
func ResizeExact(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// CoverCrop fills width x height without distortion: a content-aware crop to
// the target aspect ratio, then a Lanczos resize. Falls back to ResizeExact
// when crop detection fails.
func CoverCrop(img image.Image, width, height int) image.Image {
	analyzer := smartcrop.NewAnalyzer(nfnt.NewDefaultResizer())
	crop, err := analyzer.FindBestCrop(img, width, height)
	if err != nil {
		return ResizeExact(img, width, height)
	}
	cropped := imaging.Crop(img, crop)
	return imaging.Resize(cropped, width, height, imaging.Lanczos)
}

// CompositeSideBySide pastes left and right onto a black canvas, left edge
// to left edge, then scales to width x height.
func CompositeSideBySide(left, right image.Image, width, height int) image.Image {
	canvasW := left.Bounds().Dx() + right.Bounds().Dx()
	canvasH := max(left.Bounds().Dy(), right.Bounds().Dy())
	canvas := imaging.New(canvasW, canvasH, color.Black)
	canvas = imaging.Paste(canvas, left, image.Pt(0, 0))
	canvas = imaging.Paste(canvas, right, image.Pt(left.Bounds().Dx(), 0))
	return ResizeExact(canvas, width, height)
}

// Save encodes img to path; the format is derived from the file extension.
// Creates parent directories as needed.
func Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return imaging.Save(img, path)
}
