// Package imaging composites the text watermark onto downloaded photos.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp" // register WebP decoding
)

const (
	// The watermark band targets this share of the image width.
	bandWidthRatio = 0.3
	bandPadding    = 4
	marginRatio    = 0.02
)

var (
	bandColor = color.NRGBA{R: 0, G: 0, B: 0, A: 96}
	textColor = color.NRGBA{R: 255, G: 255, B: 255, A: 200}
)

// Watermarker implements ports.Watermarker.
type Watermarker struct {
	text    string
	quality int
}

// NewWatermarker returns a watermarker drawing text with the given JPEG quality.
func NewWatermarker(text string, jpegQuality int) *Watermarker {
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = jpeg.DefaultQuality
	}
	return &Watermarker{text: text, quality: jpegQuality}
}

// Apply decodes JPEG, PNG or WebP data, draws the watermark in the bottom-right
// corner and re-encodes it. PNG input stays PNG; everything else becomes JPEG.
func (w *Watermarker) Apply(data []byte) ([]byte, string, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, "", errors.New("decode image: empty bounds")
	}

	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Src)

	if w.text != "" {
		w.stamp(canvas)
	}

	var buf bytes.Buffer
	if format == "png" {
		if err := png.Encode(&buf, canvas); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "png", nil
	}
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: w.quality}); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "jpg", nil
}

// stamp renders the text on a translucent band, scales the band relative to the
// canvas width and composites it over the bottom-right corner.
func (w *Watermarker) stamp(canvas *image.RGBA) {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, w.text).Ceil()
	metrics := face.Metrics()
	textHeight := (metrics.Ascent + metrics.Descent).Ceil()

	band := image.NewNRGBA(image.Rect(0, 0, textWidth+2*bandPadding, textHeight+2*bandPadding))
	draw.Draw(band, band.Bounds(), image.NewUniform(bandColor), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  band,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(bandPadding, bandPadding+metrics.Ascent.Ceil()),
	}
	d.DrawString(w.text)

	cb := canvas.Bounds()
	scale := int(float64(cb.Dx()) * bandWidthRatio / float64(band.Bounds().Dx()))
	if scale < 1 {
		scale = 1
	}
	dw, dh := band.Bounds().Dx()*scale, band.Bounds().Dy()*scale
	margin := int(float64(cb.Dx()) * marginRatio)

	dst := image.Rect(cb.Max.X-margin-dw, cb.Max.Y-margin-dh, cb.Max.X-margin, cb.Max.Y-margin)
	xdraw.NearestNeighbor.Scale(canvas, dst, band, band.Bounds(), xdraw.Over, nil)
}
