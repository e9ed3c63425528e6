package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TransparentPNG is the canonical 1x1 fully transparent PNG, served in
// place of the labeled empty placeholder when a map-friendly blank tile
// is wanted.
var TransparentPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

// Placeholders holds one pre-encoded PNG per tile state that has no
// rendered texture. The images are distinct so the caller can see a tile
// progress instead of a generic spinner.
type Placeholders struct {
	Waiting    []byte
	Collecting []byte
	Styling    []byte
	Drawing    []byte
	Empty      []byte
	Failed     []byte
}

// NewPlaceholders generates the placeholder set at the given tile edge
// length. Generation happens once at construction; the byte slices are
// shared read-only afterwards.
func NewPlaceholders(size int) (*Placeholders, error) {
	p := &Placeholders{}

	specs := []struct {
		target *[]byte
		label  string
		bg     color.RGBA
	}{
		{&p.Waiting, "waiting", color.RGBA{236, 236, 236, 255}},
		{&p.Collecting, "collecting", color.RGBA{214, 228, 242, 255}},
		{&p.Styling, "styling", color.RGBA{240, 234, 214, 255}},
		{&p.Drawing, "drawing", color.RGBA{244, 224, 209, 255}},
		{&p.Empty, "no data", color.RGBA{224, 224, 224, 255}},
		{&p.Failed, "render failed", color.RGBA{242, 214, 214, 255}},
	}

	for _, spec := range specs {
		data, err := placeholderPNG(size, spec.label, spec.bg)
		if err != nil {
			return nil, fmt.Errorf("failed to build %q placeholder: %w", spec.label, err)
		}
		*spec.target = data
	}

	return p, nil
}

func placeholderPNG(size int, label string, bg color.RGBA) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	borderColor := color.RGBA{150, 150, 150, 255}
	borders := []image.Rectangle{
		image.Rect(0, 0, size, 1),
		image.Rect(0, size-1, size, size),
		image.Rect(0, 0, 1, size),
		image.Rect(size-1, 0, size, size),
	}
	for _, rect := range borders {
		draw.Draw(img, rect, &image.Uniform{borderColor}, image.Point{}, draw.Src)
	}

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{90, 90, 90, 255}),
		Face: face,
	}

	textWidth := d.MeasureString(label).Round()
	ascent := face.Metrics().Ascent.Round()
	d.Dot = fixed.Point26_6{
		X: fixed.I((size - textWidth) / 2),
		Y: fixed.I((size + ascent) / 2),
	}
	d.DrawString(label)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
