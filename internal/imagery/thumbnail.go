package imagery

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/tiff"
)

// DefaultThumbSize is the longest side of a thumbnail in pixels.
const DefaultThumbSize = 512

// Decode reads and decodes an image file. Any failure is reported as
// ErrImageNotFound so the caller degrades only this slot.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageNotFound, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrImageNotFound, path, err)
	}
	return img, nil
}

// Thumbnail decodes the image at path and returns a PNG scaled so its
// longest side is at most maxSide. Smaller images are re-encoded unscaled.
func Thumbnail(path string, maxSide int) ([]byte, error) {
	src, err := Decode(path)
	if err != nil {
		return nil, err
	}
	if maxSide <= 0 {
		maxSide = DefaultThumbSize
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxSide || h > maxSide {
		if w >= h {
			h = max(1, h*maxSide/w)
			w = maxSide
		} else {
			w = max(1, w*maxSide/h)
			h = maxSide
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	placeholderBG = color.RGBA{R: 0x2b, G: 0x2f, B: 0x36, A: 0xff}
	placeholderFG = color.RGBA{R: 0xc8, G: 0xcc, B: 0xd2, A: 0xff}
)

// Placeholder renders the absent-image tile shown in an empty slot.
func Placeholder(text string, size int) []byte {
	if size <= 0 {
		size = DefaultThumbSize
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(placeholderBG), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(placeholderFG),
		Face: basicfont.Face7x13,
	}
	width := d.MeasureString(text)
	x := (fixed.I(size) - width) / 2
	if x < 0 {
		x = 0
	}
	d.Dot = fixed.Point26_6{X: x, Y: fixed.I(size / 2)}
	d.DrawString(text)

	var buf bytes.Buffer
	// Encoding an in-memory RGBA cannot fail.
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
