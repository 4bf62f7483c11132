package render

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"
)

// Bitmap is a packed RGB pixel buffer, 3 bytes per pixel.
// Bitmaps may be shared through the cache; treat them as read-only.
type Bitmap struct {
	Pix    []byte
	Width  int
	Height int
	Stride int
}

// FromRGBA drops the alpha channel of img.
func FromRGBA(img *image.RGBA) *Bitmap {
	b := img.Bounds()
	bm := &Bitmap{Width: b.Dx(), Height: b.Dy(), Stride: b.Dx() * 3}
	bm.Pix = make([]byte, bm.Stride*bm.Height)
	for y := 0; y < bm.Height; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+bm.Width*4]
		dst := bm.Pix[y*bm.Stride : (y+1)*bm.Stride]
		for x := 0; x < bm.Width; x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return bm
}

// Image wraps the bitmap as an image.Image without copying.
func (b *Bitmap) Image() image.Image { return rgbImage{b} }

type rgbImage struct{ b *Bitmap }

func (m rgbImage) ColorModel() color.Model { return color.RGBAModel }
func (m rgbImage) Bounds() image.Rectangle { return image.Rect(0, 0, m.b.Width, m.b.Height) }
func (m rgbImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.b.Width || y >= m.b.Height {
		return color.RGBA{}
	}
	i := y*m.b.Stride + x*3
	return color.RGBA{R: m.b.Pix[i], G: m.b.Pix[i+1], B: m.b.Pix[i+2], A: 0xff}
}

// Encode writes bm as PNG or JPEG depending on name's extension.
func Encode(w io.Writer, name string, bm *Bitmap, quality int) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		if quality <= 0 {
			quality = 85
		}
		return jpeg.Encode(w, bm.Image(), &jpeg.Options{Quality: quality})
	case ".png", "":
		return png.Encode(w, bm.Image())
	default:
		return fmt.Errorf("unsupported image format %q", filepath.Ext(name))
	}
}
