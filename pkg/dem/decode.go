package dem

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

// Decode reads a grayscale raster from r and returns it as a Grid.
// format selects the decoder: "png" or "tiff". 8-bit samples are rescaled
// to the full 16-bit range (v * 257).
func Decode(r io.Reader, format string) (*Grid, error) {
	var (
		img image.Image
		err error
	)
	switch format {
	case "png":
		img, err = png.Decode(r)
	case "tiff", "tif":
		img, err = tiff.Decode(r)
	default:
		return nil, fmt.Errorf("unsupported raster format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	return fromImage(img)
}

// DecodeFile reads a grayscale raster from path, picking the decoder from
// the file extension.
func DecodeFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raster %s: %w", path, err)
	}
	defer f.Close()

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	g, err := Decode(f, ext)
	if err != nil {
		return nil, fmt.Errorf("read raster %s: %w", path, err)
	}
	return g, nil
}

func fromImage(img image.Image) (*Grid, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]uint16, w*h)

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
				data[y*w+x] = uint16(src.Pix[i])<<8 | uint16(src.Pix[i+1])
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := src.Pix[src.PixOffset(b.Min.X+x, b.Min.Y+y)]
				data[y*w+x] = uint16(v) * 257
			}
		}
	default:
		// Paletted, RGBA and friends: take the 16-bit gray projection.
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				data[y*w+x] = uint16((299*r + 587*g + 114*bl) / 1000)
			}
		}
	}

	return NewGrid(w, h, data)
}

// EncodePNG writes the grid as a 16-bit grayscale PNG.
func EncodePNG(w io.Writer, g *Grid) error {
	img := image.NewGray16(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			i := img.PixOffset(x, y)
			v := g.At(x, y)
			img.Pix[i] = uint8(v >> 8)
			img.Pix[i+1] = uint8(v)
		}
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// EncodePNGFile writes the grid as a 16-bit grayscale PNG at path.
func EncodePNGFile(path string, g *Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return EncodePNG(f, g)
}
