// Package export writes decompressed model skins as image files.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/Faultbox/mdlcore/internal/engine/model"
)

// Format is an output image format.
type Format string

// Supported formats.
const (
	PNG  Format = "png"
	BMP  Format = "bmp"
	TGA  Format = "tga"
	WebP Format = "webp"
)

// Export errors.
var (
	ErrUnknownFormat     = errors.New("unknown image format")
	ErrPixelSizeMismatch = errors.New("texture pixel data does not match its size")
)

// Formats lists every supported format.
var Formats = []Format{PNG, BMP, TGA, WebP}

// ParseFormat returns the format named by s, ignoring case and a leading dot.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(s), "."))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Extension returns the file extension of the format, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// TextureImage converts a 24-bit RGB texture into an opaque NRGBA image.
func TextureImage(tex *model.Texture) (*image.NRGBA, error) {
	if len(tex.Pixels) != tex.Width*tex.Height*3 {
		return nil, fmt.Errorf("%w: %dx%d needs %d bytes, got %d",
			ErrPixelSizeMismatch, tex.Width, tex.Height, tex.Width*tex.Height*3, len(tex.Pixels))
	}

	img := image.NewNRGBA(image.Rect(0, 0, tex.Width, tex.Height))
	for i := 0; i < tex.Width*tex.Height; i++ {
		img.Pix[i*4] = tex.Pixels[i*3]
		img.Pix[i*4+1] = tex.Pixels[i*3+1]
		img.Pix[i*4+2] = tex.Pixels[i*3+2]
		img.Pix[i*4+3] = 0xFF
	}
	return img, nil
}

// Upscale enlarges an image by an integer factor with nearest-neighbour
// sampling, keeping skin pixels crisp. Factors below 2 return img unchanged.
func Upscale(img image.Image, scale int) image.Image {
	if scale < 2 {
		return img
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format Format) error {
	var err error
	switch format {
	case PNG:
		err = png.Encode(w, img)
	case BMP:
		err = bmp.Encode(w, img)
	case TGA:
		err = tga.Encode(w, img)
	case WebP:
		err = nativewebp.Encode(w, img, nil)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", format, err)
	}
	return nil
}

// WriteTexture writes one texture to path.
func WriteTexture(path string, tex *model.Texture, format Format, scale int) error {
	img, err := TextureImage(tex)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	if err := Encode(file, Upscale(img, scale), format); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteTextures writes every texture into dir as <base>_skinNN.<ext> and
// returns the written paths.
func WriteTextures(dir, base string, textures []*model.Texture, format Format, scale int) ([]string, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating output dir: %w", err)
		}
	}

	paths := make([]string, 0, len(textures))
	for i, tex := range textures {
		path := filepath.Join(dir, fmt.Sprintf("%s_skin%02d%s", base, i, format.Extension()))
		if err := WriteTexture(path, tex, format, scale); err != nil {
			return paths, fmt.Errorf("texture %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
