package export

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"

	"github.com/Faultbox/mdlcore/internal/engine/model"
)

// checkerTexture returns a 2x2 texture with four distinct colors.
func checkerTexture() *model.Texture {
	return &model.Texture{
		Width:  2,
		Height: 2,
		Pixels: []byte{
			255, 0, 0, 0, 255, 0,
			0, 0, 255, 255, 255, 255,
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"png", PNG, false},
		{"PNG", PNG, false},
		{".tga", TGA, false},
		{"bmp", BMP, false},
		{"WebP", WebP, false},
		{"gif", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFormat) {
					t.Errorf("got error %v, want ErrUnknownFormat", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestTextureImage(t *testing.T) {
	img, err := TextureImage(checkerTexture())
	if err != nil {
		t.Fatalf("TextureImage: %v", err)
	}

	want := map[image.Point]color.NRGBA{
		{0, 0}: {255, 0, 0, 255},
		{1, 0}: {0, 255, 0, 255},
		{0, 1}: {0, 0, 255, 255},
		{1, 1}: {255, 255, 255, 255},
	}
	for p, c := range want {
		if got := img.NRGBAAt(p.X, p.Y); got != c {
			t.Errorf("pixel %v = %v, want %v", p, got, c)
		}
	}

	bad := checkerTexture()
	bad.Pixels = bad.Pixels[:5]
	if _, err := TextureImage(bad); !errors.Is(err, ErrPixelSizeMismatch) {
		t.Errorf("got error %v, want ErrPixelSizeMismatch", err)
	}
}

func TestUpscale(t *testing.T) {
	img, _ := TextureImage(checkerTexture())

	if Upscale(img, 1) != image.Image(img) {
		t.Error("scale 1 should return the source image")
	}

	big := Upscale(img, 4)
	if b := big.Bounds(); b.Dx() != 8 || b.Dy() != 8 {
		t.Fatalf("upscaled bounds = %v, want 8x8", b)
	}
	// Nearest-neighbour keeps each source pixel as a solid 4x4 block.
	for _, p := range []image.Point{{0, 0}, {3, 3}, {4, 0}, {7, 3}, {0, 4}, {7, 7}} {
		want := img.At(p.X/4, p.Y/4)
		if got := color.NRGBAModel.Convert(big.At(p.X, p.Y)); got != want {
			t.Errorf("pixel %v = %v, want %v", p, got, want)
		}
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	img, _ := TextureImage(checkerTexture())

	decoders := map[Format]func([]byte) (image.Image, error){
		PNG: func(b []byte) (image.Image, error) { return png.Decode(bytes.NewReader(b)) },
		BMP: func(b []byte) (image.Image, error) { return bmp.Decode(bytes.NewReader(b)) },
		TGA: func(b []byte) (image.Image, error) { return tga.Decode(bytes.NewReader(b)) },
	}

	for format, decode := range decoders {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, img, format); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			out, err := decode(buf.Bytes())
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			for y := 0; y < 2; y++ {
				for x := 0; x < 2; x++ {
					want := img.NRGBAAt(x, y)
					if got := color.NRGBAModel.Convert(out.At(x, y)); got != want {
						t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
					}
				}
			}
		})
	}
}

func TestEncode_WebP(t *testing.T) {
	img, _ := TextureImage(checkerTexture())

	var buf bytes.Buffer
	if err := Encode(&buf, img, WebP); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data := buf.Bytes()
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		t.Errorf("output is not a RIFF/WEBP container: % x", data[:min(len(data), 12)])
	}
}

func TestEncode_UnknownFormat(t *testing.T) {
	img, _ := TextureImage(checkerTexture())
	if err := Encode(&bytes.Buffer{}, img, Format("gif")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("got error %v, want ErrUnknownFormat", err)
	}
}

func TestWriteTextures(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "skins")
	textures := []*model.Texture{checkerTexture(), model.FallbackTexture(0x808080FF)}

	paths, err := WriteTextures(dir, "player", textures, PNG, 2)
	if err != nil {
		t.Fatalf("WriteTextures: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("wrote %d files, want 2", len(paths))
	}
	if filepath.Base(paths[1]) != "player_skin01.png" {
		t.Errorf("second file = %s", paths[1])
	}

	f, err := os.Open(paths[1])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Width != 8 || cfg.Height != 8 {
		t.Errorf("fallback skin exported as %dx%d, want 8x8", cfg.Width, cfg.Height)
	}
}
