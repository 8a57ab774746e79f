package imageproc

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
)

// Extensions lists the file types offered for selection.
var Extensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// SupportedExtension reports whether path has one of Extensions, ignoring case.
func SupportedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Preprocessor turns raster images into InceptionV3 input tensors.
type Preprocessor struct {
	Size   int
	logger logrus.FieldLogger
}

// NewPreprocessor returns a preprocessor for the 299x299 InceptionV3 input.
func NewPreprocessor(logger logrus.FieldLogger) *Preprocessor {
	return &Preprocessor{
		Size:   InputSize,
		logger: logger,
	}
}

// Load reads and decodes the file at path.
func (p *Preprocessor) Load(path string) (*Tensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}
	return p.decode(path, bytes.NewReader(data))
}

// Decode reads one image from r. Errors name the source as "stream".
func (p *Preprocessor) Decode(r io.Reader) (*Tensor, error) {
	return p.decode("stream", r)
}

func (p *Preprocessor) decode(source string, r io.Reader) (*Tensor, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, &DecodeError{Source: source, Err: err}
	}

	p.logger.WithFields(logrus.Fields{
		"source": source,
		"format": format,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	}).Debug("decoded image")

	t, err := p.FromImage(img)
	if err != nil {
		return nil, &DecodeError{Source: source, Err: err}
	}
	return t, nil
}

// FromImage resizes img to Size x Size with Lanczos3, drops alpha and scales every
// channel to [-1, 1] as InceptionV3 expects.
func (p *Preprocessor) FromImage(img image.Image) (*Tensor, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("image has no pixels")
	}

	size := p.Size
	if size <= 0 {
		size = InputSize
	}
	resized := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	t := NewTensor(height, width, Channels)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b := straightRGB(resized.At(bounds.Min.X+x, bounds.Min.Y+y))
			i := (y*width + x) * Channels
			t.Data[i] = normalize(r)
			t.Data[i+1] = normalize(g)
			t.Data[i+2] = normalize(b)
		}
	}
	return t, nil
}

// straightRGB returns 8-bit channels with alpha premultiplication undone. The
// resize output is premultiplied, so a fully transparent pixel has no colour
// left and comes out black.
func straightRGB(c color.Color) (uint8, uint8, uint8) {
	r, g, b, a := c.RGBA()
	if a == 0 {
		return 0, 0, 0
	}
	if a != 0xffff {
		r = r * 0xffff / a
		g = g * 0xffff / a
		b = b * 0xffff / a
	}
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func normalize(v uint8) float32 {
	return float32(v)/127.5 - 1
}
