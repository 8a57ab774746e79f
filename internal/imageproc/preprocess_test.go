package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func newPreprocessor() *Preprocessor {
	logger, _ := test.NewNullLogger()
	return NewPreprocessor(logger)
}

func TestFromImageAlwaysProducesInputShape(t *testing.T) {
	p := newPreprocessor()

	sizes := []image.Point{{1, 1}, {17, 5}, {299, 299}, {640, 480}, {300, 1200}}
	for _, size := range sizes {
		tensor, err := p.FromImage(gradient(size.X, size.Y))
		require.NoError(t, err)
		assert.Equal(t, []int{299, 299, 3}, tensor.Shape(), "source %v", size)
		assert.Equal(t, ExpectedLen(), tensor.Len())
		assert.Equal(t, []int64{1, 299, 299, 3}, tensor.BatchShape())
	}
}

func TestFromImageNormalization(t *testing.T) {
	p := newPreprocessor()

	t.Run("values are within [-1, 1]", func(t *testing.T) {
		tensor, err := p.FromImage(gradient(64, 64))
		require.NoError(t, err)
		for _, v := range tensor.Data {
			require.True(t, v >= -1 && v <= 1, "value %f out of range", v)
		}
	})

	t.Run("solid red", func(t *testing.T) {
		tensor, err := p.FromImage(solid(40, 30, color.NRGBA{R: 255, A: 255}))
		require.NoError(t, err)
		assert.InDelta(t, 1.0, tensor.At(150, 150, 0), 0.02)
		assert.InDelta(t, -1.0, tensor.At(150, 150, 1), 0.02)
		assert.InDelta(t, -1.0, tensor.At(150, 150, 2), 0.02)
	})

	t.Run("alpha is dropped rather than blended", func(t *testing.T) {
		tensor, err := p.FromImage(solid(10, 10, color.NRGBA{R: 255, G: 255, B: 255, A: 128}))
		require.NoError(t, err)
		assert.InDelta(t, 1.0, tensor.At(0, 0, 0), 0.03)
		assert.InDelta(t, 1.0, tensor.At(298, 298, 2), 0.03)
	})

	t.Run("fully transparent pixels are black", func(t *testing.T) {
		tensor, err := p.FromImage(solid(10, 10, color.NRGBA{R: 255, G: 200, B: 10, A: 0}))
		require.NoError(t, err)
		for c := 0; c < Channels; c++ {
			assert.Equal(t, float32(-1), tensor.At(150, 150, c))
		}
	})

	t.Run("grayscale expands to three equal channels", func(t *testing.T) {
		gray := image.NewGray(image.Rect(0, 0, 20, 20))
		for i := range gray.Pix {
			gray.Pix[i] = 200
		}
		tensor, err := p.FromImage(gray)
		require.NoError(t, err)
		assert.Equal(t, tensor.At(10, 10, 0), tensor.At(10, 10, 1))
		assert.Equal(t, tensor.At(10, 10, 1), tensor.At(10, 10, 2))
	})
}

func TestFromImageRejectsEmpty(t *testing.T) {
	p := newPreprocessor()
	_, err := p.FromImage(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
}

func TestDecodeFormats(t *testing.T) {
	p := newPreprocessor()
	src := gradient(120, 80)

	encoders := map[string]func(*bytes.Buffer) error{
		"png":  func(b *bytes.Buffer) error { return png.Encode(b, src) },
		"jpeg": func(b *bytes.Buffer) error { return jpeg.Encode(b, src, &jpeg.Options{Quality: 90}) },
		"bmp":  func(b *bytes.Buffer) error { return bmp.Encode(b, src) },
	}
	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, encode(&buf))
			tensor, err := p.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, []int{299, 299, 3}, tensor.Shape())
		})
	}
}

func TestDecodeInvalidInput(t *testing.T) {
	p := newPreprocessor()

	tensor, err := p.Decode(strings.NewReader("definitely not an image"))
	require.Error(t, err)
	assert.Nil(t, tensor)
	assert.True(t, errors.Is(err, ErrDecode))

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "stream", decodeErr.Source)
}

func TestLoad(t *testing.T) {
	p := newPreprocessor()
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "lesion.png")
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, gradient(50, 70)))
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

		tensor, err := p.Load(path)
		require.NoError(t, err)
		assert.Equal(t, []int{299, 299, 3}, tensor.Shape())
	})

	t.Run("missing file", func(t *testing.T) {
		tensor, err := p.Load(filepath.Join(dir, "missing.jpg"))
		require.Error(t, err)
		assert.Nil(t, tensor)
		assert.True(t, errors.Is(err, ErrDecode))
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("text file with image extension", func(t *testing.T) {
		path := filepath.Join(dir, "notes.jpg")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
		tensor, err := p.Load(path)
		require.Error(t, err)
		assert.Nil(t, tensor)
		assert.True(t, errors.Is(err, ErrDecode))
	})
}

func TestSupportedExtension(t *testing.T) {
	assert.True(t, SupportedExtension("a.jpg"))
	assert.True(t, SupportedExtension("a.JPEG"))
	assert.True(t, SupportedExtension("dir/a.Png"))
	assert.True(t, SupportedExtension("a.bmp"))
	assert.False(t, SupportedExtension("a.gif"))
	assert.False(t, SupportedExtension("a"))
}

func TestTensorFromValues(t *testing.T) {
	_, err := TensorFromValues(make([]float32, 10))
	assert.True(t, errors.Is(err, ErrDecode))

	values := make([]float32, ExpectedLen())
	values[5] = 0.5
	tensor, err := TensorFromValues(values)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), tensor.Data[5])
	values[5] = 0
	assert.Equal(t, float32(0.5), tensor.Data[5], "values are copied")
}
