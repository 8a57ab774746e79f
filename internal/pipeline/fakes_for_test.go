package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/skinclass/internal/imageproc"
	"github.com/Brownie44l1/skinclass/internal/knn"
)

// fakeExtractor reduces an image to its mean value per channel.
type fakeExtractor struct {
	modelID string
	err     error
	calls   int
	mu      sync.Mutex
}

func (f *fakeExtractor) Extract(ctx context.Context, t *imageproc.Tensor) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sums := make([]float64, t.Channels)
	for i, v := range t.Data {
		sums[i%t.Channels] += float64(v)
	}
	pixels := float64(t.Height * t.Width)
	out := make([]float32, t.Channels)
	for i := range sums {
		out[i] = float32(sums[i] / pixels)
	}
	return out, nil
}

func (f *fakeExtractor) FeatureLength() int { return imageproc.Channels }
func (f *fakeExtractor) ModelID() string    { return f.modelID }

type fakeRecorder struct {
	mu          sync.Mutex
	predictions []string
	errors      []string
}

func (r *fakeRecorder) ObservePrediction(label string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predictions = append(r.predictions, label)
}

func (r *fakeRecorder) ObserveError(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, kind)
}

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// colorArtifact is fit on mean colours: red is Acne, green Melanoma, blue
// Psoriasis and white an untabled class 7.
func colorArtifact() *knn.Artifact {
	return &knn.Artifact{
		ModelID: "fake-mean-color",
		K:       1,
		Dim:     3,
		Samples: [][]float32{
			{1, -1, -1},
			{-1, 1, -1},
			{-1, -1, 1},
			{1, 1, 1},
		},
		Targets: []int{0, 1, 2, 7},
	}
}

func newClassifier(t *testing.T, a *knn.Artifact) *knn.Classifier {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knn.msgpack")
	require.NoError(t, knn.Save(path, a))
	c, err := knn.Load(path)
	require.NoError(t, err)
	return c
}

func newTestPipeline(t *testing.T, mutate func(o *Options)) (*Pipeline, *fakeRecorder) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	recorder := &fakeRecorder{}
	opts := Options{
		Extractor:  &fakeExtractor{modelID: "fake-mean-color"},
		Classifier: newClassifier(t, colorArtifact()),
		Logger:     logger,
		Recorder:   recorder,
	}
	if mutate != nil {
		mutate(&opts)
	}
	p, err := New(opts)
	require.NoError(t, err)
	return p, recorder
}

func writeImage(t *testing.T, dir, name string, c color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

var errBrokenRuntime = errors.New("onnxruntime: session crashed")
