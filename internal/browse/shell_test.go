package browse

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/skinclass/internal/pipeline"
)

type fakePredictor struct {
	labels map[string]string
	calls  []string
}

func (f *fakePredictor) PredictFile(_ context.Context, path string) (*pipeline.Result, error) {
	f.calls = append(f.calls, path)
	label, ok := f.labels[filepath.Base(path)]
	if !ok {
		return nil, &pipeline.InputError{Source: path, Err: errors.New("cannot decode image")}
	}
	return &pipeline.Result{Source: path, Label: label}, nil
}

func TestShell(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "1.jpg"))
	touch(t, filepath.Join(dir, "2.jpg"))
	touch(t, filepath.Join(dir, "3.jpg"))

	predictor := &fakePredictor{labels: map[string]string{
		"1.jpg": "Acne",
		"2.jpg": "Scabies",
	}}
	var out bytes.Buffer
	sh := NewShell(predictor, &out)
	ctx := context.Background()

	run := func(line string) string {
		out.Reset()
		assert.False(t, sh.Exec(ctx, line))
		return out.String()
	}

	assert.Contains(t, run("predict"), "No images loaded.")
	assert.Contains(t, run("load "+dir), "Loaded 3 image(s).")
	assert.Contains(t, run("predict"), "Predicted Category: Acne")
	assert.Contains(t, run("prev"), "Already at the first image.")
	assert.Contains(t, run("next"), "[2/3]")
	assert.Contains(t, run("predict"), "Predicted Category: Scabies")
	assert.Contains(t, run("next"), "[3/3]")
	assert.Contains(t, run("predict"), "Error: input")
	assert.Contains(t, run("next"), "Already at the last image.")
	assert.Contains(t, run("list"), ">   3")
	assert.Contains(t, run("bogus"), "Unknown command")
	assert.Contains(t, run("load "+filepath.Join(dir, "*.gif")), "Error:")
	assert.Equal(t, 3, sh.Session().Len(), "a failed load keeps the selection")
	assert.Contains(t, run("help"), "Commands:")
	assert.Empty(t, run("   "))

	require.True(t, sh.Exec(ctx, "quit"))
	assert.Len(t, predictor.calls, 3)
}
