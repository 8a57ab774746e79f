package knn

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	artifactMagic   = "skinclass-knn"
	artifactVersion = 1
)

// ErrInvalidArtifact is wrapped by every validation failure of a classifier artifact.
var ErrInvalidArtifact = errors.New("invalid classifier artifact")

const (
	WeightsUniform  = "uniform"
	WeightsDistance = "distance"

	MetricEuclidean = "euclidean"
	MetricManhattan = "manhattan"
	MetricCosine    = "cosine"
)

// Artifact is the on-disk form of a fitted nearest-neighbour classifier: the
// training feature vectors, their class indices and the fit-time settings.
type Artifact struct {
	Magic   string      `msgpack:"magic" json:"-"`
	Version int         `msgpack:"version" json:"version,omitempty"`
	ModelID string      `msgpack:"model_id" json:"model_id"`
	K       int         `msgpack:"k" json:"k"`
	Weights string      `msgpack:"weights" json:"weights"`
	Metric  string      `msgpack:"metric" json:"metric"`
	Dim     int         `msgpack:"dim" json:"dim"`
	Samples [][]float32 `msgpack:"samples" json:"samples"`
	Targets []int       `msgpack:"targets" json:"targets"`
	Scaler  *Scaler     `msgpack:"scaler,omitempty" json:"scaler,omitempty"`
}

// ApplyDefaults mirrors scikit-learn's KNeighborsClassifier defaults.
func (a *Artifact) ApplyDefaults() {
	if a.K == 0 {
		a.K = 5
	}
	if a.Weights == "" {
		a.Weights = WeightsUniform
	}
	if a.Metric == "" {
		a.Metric = MetricEuclidean
	}
	if a.Dim == 0 && len(a.Samples) > 0 {
		a.Dim = len(a.Samples[0])
	}
}

func (a *Artifact) Validate() error {
	if a.Magic != artifactMagic {
		return errors.Wrapf(ErrInvalidArtifact, "unexpected magic %q", a.Magic)
	}
	if a.Version != artifactVersion {
		return errors.Wrapf(ErrInvalidArtifact, "unsupported version %d", a.Version)
	}
	if len(a.Samples) == 0 {
		return errors.Wrap(ErrInvalidArtifact, "no samples")
	}
	if len(a.Samples) != len(a.Targets) {
		return errors.Wrapf(ErrInvalidArtifact, "%d samples but %d targets",
			len(a.Samples), len(a.Targets))
	}
	if a.Dim <= 0 {
		return errors.Wrapf(ErrInvalidArtifact, "dimension %d", a.Dim)
	}
	for i, s := range a.Samples {
		if len(s) != a.Dim {
			return errors.Wrapf(ErrInvalidArtifact, "sample %d has %d values, want %d",
				i, len(s), a.Dim)
		}
	}
	if a.K < 1 || a.K > len(a.Samples) {
		return errors.Wrapf(ErrInvalidArtifact, "k=%d with %d samples", a.K, len(a.Samples))
	}
	switch a.Weights {
	case WeightsUniform, WeightsDistance:
	default:
		return errors.Wrapf(ErrInvalidArtifact, "unknown weights %q", a.Weights)
	}
	switch a.Metric {
	case MetricEuclidean, MetricManhattan, MetricCosine:
	default:
		return errors.Wrapf(ErrInvalidArtifact, "unknown metric %q", a.Metric)
	}
	if a.Scaler != nil {
		if len(a.Scaler.Mean) != a.Dim || len(a.Scaler.Scale) != a.Dim {
			return errors.Wrapf(ErrInvalidArtifact, "scaler has %d/%d values, want %d",
				len(a.Scaler.Mean), len(a.Scaler.Scale), a.Dim)
		}
	}
	return nil
}

// ReadArtifact decodes a msgpack artifact without validating it.
func ReadArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := msgpack.NewDecoder(r).Decode(&a); err != nil {
		return nil, errors.Wrapf(ErrInvalidArtifact, "decode: %v", err)
	}
	return &a, nil
}

// ReadJSON decodes the JSON export produced by the training notebook and stamps it
// with the current magic and version.
func ReadJSON(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, errors.Wrap(err, "decode json export")
	}
	a.Magic = artifactMagic
	a.Version = artifactVersion
	a.ApplyDefaults()
	return &a, nil
}

// Save writes the artifact atomically after validating it.
func Save(path string, a *Artifact) error {
	if a.Magic == "" {
		a.Magic = artifactMagic
	}
	if a.Version == 0 {
		a.Version = artifactVersion
	}
	a.ApplyDefaults()
	if err := a.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create artifact dir")
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create temp artifact")
	}
	w := bufio.NewWriter(f)
	if err := msgpack.NewEncoder(w).Encode(a); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "encode artifact")
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "flush artifact")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "close artifact")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "rename artifact")
	}
	return nil
}
