package knn

import (
	"bufio"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Neighbor is one of the k training samples closest to the query.
type Neighbor struct {
	Index    int     `json:"index"`
	Target   int     `json:"target"`
	Distance float64 `json:"distance"`
}

// Prediction is the outcome of a vote among the k nearest neighbours.
type Prediction struct {
	Class        int
	Confidence   float64
	WinningCount int
	LosingCount  int
	Neighbors    []Neighbor
}

// Classifier is a loaded, read-only nearest-neighbour model. It is safe for
// concurrent use.
type Classifier struct {
	modelID string
	k       int
	weights string
	metric  string
	dim     int
	samples [][]float64
	norms   []float64
	targets []int
	classes []int
	scaler  *Scaler
}

// Load reads and validates a classifier artifact from path.
func Load(path string) (*Classifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open classifier artifact")
	}
	defer f.Close()

	a, err := ReadArtifact(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return New(a)
}

// New builds a classifier from an in-memory artifact.
func New(a *Artifact) (*Classifier, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	c := &Classifier{
		modelID: a.ModelID,
		k:       a.K,
		weights: a.Weights,
		metric:  a.Metric,
		dim:     a.Dim,
		samples: make([][]float64, len(a.Samples)),
		targets: make([]int, len(a.Targets)),
		scaler:  a.Scaler,
	}
	copy(c.targets, a.Targets)
	for i, s := range a.Samples {
		c.samples[i] = toFloat64(s)
	}
	if c.metric == MetricCosine {
		c.norms = make([]float64, len(c.samples))
		for i, s := range c.samples {
			c.norms[i] = floats.Norm(s, 2)
		}
	}

	seen := map[int]struct{}{}
	for _, t := range c.targets {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		c.classes = append(c.classes, t)
	}
	sort.Ints(c.classes)
	return c, nil
}

func (c *Classifier) ModelID() string { return c.modelID }
func (c *Classifier) K() int          { return c.k }
func (c *Classifier) Dim() int        { return c.dim }
func (c *Classifier) Metric() string  { return c.metric }
func (c *Classifier) Weights() string { return c.weights }
func (c *Classifier) Size() int       { return len(c.samples) }

// Classes returns the distinct class indices seen during training, ascending.
func (c *Classifier) Classes() []int {
	out := make([]int, len(c.classes))
	copy(out, c.classes)
	return out
}

// Scaler returns the training-time scaler, or nil when the artifact carries none.
func (c *Classifier) Scaler() *Scaler {
	return c.scaler
}

// Predict votes among the k nearest training samples. Ties between classes go to
// the smallest class index.
func (c *Classifier) Predict(vec []float32) (Prediction, error) {
	if len(vec) != c.dim {
		return Prediction{}, errors.Errorf("vector lengths don't match: %d vs %d",
			len(vec), c.dim)
	}

	x := toFloat64(vec)
	var nx float64
	if c.metric == MetricCosine {
		nx = floats.Norm(x, 2)
	}
	neighbors := make([]Neighbor, len(c.samples))
	for i := range c.samples {
		neighbors[i] = Neighbor{
			Index:    i,
			Target:   c.targets[i],
			Distance: c.distance(x, nx, i),
		}
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance == neighbors[j].Distance {
			return neighbors[i].Index < neighbors[j].Index
		}
		return neighbors[i].Distance < neighbors[j].Distance
	})
	neighbors = neighbors[:c.k]

	votes := c.vote(neighbors)

	winner, best, total := 0, -1.0, 0.0
	for _, class := range c.classes {
		v := votes[class]
		total += v
		if v > best {
			winner, best = class, v
		}
	}

	p := Prediction{
		Class:     winner,
		Neighbors: neighbors,
	}
	if total > 0 {
		p.Confidence = best / total
	}
	for _, n := range neighbors {
		if n.Target == winner {
			p.WinningCount++
		} else {
			p.LosingCount++
		}
	}
	return p, nil
}

func (c *Classifier) vote(neighbors []Neighbor) map[int]float64 {
	votes := make(map[int]float64, len(c.classes))
	if c.weights == WeightsUniform {
		for _, n := range neighbors {
			votes[n.Target]++
		}
		return votes
	}

	// exact matches take the whole vote
	exact := false
	for _, n := range neighbors {
		if n.Distance == 0 {
			exact = true
			votes[n.Target]++
		}
	}
	if exact {
		return votes
	}
	for _, n := range neighbors {
		votes[n.Target] += 1 / n.Distance
	}
	return votes
}

// distance uses nx, the norm of x, only for the cosine metric.
func (c *Classifier) distance(x []float64, nx float64, i int) float64 {
	s := c.samples[i]
	switch c.metric {
	case MetricManhattan:
		return floats.Distance(x, s, 1)
	case MetricCosine:
		ns := c.norms[i]
		if nx == 0 || ns == 0 {
			return 1
		}
		return 1 - floats.Dot(x, s)/(nx*ns)
	default:
		return floats.Distance(x, s, 2)
	}
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
