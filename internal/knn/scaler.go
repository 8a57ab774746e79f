package knn

// Scaler holds the per-feature standardization fitted on the training set.
type Scaler struct {
	Mean  []float64 `msgpack:"mean" json:"mean"`
	Scale []float64 `msgpack:"scale" json:"scale"`
}

// Transform returns (x - mean) / scale. A zero scale is treated as 1, so constant
// training features are only centered.
func (s *Scaler) Transform(vec []float32) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = float32((float64(v) - s.Mean[i]) / scale)
	}
	return out
}
