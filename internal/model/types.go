package model

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Metadata describes the exported feature extractor. It is read from the JSON
// sidecar written next to the ONNX file.
type Metadata struct {
	ModelID     string  `json:"model_id"`
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
}

func ReadMetadata(path string) (Metadata, error) {
	var metadata Metadata
	data, err := os.ReadFile(path)
	if err != nil {
		return metadata, errors.Wrap(err, "failed to read metadata")
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, errors.Wrap(err, "failed to parse metadata")
	}
	return metadata, nil
}

// Merge fills empty fields of m from other.
func (m Metadata) Merge(other Metadata) Metadata {
	if m.ModelID == "" {
		m.ModelID = other.ModelID
	}
	if m.InputName == "" {
		m.InputName = other.InputName
	}
	if m.OutputName == "" {
		m.OutputName = other.OutputName
	}
	if len(m.InputShape) == 0 {
		m.InputShape = other.InputShape
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = other.OutputShape
	}
	return m
}

func flattened(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return int(n)
}
