package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

// InputError is a recoverable failure caused by the image the caller supplied:
// a bad path, an unreadable file or bytes that are not a raster. The pipeline
// stays usable.
type InputError struct {
	Source string
	Err    error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input %s: %v", e.Source, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// ArtifactError means a model artifact is missing, unreadable or incompatible.
// It is fatal at startup.
type ArtifactError struct {
	Artifact string
	Err      error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("artifact %s: %v", e.Artifact, e.Err)
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}

func IsInputError(err error) bool {
	var target *InputError
	return errors.As(err, &target)
}

func IsArtifactError(err error) bool {
	var target *ArtifactError
	return errors.As(err, &target)
}

// ErrorKind buckets an error for metrics and exit codes.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsInputError(err):
		return "input"
	case IsArtifactError(err):
		return "artifact"
	default:
		return "inference"
	}
}
