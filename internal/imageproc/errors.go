package imageproc

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrDecode marks every failure to turn input bytes into a tensor.
var ErrDecode = errors.New("cannot decode image")

// DecodeError reports which input could not be decoded and why.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrDecode, e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func errLength(got int) error {
	return errors.Errorf("expected %d values, got %d", ExpectedLen(), got)
}
