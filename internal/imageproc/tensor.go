package imageproc

const (
	// InputSize is the square edge InceptionV3 expects.
	InputSize = 299
	Channels  = 3
)

// Tensor is a single normalized image in NHWC order with an implicit batch of one.
type Tensor struct {
	Data     []float32
	Height   int
	Width    int
	Channels int
}

func NewTensor(height, width, channels int) *Tensor {
	return &Tensor{
		Data:     make([]float32, height*width*channels),
		Height:   height,
		Width:    width,
		Channels: channels,
	}
}

// Shape returns [height, width, channels].
func (t *Tensor) Shape() []int {
	return []int{t.Height, t.Width, t.Channels}
}

// BatchShape returns the shape with the leading batch dimension, as fed to the network.
func (t *Tensor) BatchShape() []int64 {
	return []int64{1, int64(t.Height), int64(t.Width), int64(t.Channels)}
}

func (t *Tensor) Len() int {
	return len(t.Data)
}

// At returns the value of channel c at pixel (x, y).
func (t *Tensor) At(x, y, c int) float32 {
	return t.Data[(y*t.Width+x)*t.Channels+c]
}

// ExpectedLen is the number of values of a full-size input tensor.
func ExpectedLen() int {
	return InputSize * InputSize * Channels
}

// TensorFromValues wraps raw, already normalized values. The length must match a full input.
func TensorFromValues(values []float32) (*Tensor, error) {
	if len(values) != ExpectedLen() {
		return nil, &DecodeError{
			Source: "tensor",
			Err:    errLength(len(values)),
		}
	}
	t := NewTensor(InputSize, InputSize, Channels)
	copy(t.Data, values)
	return t, nil
}
