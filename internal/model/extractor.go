package model

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/skinclass/internal/imageproc"
)

// Defaults match keras.applications.InceptionV3(include_top=False) exported with tf2onnx.
var Defaults = Metadata{
	ModelID:     "inception_v3-imagenet-notop",
	InputName:   "input_1",
	OutputName:  "mixed10",
	InputShape:  []int64{1, imageproc.InputSize, imageproc.InputSize, imageproc.Channels},
	OutputShape: []int64{1, 8, 8, 2048},
}

type Options struct {
	LibraryPath  string
	ModelPath    string
	MetadataPath string
	Metadata     Metadata
}

// OnnxExtractor runs the frozen convolutional base through onnxruntime. The session
// is bound to preallocated tensors, so calls are serialized.
type OnnxExtractor struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	logger       logrus.FieldLogger
}

func NewOnnxExtractor(opts Options, logger logrus.FieldLogger) (*OnnxExtractor, error) {
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, errors.Wrap(err, "feature extractor model")
	}

	metadata := opts.Metadata
	if opts.MetadataPath != "" {
		sidecar, err := ReadMetadata(opts.MetadataPath)
		if err != nil {
			return nil, err
		}
		metadata = metadata.Merge(sidecar)
	}
	metadata = metadata.Merge(Defaults)

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "failed to initialize ONNX environment")
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create input tensor")
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "failed to create output tensor")
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "failed to create ONNX session")
	}

	logger.WithFields(logrus.Fields{
		"model":        opts.ModelPath,
		"model_id":     metadata.ModelID,
		"input_shape":  metadata.InputShape,
		"output_shape": metadata.OutputShape,
	}).Info("feature extractor loaded")

	return &OnnxExtractor{
		session:      session,
		metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		logger:       logger,
	}, nil
}

func (e *OnnxExtractor) ModelID() string {
	return e.metadata.ModelID
}

func (e *OnnxExtractor) Metadata() Metadata {
	return e.metadata
}

// FeatureLength is the size of the flattened output, 8*8*2048 for the default export.
func (e *OnnxExtractor) FeatureLength() int {
	return flattened(e.metadata.OutputShape)
}

// Extract runs one image through the network and returns the flattened feature map.
func (e *OnnxExtractor) Extract(ctx context.Context, t *imageproc.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if want := flattened(e.metadata.InputShape); t.Len() != want {
		return nil, errors.Errorf("input tensor has %d values, model expects %d", t.Len(), want)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, errors.New("feature extractor is closed")
	}
	copy(e.inputTensor.GetData(), t.Data)
	if err := e.session.Run(); err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}

	out := e.outputTensor.GetData()
	features := make([]float32, len(out))
	copy(features, out)
	return features, nil
}

func (e *OnnxExtractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	e.logger.Debug("feature extractor closed")
	return ort.DestroyEnvironment()
}
