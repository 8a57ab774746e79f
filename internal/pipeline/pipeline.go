package pipeline

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/skinclass/internal/imageproc"
	"github.com/Brownie44l1/skinclass/internal/knn"
	"github.com/Brownie44l1/skinclass/internal/labels"
)

// Extractor produces a flattened feature vector for a preprocessed image.
type Extractor interface {
	Extract(ctx context.Context, t *imageproc.Tensor) ([]float32, error)
	FeatureLength() int
	ModelID() string
}

// Classifier maps a feature vector to a class index.
type Classifier interface {
	Predict(vec []float32) (knn.Prediction, error)
	Dim() int
	ModelID() string
	Classes() []int
	Scaler() *knn.Scaler
}

// Recorder receives prediction outcomes. It may be nil.
type Recorder interface {
	ObservePrediction(label string, d time.Duration)
	ObserveError(kind string)
}

type Options struct {
	Extractor           Extractor
	Classifier          Classifier
	Labels              *labels.Mapper
	ApplyFeatureScaling bool
	StrictModelMatch    bool
	Logger              logrus.FieldLogger
	Recorder            Recorder
}

// Pipeline is the immutable inference context shared by every prediction: the
// preprocessor, the two loaded artifacts and the label table.
type Pipeline struct {
	pre        *imageproc.Preprocessor
	extractor  Extractor
	classifier Classifier
	labels     *labels.Mapper
	scaler     *knn.Scaler
	recorder   Recorder
	logger     logrus.FieldLogger
}

// Result is one classified image.
type Result struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	ClassIndex int            `json:"class_index"`
	Label      string         `json:"label"`
	Known      bool           `json:"known"`
	Confidence float64        `json:"confidence"`
	Neighbors  []knn.Neighbor `json:"neighbors"`
	Scaled     bool           `json:"scaled"`
	Duration   time.Duration  `json:"-"`
}

// New checks that the artifacts fit together and returns a ready pipeline.
// Every failure is an *ArtifactError.
func New(opts Options) (*Pipeline, error) {
	if opts.Extractor == nil {
		return nil, &ArtifactError{Artifact: "feature extractor", Err: errors.New("not loaded")}
	}
	if opts.Classifier == nil {
		return nil, &ArtifactError{Artifact: "classifier", Err: errors.New("not loaded")}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	mapper := opts.Labels
	if mapper == nil {
		mapper = labels.Default()
	}

	if got, want := opts.Extractor.FeatureLength(), opts.Classifier.Dim(); got != want {
		return nil, &ArtifactError{
			Artifact: "classifier",
			Err: errors.Errorf("extractor yields %d features but classifier was fit on %d",
				got, want),
		}
	}

	extractorID, classifierID := opts.Extractor.ModelID(), opts.Classifier.ModelID()
	if extractorID != "" && classifierID != "" && extractorID != classifierID {
		if opts.StrictModelMatch {
			return nil, &ArtifactError{
				Artifact: "classifier",
				Err: errors.Errorf("classifier was fit on features of %q, extractor is %q",
					classifierID, extractorID),
			}
		}
		logger.WithFields(logrus.Fields{
			"extractor":  extractorID,
			"classifier": classifierID,
		}).Warn("classifier was fit on a different feature extractor, predictions may be meaningless")
	}

	var scaler *knn.Scaler
	if opts.ApplyFeatureScaling {
		scaler = opts.Classifier.Scaler()
		if scaler == nil {
			return nil, &ArtifactError{
				Artifact: "classifier",
				Err:      errors.New("feature scaling is enabled but the artifact has no fitted scaler"),
			}
		}
	}

	for _, class := range opts.Classifier.Classes() {
		if !mapper.Known(class) {
			logger.WithField("class", class).
				Warn("classifier can predict a class with no label, it will show as unknown")
		}
	}

	return &Pipeline{
		pre:        imageproc.NewPreprocessor(logger),
		extractor:  opts.Extractor,
		classifier: opts.Classifier,
		labels:     mapper,
		scaler:     scaler,
		recorder:   opts.Recorder,
		logger:     logger,
	}, nil
}

func (p *Pipeline) Labels() *labels.Mapper {
	return p.labels
}

func (p *Pipeline) ModelID() string {
	return p.extractor.ModelID()
}

func (p *Pipeline) ScalingEnabled() bool {
	return p.scaler != nil
}

func (p *Pipeline) PredictFile(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	t, err := p.pre.Load(path)
	if err != nil {
		return nil, p.fail(&InputError{Source: path, Err: err})
	}
	return p.classify(ctx, path, t, start)
}

func (p *Pipeline) PredictReader(ctx context.Context, source string, r io.Reader) (*Result, error) {
	start := time.Now()
	t, err := p.pre.Decode(r)
	if err != nil {
		return nil, p.fail(&InputError{Source: source, Err: err})
	}
	return p.classify(ctx, source, t, start)
}

func (p *Pipeline) PredictImage(ctx context.Context, source string, img image.Image) (*Result, error) {
	start := time.Now()
	t, err := p.pre.FromImage(img)
	if err != nil {
		return nil, p.fail(&InputError{Source: source, Err: err})
	}
	return p.classify(ctx, source, t, start)
}

// PredictTensor classifies an already normalized 299x299x3 tensor.
func (p *Pipeline) PredictTensor(ctx context.Context, source string, t *imageproc.Tensor) (*Result, error) {
	return p.classify(ctx, source, t, time.Now())
}

func (p *Pipeline) classify(ctx context.Context, source string, t *imageproc.Tensor, start time.Time) (*Result, error) {
	features, err := p.extractor.Extract(ctx, t)
	if err != nil {
		return nil, p.fail(errors.Wrap(err, "extract features"))
	}
	if p.scaler != nil {
		features = p.scaler.Transform(features)
	}

	prediction, err := p.classifier.Predict(features)
	if err != nil {
		return nil, p.fail(errors.Wrap(err, "classify features"))
	}

	res := &Result{
		ID:         uuid.NewString(),
		Source:     source,
		ClassIndex: prediction.Class,
		Label:      p.labels.Label(prediction.Class),
		Known:      p.labels.Known(prediction.Class),
		Confidence: prediction.Confidence,
		Neighbors:  prediction.Neighbors,
		Scaled:     p.scaler != nil,
		Duration:   time.Since(start),
	}

	entry := p.logger.WithFields(logrus.Fields{
		"id":          res.ID,
		"source":      source,
		"class_index": res.ClassIndex,
		"label":       res.Label,
		"confidence":  res.Confidence,
		"took":        res.Duration,
	})
	if !res.Known {
		entry.Warn("classifier returned an unmapped class")
	} else {
		entry.Debug("prediction")
	}

	if p.recorder != nil {
		p.recorder.ObservePrediction(res.Label, res.Duration)
	}
	return res, nil
}

func (p *Pipeline) fail(err error) error {
	if p.recorder != nil {
		p.recorder.ObserveError(ErrorKind(err))
	}
	return err
}
