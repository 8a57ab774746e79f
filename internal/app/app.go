package app

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/skinclass/internal/config"
	"github.com/Brownie44l1/skinclass/internal/knn"
	"github.com/Brownie44l1/skinclass/internal/labels"
	"github.com/Brownie44l1/skinclass/internal/model"
	"github.com/Brownie44l1/skinclass/internal/pipeline"
)

type extractor interface {
	pipeline.Extractor
	io.Closer
}

var openExtractor = func(opts model.Options, logger logrus.FieldLogger) (extractor, error) {
	return model.NewOnnxExtractor(opts, logger)
}

// App owns the loaded artifacts for the lifetime of a process.
type App struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline

	extractor extractor
}

// New validates cfg, loads both artifacts and builds the pipeline. Any failure is an
// *pipeline.ArtifactError and nothing is left open.
func New(cfg *config.Config, logger logrus.FieldLogger, recorder pipeline.Recorder) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &pipeline.ArtifactError{Artifact: "configuration", Err: err}
	}
	mapper, err := labels.New(cfg.Labels)
	if err != nil {
		return nil, &pipeline.ArtifactError{Artifact: "labels", Err: err}
	}

	logger.WithField("path", cfg.Classifier.Path).Info("loading classifier")
	classifier, err := knn.Load(cfg.Classifier.Path)
	if err != nil {
		return nil, &pipeline.ArtifactError{Artifact: "classifier", Err: err}
	}

	logger.WithField("path", cfg.Extractor.ModelPath).Info("loading feature extractor")
	ext, err := openExtractor(model.Options{
		LibraryPath:  cfg.Extractor.LibraryPath,
		ModelPath:    cfg.Extractor.ModelPath,
		MetadataPath: cfg.Extractor.MetadataPath,
		Metadata: model.Metadata{
			ModelID:     cfg.Extractor.ModelID,
			InputName:   cfg.Extractor.InputName,
			OutputName:  cfg.Extractor.OutputName,
			OutputShape: cfg.Extractor.OutputShape,
		},
	}, logger)
	if err != nil {
		return nil, &pipeline.ArtifactError{Artifact: "feature extractor", Err: err}
	}

	p, err := pipeline.New(pipeline.Options{
		Extractor:           ext,
		Classifier:          classifier,
		Labels:              mapper,
		ApplyFeatureScaling: cfg.ApplyFeatureScaling,
		StrictModelMatch:    cfg.Classifier.StrictModelMatch,
		Logger:              logger,
		Recorder:            recorder,
	})
	if err != nil {
		ext.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"model_id":        ext.ModelID(),
		"features":        ext.FeatureLength(),
		"samples":         classifier.Size(),
		"k":               classifier.K(),
		"metric":          classifier.Metric(),
		"feature_scaling": p.ScalingEnabled(),
		"labels":          mapper.Names(),
	}).Info("model loaded")

	return &App{Config: cfg, Pipeline: p, extractor: ext}, nil
}

func (a *App) Close() error {
	return a.extractor.Close()
}
