package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/skinclass/internal/labels"
)

const (
	DefaultModelPath      = "models/inception_v3_notop.onnx"
	DefaultClassifierPath = "models/inception_v3_knn.msgpack"
	DefaultPort           = "8080"
	DefaultMaxUploadMB    = 10
)

type Extractor struct {
	LibraryPath  string  `yaml:"library_path"`
	ModelPath    string  `yaml:"model_path"`
	MetadataPath string  `yaml:"metadata_path"`
	InputName    string  `yaml:"input_name"`
	OutputName   string  `yaml:"output_name"`
	OutputShape  []int64 `yaml:"output_shape"`
	ModelID      string  `yaml:"model_id"`
}

type Classifier struct {
	Path             string `yaml:"path"`
	StrictModelMatch bool   `yaml:"strict_model_match"`
}

type Server struct {
	Port        string `yaml:"port"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

type Batch struct {
	Workers int `yaml:"workers"`
}

type Config struct {
	Extractor           Extractor  `yaml:"extractor"`
	Classifier          Classifier `yaml:"classifier"`
	ApplyFeatureScaling bool       `yaml:"apply_feature_scaling"`
	Labels              []string   `yaml:"labels"`
	Server              Server     `yaml:"server"`
	Batch               Batch      `yaml:"batch"`
}

// Load reads the optional .env file, the YAML file at path (skipped when path is
// empty) and then the environment overrides. Defaults fill whatever is left.
func Load(path string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "decode config %s", path)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SKINCLASS_MODEL_PATH"); ok && v != "" {
		c.Extractor.ModelPath = v
	}
	if v, ok := lookup("SKINCLASS_CLASSIFIER_PATH"); ok && v != "" {
		c.Classifier.Path = v
	}
	if v, ok := lookup("SKINCLASS_ORT_LIBRARY"); ok && v != "" {
		c.Extractor.LibraryPath = v
	}
	if v, ok := lookup("SKINCLASS_APPLY_FEATURE_SCALING"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "SKINCLASS_APPLY_FEATURE_SCALING")
		}
		c.ApplyFeatureScaling = b
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Server.Port = v
	}
	return nil
}

// ApplyDefaults populates zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Extractor.ModelPath == "" {
		c.Extractor.ModelPath = DefaultModelPath
	}
	if c.Classifier.Path == "" {
		c.Classifier.Path = DefaultClassifierPath
	}
	if len(c.Labels) == 0 {
		c.Labels = labels.Default().Names()
	}
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = DefaultMaxUploadMB
	}
}

// Validate checks that both artifacts exist. It does not open them.
func (c *Config) Validate() error {
	if _, err := os.Stat(c.Extractor.ModelPath); err != nil {
		return errors.Wrap(err, "extractor.model_path")
	}
	if c.Extractor.MetadataPath != "" {
		if _, err := os.Stat(c.Extractor.MetadataPath); err != nil {
			return errors.Wrap(err, "extractor.metadata_path")
		}
	}
	if _, err := os.Stat(c.Classifier.Path); err != nil {
		return errors.Wrap(err, "classifier.path")
	}
	if _, err := labels.New(c.Labels); err != nil {
		return errors.Wrap(err, "labels")
	}
	return nil
}

func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}
