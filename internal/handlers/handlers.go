package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/skinclass/internal/imageproc"
	"github.com/Brownie44l1/skinclass/internal/knn"
	"github.com/Brownie44l1/skinclass/internal/labels"
	"github.com/Brownie44l1/skinclass/internal/pipeline"
)

const defaultMaxUpload = 10 << 20

// Predictor is the part of the pipeline the HTTP surface needs.
type Predictor interface {
	PredictReader(ctx context.Context, source string, r io.Reader) (*pipeline.Result, error)
	PredictTensor(ctx context.Context, source string, t *imageproc.Tensor) (*pipeline.Result, error)
	Labels() *labels.Mapper
	ModelID() string
	ScalingEnabled() bool
}

type Handler struct {
	predictor Predictor
	maxUpload int64
	logger    logrus.FieldLogger
}

func NewHandler(predictor Predictor, maxUpload int64, logger logrus.FieldLogger) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handler{
		predictor: predictor,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// TensorRequest carries an already normalized 299x299x3 tensor in NHWC order.
type TensorRequest struct {
	Tensor []float32 `json:"tensor"`
}

type PredictionResponse struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	ClassIndex int            `json:"class_index"`
	Known      bool           `json:"known"`
	Confidence float64        `json:"confidence"`
	Neighbors  []knn.Neighbor `json:"neighbors"`
	Scaled     bool           `json:"scaled"`
	DurationMs float64        `json:"duration_ms"`
}

type BatchItemResponse struct {
	Filename string              `json:"filename"`
	Result   *PredictionResponse `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
}

type HealthResponse struct {
	Status         string   `json:"status"`
	ModelID        string   `json:"model_id"`
	Labels         []string `json:"labels"`
	FeatureScaling bool     `json:"feature_scaling"`
}

func newPredictionResponse(res *pipeline.Result) *PredictionResponse {
	return &PredictionResponse{
		ID:         res.ID,
		Label:      res.Label,
		ClassIndex: res.ClassIndex,
		Known:      res.Known,
		Confidence: res.Confidence,
		Neighbors:  res.Neighbors,
		Scaled:     res.Scaled,
		DurationMs: float64(res.Duration.Microseconds()) / 1000,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		ModelID:        h.predictor.ModelID(),
		Labels:         h.predictor.Labels().Names(),
		FeatureScaling: h.predictor.ScalingEnabled(),
	})
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// float32 JSON values can take up to ~16 bytes each
	body := http.MaxBytesReader(w, r.Body, int64(imageproc.ExpectedLen())*16+1024)
	var req TensorRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if expected := imageproc.ExpectedLen(); len(req.Tensor) != expected {
		http.Error(w, fmt.Sprintf("Expected %d values, got %d", expected, len(req.Tensor)),
			http.StatusBadRequest)
		return
	}

	t, err := imageproc.TensorFromValues(req.Tensor)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.predictor.PredictTensor(r.Context(), "tensor", t)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPredictionResponse(res))
}

func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	h.logger.WithFields(logrus.Fields{
		"filename": header.Filename,
		"size":     header.Size,
	}).Debug("received image")

	res, err := h.predictor.PredictReader(r.Context(), header.Filename, file)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPredictionResponse(res))
}

// PredictBatch classifies every "images" part of the form. A file that cannot be
// decoded gets an error entry and the rest are still classified.
func (h *Handler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		http.Error(w, "No image files provided. Use 'images' as the form field name", http.StatusBadRequest)
		return
	}

	out := make([]BatchItemResponse, len(files))
	for i, header := range files {
		out[i].Filename = header.Filename

		file, err := header.Open()
		if err != nil {
			out[i].Error = err.Error()
			continue
		}
		res, err := h.predictor.PredictReader(r.Context(), header.Filename, file)
		file.Close()
		if err != nil {
			if !pipeline.IsInputError(err) {
				h.fail(w, err)
				return
			}
			out[i].Error = err.Error()
			continue
		}
		out[i].Result = newPredictionResponse(res)
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if pipeline.IsInputError(err) {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG, BMP", http.StatusBadRequest)
		return
	}
	h.logger.WithError(err).Error("prediction failed")
	http.Error(w, "Prediction failed", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
