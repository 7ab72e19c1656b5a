package train

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"btcalert/models"
)

// ErrFeatureMissing means a serving-time row lacks a column the trained
// model requires. This is a hard error: silently substituting a default
// would feed the model garbage.
var ErrFeatureMissing = errors.New("train: feature missing from serving row")

// Prediction is one inference result.
type Prediction struct {
	Signal     models.Signal
	Confidence float64
	Proba      [numClasses]float64
}

// Predictor serves a persisted model. The metadata feature list drives
// column selection and ordering; the row schema may hold more columns,
// but every listed feature must resolve.
type Predictor struct {
	model    *Ensemble
	scaler   *StandardScaler
	metadata *models.ModelMetadata
	logger   zerolog.Logger
}

// LoadPredictor reads the model artifacts from dir.
func LoadPredictor(dir string) (*Predictor, error) {
	p := &Predictor{
		model:    &Ensemble{},
		scaler:   &StandardScaler{},
		metadata: &models.ModelMetadata{},
		logger:   log.With().Str("component", "predictor").Logger(),
	}
	for name, v := range map[string]any{
		modelFile:    p.model,
		scalerFile:   p.scaler,
		metadataFile: p.metadata,
	} {
		if err := readJSON(filepath.Join(dir, name), v); err != nil {
			return nil, err
		}
	}
	if len(p.metadata.Features) == 0 {
		return nil, fmt.Errorf("train: metadata lists no features")
	}
	if len(p.metadata.Features) != len(p.scaler.Mean) {
		return nil, fmt.Errorf("train: metadata/scaler feature count mismatch (%d vs %d)",
			len(p.metadata.Features), len(p.scaler.Mean))
	}
	return p, nil
}

// Metadata exposes the loaded training metadata.
func (p *Predictor) Metadata() *models.ModelMetadata {
	return p.metadata
}

// Predict classifies one feature row. The vector is assembled in the
// exact order the metadata prescribes; confidence is the winning class
// probability as a percentage.
func (p *Predictor) Predict(row *models.FeatureRow) (Prediction, error) {
	vector := make([]float64, len(p.metadata.Features))
	for i, name := range p.metadata.Features {
		v, ok := row.Value(name)
		if !ok {
			return Prediction{}, fmt.Errorf("%w: %s", ErrFeatureMissing, name)
		}
		vector[i] = v
	}

	scaled, err := p.scaler.TransformRow(vector)
	if err != nil {
		return Prediction{}, err
	}

	proba := p.model.PredictProba(scaled)
	best := 0
	for i := 1; i < numClasses; i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return Prediction{
		Signal:     models.Signal(best),
		Confidence: proba[best] * 100,
		Proba:      proba,
	}, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return nil
}
