// Package train fits the signal classifier: ANOVA feature selection,
// standardization, and a bagged stump ensemble with soft voting. Fitted
// artifacts persist as JSON; the metadata sidecar's feature list is the
// authoritative train/serve contract.
package train

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"btcalert/config"
	"btcalert/models"
)

const (
	modelFile    = "trade_model.json"
	scalerFile   = "feature_scaler.json"
	selectorFile = "feature_selector.json"
	metadataFile = "model_metadata.json"

	maxSelectedFeatures = 30
	ensembleSize        = 200
	trainSeed           = 42
	cvFolds             = 5
)

// ErrSingleClass means the labeled data contains only one signal class,
// which cannot train a classifier.
var ErrSingleClass = errors.New("train: labeled data holds a single class")

// Trainer fits and persists the model artifacts.
type Trainer struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func NewTrainer(cfg *config.Config) *Trainer {
	return &Trainer{
		cfg:    cfg,
		logger: log.With().Str("component", "trainer").Logger(),
	}
}

// Train fits the full pipeline on labeled rows and writes the four
// artifact files to the model directory. Selection runs before scaling
// so the scaler only learns the surviving columns.
func (t *Trainer) Train(rows []models.LabeledRow) (*models.ModelMetadata, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("train: no labeled rows")
	}

	features := t.featureUniverse()
	x := buildMatrix(rows, features)
	y := make([]int, len(rows))
	classes := map[int]bool{}
	for i := range rows {
		y[i] = int(rows[i].Signal)
		classes[y[i]] = true
	}
	if len(classes) < 2 {
		return nil, ErrSingleClass
	}

	selector := &Selector{}
	selector.Fit(x, y, features, min(maxSelectedFeatures, len(features)))
	xSel := selector.Transform(x)

	scaler := &StandardScaler{}
	if err := scaler.Fit(xSel); err != nil {
		return nil, err
	}
	xScaled, err := scaler.Transform(xSel)
	if err != nil {
		return nil, err
	}

	cvMean, cvStd := t.crossValidate(xScaled, y)

	trainIdx, testIdx := holdoutSplit(len(rows), 0.2, trainSeed)
	model, err := FitEnsemble(subset(xScaled, trainIdx), subsetInt(y, trainIdx), ensembleSize, trainSeed)
	if err != nil {
		return nil, err
	}
	accuracy, precision, recall, f1 := evaluate(model, subset(xScaled, testIdx), subsetInt(y, testIdx))

	// Final model refits on everything; holdout metrics describe it.
	final, err := FitEnsemble(xScaled, y, ensembleSize, trainSeed)
	if err != nil {
		return nil, err
	}

	meta := &models.ModelMetadata{
		Accuracy:        accuracy,
		Precision:       precision,
		Recall:          recall,
		F1Score:         f1,
		CVMean:          cvMean,
		CVStd:           cvStd,
		Features:        selector.Selected,
		ModelType:       "bagged_stump_ensemble",
		TrainingSamples: len(trainIdx),
		TestSamples:     len(testIdx),
	}

	if accuracy < t.cfg.MinAccuracyThreshold {
		t.logger.Warn().
			Float64("accuracy", accuracy).
			Float64("threshold", t.cfg.MinAccuracyThreshold).
			Msg("Model accuracy below configured threshold")
	}

	if err := t.persist(final, scaler, selector, meta); err != nil {
		return nil, err
	}
	t.logger.Info().
		Float64("accuracy", accuracy).
		Float64("f1", f1).
		Int("features", len(selector.Selected)).
		Msg("Trained and persisted model")
	return meta, nil
}

func (t *Trainer) featureUniverse() []string {
	features := append([]string(nil), models.TrainingFeatures...)
	if t.cfg.IsCrypto() {
		features = append(features, models.CryptoTrainingFeatures...)
	}
	return features
}

// buildMatrix extracts candidate columns, forward-filling residual NaN
// from the previous row and zero-filling what remains.
func buildMatrix(rows []models.LabeledRow, features []string) [][]float64 {
	x := make([][]float64, len(rows))
	for i := range rows {
		x[i] = make([]float64, len(features))
		for j, name := range features {
			v, _ := rows[i].Value(name)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				if i > 0 {
					v = x[i-1][j]
				} else {
					v = 0
				}
			}
			x[i][j] = v
		}
	}
	return x
}

// crossValidate runs expanding-window validation: fold k trains on all
// earlier folds and tests on fold k, respecting time order.
func (t *Trainer) crossValidate(x [][]float64, y []int) (mean, std float64) {
	foldSize := len(x) / cvFolds
	if foldSize == 0 {
		return 0, 0
	}

	var scores []float64
	for k := 1; k < cvFolds; k++ {
		trainEnd := k * foldSize
		testEnd := trainEnd + foldSize
		if k == cvFolds-1 {
			testEnd = len(x)
		}

		if !hasTwoClasses(y[:trainEnd]) {
			continue
		}
		model, err := FitEnsemble(x[:trainEnd], y[:trainEnd], ensembleSize, trainSeed)
		if err != nil {
			continue
		}
		acc, _, _, _ := evaluate(model, x[trainEnd:testEnd], y[trainEnd:testEnd])
		scores = append(scores, acc)
	}
	if len(scores) == 0 {
		return 0, 0
	}

	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))
	for _, s := range scores {
		std += (s - mean) * (s - mean)
	}
	return mean, math.Sqrt(std / float64(len(scores)))
}

func hasTwoClasses(y []int) bool {
	seen := map[int]bool{}
	for _, c := range y {
		seen[c] = true
		if len(seen) > 1 {
			return true
		}
	}
	return false
}

// holdoutSplit shuffles indices deterministically and carves off the
// final testFraction as the holdout.
func holdoutSplit(n int, testFraction float64, seed int64) (train, test []int) {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	cut := n - int(float64(n)*testFraction)
	if cut < 1 {
		cut = 1
	}
	if cut >= n {
		cut = n - 1
	}
	return idx[:cut], idx[cut:]
}

func subset(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

func subsetInt(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

// evaluate computes accuracy and class-weighted precision, recall and F1
// on a test split.
func evaluate(model *Ensemble, x [][]float64, y []int) (accuracy, precision, recall, f1 float64) {
	if len(x) == 0 {
		return 0, 0, 0, 0
	}

	var tp, fp, fn [numClasses]float64
	var support [numClasses]float64
	correct := 0
	for i := range x {
		pred := model.Predict(x[i])
		if pred == y[i] {
			correct++
			tp[y[i]]++
		} else {
			fp[pred]++
			fn[y[i]]++
		}
		support[y[i]]++
	}
	accuracy = float64(correct) / float64(len(x))

	total := float64(len(x))
	for c := 0; c < numClasses; c++ {
		if support[c] == 0 {
			continue
		}
		var p, r float64
		if tp[c]+fp[c] > 0 {
			p = tp[c] / (tp[c] + fp[c])
		}
		if tp[c]+fn[c] > 0 {
			r = tp[c] / (tp[c] + fn[c])
		}
		var f float64
		if p+r > 0 {
			f = 2 * p * r / (p + r)
		}
		w := support[c] / total
		precision += w * p
		recall += w * r
		f1 += w * f
	}
	return accuracy, precision, recall, f1
}

func (t *Trainer) persist(model *Ensemble, scaler *StandardScaler, selector *Selector, meta *models.ModelMetadata) error {
	if err := os.MkdirAll(t.cfg.ModelDir, 0o755); err != nil {
		return fmt.Errorf("creating model dir: %w", err)
	}
	artifacts := map[string]any{
		modelFile:    model,
		scalerFile:   scaler,
		selectorFile: selector,
		metadataFile: meta,
	}
	for name, v := range artifacts {
		if err := writeJSON(filepath.Join(t.cfg.ModelDir, name), v); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
