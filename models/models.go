package models

import (
	"time"
)

// Bar is a single OHLCV candle. Sequences are ordered oldest first with
// strictly increasing timestamps.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// OptionQuote is one option instrument snapshot from a chain fetch.
type OptionQuote struct {
	Time   time.Time  `json:"time"`
	Strike float64    `json:"strike"`
	Type   OptionType `json:"type"`
	Expiry time.Time  `json:"expiry"`
	LTP    float64    `json:"ltp"`
	IV     float64    `json:"iv"`
	OI     float64    `json:"oi"`
	Volume float64    `json:"volume"`
}

// Signal is a discrete trade recommendation.
type Signal int

const (
	NoAction Signal = 0
	BuyCall  Signal = 1
	BuyPut   Signal = 2
)

func (s Signal) String() string {
	switch s {
	case BuyCall:
		return "BUY_CALL"
	case BuyPut:
		return "BUY_PUT"
	default:
		return "NO_ACTION"
	}
}

// Confidence is a coarse bucket summarizing prediction strength.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// LabeledRow is a feature row plus its training label.
type LabeledRow struct {
	FeatureRow
	Signal         Signal     `json:"signal"`
	SignalConf     Confidence `json:"signal_confidence"`
	ExpectedProfit float64    `json:"expected_profit"`
}

// ModelMetadata is the JSON sidecar written next to the serialized model
// artifacts. The Features list is the authoritative train/serve contract:
// inference selects and orders columns to match it exactly.
type ModelMetadata struct {
	Accuracy        float64  `json:"accuracy"`
	Precision       float64  `json:"precision"`
	Recall          float64  `json:"recall"`
	F1Score         float64  `json:"f1_score"`
	CVMean          float64  `json:"cv_mean"`
	CVStd           float64  `json:"cv_std"`
	Features        []string `json:"features"`
	ModelType       string   `json:"model_type"`
	TrainingSamples int      `json:"training_samples"`
	TestSamples     int      `json:"test_samples"`
}
