package models

import (
	"math"
	"time"
)

// FeatureRow is one OHLCV bar extended with every derived indicator column
// plus the merged at-the-money call fields. Rows are built once by the
// indicator engine and the merger; downstream stages treat them as
// immutable.
type FeatureRow struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`

	// Momentum
	RSI14         float64 `json:"rsi_14"`
	RSI21         float64 `json:"rsi_21"`
	RSI7          float64 `json:"rsi_7"`
	RSIMomentum   float64 `json:"rsi_momentum"`
	PriceMomentum float64 `json:"price_momentum"`
	StochK        float64 `json:"stoch_k"`
	StochD        float64 `json:"stoch_d"`
	WilliamsR     float64 `json:"williams_r"`

	// Trend
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	MACDStd       float64 `json:"macd_std"`
	MACDSignalStd float64 `json:"macd_signal_std"`
	EMA9          float64 `json:"ema_9"`
	EMA21         float64 `json:"ema_21"`
	EMA50         float64 `json:"ema_50"`
	EMA200        float64 `json:"ema_200"`
	EMACrossShort float64 `json:"ema_cross_short"`
	EMACrossLong  float64 `json:"ema_cross_long"`

	// Volatility
	BBUpper            float64 `json:"bb_upper"`
	BBLower            float64 `json:"bb_lower"`
	BBMid              float64 `json:"bb_mid"`
	BBWidth            float64 `json:"bb_width"`
	BBPosition         float64 `json:"bb_position"`
	KCUpper            float64 `json:"kc_upper"`
	KCLower            float64 `json:"kc_lower"`
	KCMid              float64 `json:"kc_mid"`
	ATR                float64 `json:"atr"`
	ATRPercent         float64 `json:"atr_percent"`
	VolatilityBreakout float64 `json:"volatility_breakout"`

	// Volume
	VWAP         float64 `json:"vwap"`
	VWAPDistance float64 `json:"vwap_distance"`
	OBV          float64 `json:"obv"`
	OBVEMA       float64 `json:"obv_ema"`
	VolumeROC    float64 `json:"volume_roc"`

	// Pattern / structure
	HigherHigh         float64 `json:"higher_high"`
	LowerLow           float64 `json:"lower_low"`
	SupportLevel       float64 `json:"support_level"`
	ResistanceLevel    float64 `json:"resistance_level"`
	SupportDistance    float64 `json:"support_distance"`
	ResistanceDistance float64 `json:"resistance_distance"`

	// Regime
	ADX            float64 `json:"adx"`
	TrendingMarket float64 `json:"trending_market"`
	Choppiness     float64 `json:"choppiness"`

	// Crypto-specific (zero for non-crypto instruments)
	CryptoFearGreed float64 `json:"crypto_fear_greed"`
	IsWeekend       float64 `json:"is_weekend"`
	Hour            float64 `json:"hour"`
	IsUSHours       float64 `json:"is_us_hours"`
	IsAsianHours    float64 `json:"is_asian_hours"`

	MomentumConfluence float64 `json:"momentum_confluence"`
	VolatilityRegime   float64 `json:"volatility_regime"`

	// Lags
	CloseLag1 float64 `json:"close_lag_1"`
	CloseLag2 float64 `json:"close_lag_2"`
	CloseLag3 float64 `json:"close_lag_3"`
	CloseLag5 float64 `json:"close_lag_5"`
	RSILag1   float64 `json:"rsi_lag_1"`
	RSILag2   float64 `json:"rsi_lag_2"`
	RSILag3   float64 `json:"rsi_lag_3"`
	RSILag5   float64 `json:"rsi_lag_5"`
	MACDLag1  float64 `json:"macd_lag_1"`
	MACDLag2  float64 `json:"macd_lag_2"`
	MACDLag3  float64 `json:"macd_lag_3"`
	MACDLag5  float64 `json:"macd_lag_5"`

	// Rolling statistics
	CloseSMA5  float64 `json:"close_sma_5"`
	CloseSMA20 float64 `json:"close_sma_20"`
	CloseStd20 float64 `json:"close_std_20"`
	CloseSkew20 float64 `json:"close_skew_20"`
	CloseKurt20 float64 `json:"close_kurt_20"`

	// Trailing returns and realized volatility
	Return3d      float64 `json:"return_3d"`
	Return5d      float64 `json:"return_5d"`
	Return10d     float64 `json:"return_10d"`
	Return20d     float64 `json:"return_20d"`
	Volatility3d  float64 `json:"volatility_3d"`
	Volatility5d  float64 `json:"volatility_5d"`
	Volatility10d float64 `json:"volatility_10d"`
	Volatility20d float64 `json:"volatility_20d"`

	// Merged at-the-money call fields
	CallLTP    float64 `json:"call_ltp"`
	CallIV     float64 `json:"call_iv"`
	CallOI     float64 `json:"call_oi"`
	CallVolume float64 `json:"call_volume"`

	// Chain-wide aggregates
	PCRVolume float64 `json:"pcr_volume"`
	PCROI     float64 `json:"pcr_oi"`
	AvgIV     float64 `json:"avg_iv"`
	IVSkew    float64 `json:"iv_skew"`
}

// FeatureColumn binds a column name to its accessors on FeatureRow. The
// package-level tables below are the single source of truth for column
// names and ordering.
type FeatureColumn struct {
	Name string
	Get  func(*FeatureRow) float64
	Set  func(*FeatureRow, float64)
}

// FeatureColumns lists every numeric column of a FeatureRow, in canonical
// order. Used for NaN/Inf cleanup and serialization checks.
var FeatureColumns = []FeatureColumn{
	{"Close", func(r *FeatureRow) float64 { return r.Close }, func(r *FeatureRow, v float64) { r.Close = v }},
	{"Volume", func(r *FeatureRow) float64 { return r.Volume }, func(r *FeatureRow, v float64) { r.Volume = v }},
	{"RSI_14", func(r *FeatureRow) float64 { return r.RSI14 }, func(r *FeatureRow, v float64) { r.RSI14 = v }},
	{"RSI_21", func(r *FeatureRow) float64 { return r.RSI21 }, func(r *FeatureRow, v float64) { r.RSI21 = v }},
	{"RSI_7", func(r *FeatureRow) float64 { return r.RSI7 }, func(r *FeatureRow, v float64) { r.RSI7 = v }},
	{"RSI_Momentum", func(r *FeatureRow) float64 { return r.RSIMomentum }, func(r *FeatureRow, v float64) { r.RSIMomentum = v }},
	{"Price_Momentum", func(r *FeatureRow) float64 { return r.PriceMomentum }, func(r *FeatureRow, v float64) { r.PriceMomentum = v }},
	{"Stoch_K", func(r *FeatureRow) float64 { return r.StochK }, func(r *FeatureRow, v float64) { r.StochK = v }},
	{"Stoch_D", func(r *FeatureRow) float64 { return r.StochD }, func(r *FeatureRow, v float64) { r.StochD = v }},
	{"Williams_R", func(r *FeatureRow) float64 { return r.WilliamsR }, func(r *FeatureRow, v float64) { r.WilliamsR = v }},
	{"MACD", func(r *FeatureRow) float64 { return r.MACD }, func(r *FeatureRow, v float64) { r.MACD = v }},
	{"MACD_Signal", func(r *FeatureRow) float64 { return r.MACDSignal }, func(r *FeatureRow, v float64) { r.MACDSignal = v }},
	{"MACD_Histogram", func(r *FeatureRow) float64 { return r.MACDHistogram }, func(r *FeatureRow, v float64) { r.MACDHistogram = v }},
	{"MACD_Std", func(r *FeatureRow) float64 { return r.MACDStd }, func(r *FeatureRow, v float64) { r.MACDStd = v }},
	{"MACD_Signal_Std", func(r *FeatureRow) float64 { return r.MACDSignalStd }, func(r *FeatureRow, v float64) { r.MACDSignalStd = v }},
	{"EMA_9", func(r *FeatureRow) float64 { return r.EMA9 }, func(r *FeatureRow, v float64) { r.EMA9 = v }},
	{"EMA_21", func(r *FeatureRow) float64 { return r.EMA21 }, func(r *FeatureRow, v float64) { r.EMA21 = v }},
	{"EMA_50", func(r *FeatureRow) float64 { return r.EMA50 }, func(r *FeatureRow, v float64) { r.EMA50 = v }},
	{"EMA_200", func(r *FeatureRow) float64 { return r.EMA200 }, func(r *FeatureRow, v float64) { r.EMA200 = v }},
	{"EMA_Cross_Short", func(r *FeatureRow) float64 { return r.EMACrossShort }, func(r *FeatureRow, v float64) { r.EMACrossShort = v }},
	{"EMA_Cross_Long", func(r *FeatureRow) float64 { return r.EMACrossLong }, func(r *FeatureRow, v float64) { r.EMACrossLong = v }},
	{"BB_Upper", func(r *FeatureRow) float64 { return r.BBUpper }, func(r *FeatureRow, v float64) { r.BBUpper = v }},
	{"BB_Lower", func(r *FeatureRow) float64 { return r.BBLower }, func(r *FeatureRow, v float64) { r.BBLower = v }},
	{"BB_Mid", func(r *FeatureRow) float64 { return r.BBMid }, func(r *FeatureRow, v float64) { r.BBMid = v }},
	{"BB_Width", func(r *FeatureRow) float64 { return r.BBWidth }, func(r *FeatureRow, v float64) { r.BBWidth = v }},
	{"BB_Position", func(r *FeatureRow) float64 { return r.BBPosition }, func(r *FeatureRow, v float64) { r.BBPosition = v }},
	{"KC_Upper", func(r *FeatureRow) float64 { return r.KCUpper }, func(r *FeatureRow, v float64) { r.KCUpper = v }},
	{"KC_Lower", func(r *FeatureRow) float64 { return r.KCLower }, func(r *FeatureRow, v float64) { r.KCLower = v }},
	{"KC_Mid", func(r *FeatureRow) float64 { return r.KCMid }, func(r *FeatureRow, v float64) { r.KCMid = v }},
	{"ATR", func(r *FeatureRow) float64 { return r.ATR }, func(r *FeatureRow, v float64) { r.ATR = v }},
	{"ATR_Percent", func(r *FeatureRow) float64 { return r.ATRPercent }, func(r *FeatureRow, v float64) { r.ATRPercent = v }},
	{"Volatility_Breakout", func(r *FeatureRow) float64 { return r.VolatilityBreakout }, func(r *FeatureRow, v float64) { r.VolatilityBreakout = v }},
	{"VWAP", func(r *FeatureRow) float64 { return r.VWAP }, func(r *FeatureRow, v float64) { r.VWAP = v }},
	{"VWAP_Distance", func(r *FeatureRow) float64 { return r.VWAPDistance }, func(r *FeatureRow, v float64) { r.VWAPDistance = v }},
	{"OBV", func(r *FeatureRow) float64 { return r.OBV }, func(r *FeatureRow, v float64) { r.OBV = v }},
	{"OBV_EMA", func(r *FeatureRow) float64 { return r.OBVEMA }, func(r *FeatureRow, v float64) { r.OBVEMA = v }},
	{"Volume_ROC", func(r *FeatureRow) float64 { return r.VolumeROC }, func(r *FeatureRow, v float64) { r.VolumeROC = v }},
	{"Higher_High", func(r *FeatureRow) float64 { return r.HigherHigh }, func(r *FeatureRow, v float64) { r.HigherHigh = v }},
	{"Lower_Low", func(r *FeatureRow) float64 { return r.LowerLow }, func(r *FeatureRow, v float64) { r.LowerLow = v }},
	{"Support_Level", func(r *FeatureRow) float64 { return r.SupportLevel }, func(r *FeatureRow, v float64) { r.SupportLevel = v }},
	{"Resistance_Level", func(r *FeatureRow) float64 { return r.ResistanceLevel }, func(r *FeatureRow, v float64) { r.ResistanceLevel = v }},
	{"Support_Distance", func(r *FeatureRow) float64 { return r.SupportDistance }, func(r *FeatureRow, v float64) { r.SupportDistance = v }},
	{"Resistance_Distance", func(r *FeatureRow) float64 { return r.ResistanceDistance }, func(r *FeatureRow, v float64) { r.ResistanceDistance = v }},
	{"ADX", func(r *FeatureRow) float64 { return r.ADX }, func(r *FeatureRow, v float64) { r.ADX = v }},
	{"Trending_Market", func(r *FeatureRow) float64 { return r.TrendingMarket }, func(r *FeatureRow, v float64) { r.TrendingMarket = v }},
	{"Choppiness", func(r *FeatureRow) float64 { return r.Choppiness }, func(r *FeatureRow, v float64) { r.Choppiness = v }},
	{"Crypto_Fear_Greed", func(r *FeatureRow) float64 { return r.CryptoFearGreed }, func(r *FeatureRow, v float64) { r.CryptoFearGreed = v }},
	{"Is_Weekend", func(r *FeatureRow) float64 { return r.IsWeekend }, func(r *FeatureRow, v float64) { r.IsWeekend = v }},
	{"Hour", func(r *FeatureRow) float64 { return r.Hour }, func(r *FeatureRow, v float64) { r.Hour = v }},
	{"Is_US_Hours", func(r *FeatureRow) float64 { return r.IsUSHours }, func(r *FeatureRow, v float64) { r.IsUSHours = v }},
	{"Is_Asian_Hours", func(r *FeatureRow) float64 { return r.IsAsianHours }, func(r *FeatureRow, v float64) { r.IsAsianHours = v }},
	{"Momentum_Confluence", func(r *FeatureRow) float64 { return r.MomentumConfluence }, func(r *FeatureRow, v float64) { r.MomentumConfluence = v }},
	{"Volatility_Regime", func(r *FeatureRow) float64 { return r.VolatilityRegime }, func(r *FeatureRow, v float64) { r.VolatilityRegime = v }},
	{"Close_Lag_1", func(r *FeatureRow) float64 { return r.CloseLag1 }, func(r *FeatureRow, v float64) { r.CloseLag1 = v }},
	{"Close_Lag_2", func(r *FeatureRow) float64 { return r.CloseLag2 }, func(r *FeatureRow, v float64) { r.CloseLag2 = v }},
	{"Close_Lag_3", func(r *FeatureRow) float64 { return r.CloseLag3 }, func(r *FeatureRow, v float64) { r.CloseLag3 = v }},
	{"Close_Lag_5", func(r *FeatureRow) float64 { return r.CloseLag5 }, func(r *FeatureRow, v float64) { r.CloseLag5 = v }},
	{"RSI_Lag_1", func(r *FeatureRow) float64 { return r.RSILag1 }, func(r *FeatureRow, v float64) { r.RSILag1 = v }},
	{"RSI_Lag_2", func(r *FeatureRow) float64 { return r.RSILag2 }, func(r *FeatureRow, v float64) { r.RSILag2 = v }},
	{"RSI_Lag_3", func(r *FeatureRow) float64 { return r.RSILag3 }, func(r *FeatureRow, v float64) { r.RSILag3 = v }},
	{"RSI_Lag_5", func(r *FeatureRow) float64 { return r.RSILag5 }, func(r *FeatureRow, v float64) { r.RSILag5 = v }},
	{"MACD_Lag_1", func(r *FeatureRow) float64 { return r.MACDLag1 }, func(r *FeatureRow, v float64) { r.MACDLag1 = v }},
	{"MACD_Lag_2", func(r *FeatureRow) float64 { return r.MACDLag2 }, func(r *FeatureRow, v float64) { r.MACDLag2 = v }},
	{"MACD_Lag_3", func(r *FeatureRow) float64 { return r.MACDLag3 }, func(r *FeatureRow, v float64) { r.MACDLag3 = v }},
	{"MACD_Lag_5", func(r *FeatureRow) float64 { return r.MACDLag5 }, func(r *FeatureRow, v float64) { r.MACDLag5 = v }},
	{"Close_SMA_5", func(r *FeatureRow) float64 { return r.CloseSMA5 }, func(r *FeatureRow, v float64) { r.CloseSMA5 = v }},
	{"Close_SMA_20", func(r *FeatureRow) float64 { return r.CloseSMA20 }, func(r *FeatureRow, v float64) { r.CloseSMA20 = v }},
	{"Close_Std_20", func(r *FeatureRow) float64 { return r.CloseStd20 }, func(r *FeatureRow, v float64) { r.CloseStd20 = v }},
	{"Close_Skew_20", func(r *FeatureRow) float64 { return r.CloseSkew20 }, func(r *FeatureRow, v float64) { r.CloseSkew20 = v }},
	{"Close_Kurt_20", func(r *FeatureRow) float64 { return r.CloseKurt20 }, func(r *FeatureRow, v float64) { r.CloseKurt20 = v }},
	{"Return_3d", func(r *FeatureRow) float64 { return r.Return3d }, func(r *FeatureRow, v float64) { r.Return3d = v }},
	{"Return_5d", func(r *FeatureRow) float64 { return r.Return5d }, func(r *FeatureRow, v float64) { r.Return5d = v }},
	{"Return_10d", func(r *FeatureRow) float64 { return r.Return10d }, func(r *FeatureRow, v float64) { r.Return10d = v }},
	{"Return_20d", func(r *FeatureRow) float64 { return r.Return20d }, func(r *FeatureRow, v float64) { r.Return20d = v }},
	{"Volatility_3d", func(r *FeatureRow) float64 { return r.Volatility3d }, func(r *FeatureRow, v float64) { r.Volatility3d = v }},
	{"Volatility_5d", func(r *FeatureRow) float64 { return r.Volatility5d }, func(r *FeatureRow, v float64) { r.Volatility5d = v }},
	{"Volatility_10d", func(r *FeatureRow) float64 { return r.Volatility10d }, func(r *FeatureRow, v float64) { r.Volatility10d = v }},
	{"Volatility_20d", func(r *FeatureRow) float64 { return r.Volatility20d }, func(r *FeatureRow, v float64) { r.Volatility20d = v }},
	{"Call_LTP", func(r *FeatureRow) float64 { return r.CallLTP }, func(r *FeatureRow, v float64) { r.CallLTP = v }},
	{"Call_IV", func(r *FeatureRow) float64 { return r.CallIV }, func(r *FeatureRow, v float64) { r.CallIV = v }},
	{"Call_OI", func(r *FeatureRow) float64 { return r.CallOI }, func(r *FeatureRow, v float64) { r.CallOI = v }},
	{"Call_Volume", func(r *FeatureRow) float64 { return r.CallVolume }, func(r *FeatureRow, v float64) { r.CallVolume = v }},
	{"PCR_Volume", func(r *FeatureRow) float64 { return r.PCRVolume }, func(r *FeatureRow, v float64) { r.PCRVolume = v }},
	{"PCR_OI", func(r *FeatureRow) float64 { return r.PCROI }, func(r *FeatureRow, v float64) { r.PCROI = v }},
	{"Avg_IV", func(r *FeatureRow) float64 { return r.AvgIV }, func(r *FeatureRow, v float64) { r.AvgIV = v }},
	{"IV_Skew", func(r *FeatureRow) float64 { return r.IVSkew }, func(r *FeatureRow, v float64) { r.IVSkew = v }},
}

// TrainingFeatures is the candidate feature universe handed to the trainer:
// normalized/derived columns only, raw band and level columns excluded.
var TrainingFeatures = []string{
	"Close", "Volume",
	"RSI_14", "RSI_21", "RSI_7", "RSI_Momentum",
	"Stoch_K", "Stoch_D", "Williams_R",
	"MACD", "MACD_Signal", "MACD_Histogram", "MACD_Std", "MACD_Signal_Std",
	"EMA_9", "EMA_21", "EMA_50", "EMA_200",
	"EMA_Cross_Short", "EMA_Cross_Long",
	"BB_Width", "BB_Position", "ATR", "ATR_Percent",
	"Volatility_Breakout", "Volatility_Regime",
	"VWAP_Distance", "Volume_ROC",
	"Higher_High", "Lower_Low", "Support_Distance", "Resistance_Distance",
	"ADX", "Trending_Market", "Choppiness",
	"Momentum_Confluence",
	"Close_Lag_1", "Close_Lag_2", "Close_Lag_3", "Close_Lag_5",
	"RSI_Lag_1", "RSI_Lag_2", "RSI_Lag_3", "RSI_Lag_5",
	"MACD_Lag_1", "MACD_Lag_2", "MACD_Lag_3", "MACD_Lag_5",
	"Close_SMA_5", "Close_SMA_20", "Close_Std_20",
	"Close_Skew_20", "Close_Kurt_20",
	"Return_3d", "Return_5d", "Return_10d", "Return_20d",
	"Volatility_3d", "Volatility_5d", "Volatility_10d", "Volatility_20d",
	"Call_LTP", "Call_IV", "Call_OI", "Call_Volume",
}

// CryptoTrainingFeatures extends TrainingFeatures for crypto instruments.
var CryptoTrainingFeatures = []string{
	"Crypto_Fear_Greed", "Is_Weekend", "Hour", "Is_US_Hours", "Is_Asian_Hours",
	"PCR_Volume", "PCR_OI", "Avg_IV", "IV_Skew",
}

var featureIndex = func() map[string]int {
	m := make(map[string]int, len(FeatureColumns))
	for i, c := range FeatureColumns {
		m[c.Name] = i
	}
	return m
}()

// Value returns the named feature column, reporting whether the name is
// part of the schema.
func (r *FeatureRow) Value(name string) (float64, bool) {
	i, ok := featureIndex[name]
	if !ok {
		return 0, false
	}
	return FeatureColumns[i].Get(r), true
}

// IsFinite reports whether every feature column holds a finite value.
func (r *FeatureRow) IsFinite() bool {
	for _, c := range FeatureColumns {
		v := c.Get(r)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// FeatureNames returns the canonical ordered column names.
func FeatureNames() []string {
	names := make([]string, len(FeatureColumns))
	for i, c := range FeatureColumns {
		names[i] = c.Name
	}
	return names
}
