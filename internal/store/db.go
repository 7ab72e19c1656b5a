package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"btcalert/models"
)

// SignalRecord is one emitted alert as persisted to the history table.
type SignalRecord struct {
	RunID      string
	Time       time.Time
	Symbol     string
	Signal     models.Signal
	Confidence float64
	SpotPrice  float64
	Strike     float64
	Expiry     time.Time
	Sent       bool
}

// History records emitted signals in Postgres. A nil *History is a valid
// no-op instance, so callers without a DATABASE_URL need no branching.
type History struct {
	db *sql.DB
}

// OpenHistory connects to Postgres and ensures the schema. An empty URL
// returns a nil history, which silently drops records.
func OpenHistory(databaseURL string) (*History, error) {
	if databaseURL == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	h := &History{db: db}
	if err := h.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("component", "signal_history").Msg("Connected to signal history database")
	return h, nil
}

func (h *History) ensureSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS signal_history (
			id SERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			signal_time TIMESTAMPTZ NOT NULL,
			symbol TEXT NOT NULL,
			signal TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			spot_price DOUBLE PRECISION NOT NULL,
			strike DOUBLE PRECISION NOT NULL,
			expiry DATE NOT NULL,
			sent BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("creating signal_history table: %w", err)
	}
	return nil
}

// Record inserts one signal. Safe on a nil receiver.
func (h *History) Record(ctx context.Context, rec SignalRecord) error {
	if h == nil || h.db == nil {
		return nil
	}
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO signal_history
			(run_id, signal_time, symbol, signal, confidence, spot_price, strike, expiry, sent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.RunID, rec.Time, rec.Symbol, rec.Signal.String(),
		rec.Confidence, rec.SpotPrice, rec.Strike, rec.Expiry, rec.Sent)
	if err != nil {
		return fmt.Errorf("inserting signal record: %w", err)
	}
	return nil
}

// Close releases the connection pool. Safe on a nil receiver.
func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}
