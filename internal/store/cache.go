// Package store persists pipeline state: a disk cache of the merged
// dataset for offline reuse, and an optional Postgres history of emitted
// signals.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"btcalert/models"
)

const mergedFile = "merged_data.json"

// Cache writes and reads the merged feature dataset under the data
// directory, giving the alert cycle a fallback when live acquisition
// fails.
type Cache struct {
	dir    string
	logger zerolog.Logger
}

func NewCache(dir string) *Cache {
	return &Cache{
		dir:    dir,
		logger: log.With().Str("component", "data_cache").Logger(),
	}
}

// SaveMerged replaces the cached dataset.
func (c *Cache) SaveMerged(rows []models.FeatureRow) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encoding merged dataset: %w", err)
	}
	path := filepath.Join(c.dir, mergedFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mergedFile, err)
	}
	c.logger.Debug().Int("rows", len(rows)).Str("path", path).Msg("Cached merged dataset")
	return nil
}

// LoadMerged reads the cached dataset. A missing cache is an error the
// caller decides how to handle.
func (c *Cache) LoadMerged() ([]models.FeatureRow, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, mergedFile))
	if err != nil {
		return nil, fmt.Errorf("reading cached dataset: %w", err)
	}
	var rows []models.FeatureRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decoding cached dataset: %w", err)
	}
	return rows, nil
}
