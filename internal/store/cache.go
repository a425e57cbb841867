package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/pbtracker/pbtracker-server/internal/domain"
)

// ViewCache holds derived read views keyed by runner: personal bests, full
// run lists and the game to categories autocomplete map. Entries are
// rebuilt from the Store and never authoritative.
type ViewCache struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenViewCache opens the cache at path. An empty path keeps it in memory.
func OpenViewCache(path string, logger *slog.Logger) (*ViewCache, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil            // Disable Badger's internal logging
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Info("View cache opened", "path", path, "in_memory", path == "")
	}
	return &ViewCache{db: db, logger: logger}, nil
}

// Close closes the cache.
func (c *ViewCache) Close() error {
	return c.db.Close()
}

// PersonalBests returns the cached personal bests for a runner.
// ok is false on a cache miss.
func (c *ViewCache) PersonalBests(username string) (pbs []domain.PersonalBest, ok bool, err error) {
	ok, err = c.get(personalBestsKey(username), &pbs)
	return pbs, ok, err
}

// SetPersonalBests replaces the cached personal bests for a runner.
func (c *ViewCache) SetPersonalBests(username string, pbs []domain.PersonalBest) error {
	return c.set(personalBestsKey(username), pbs)
}

// RunList returns the cached run list for a runner, newest first.
func (c *ViewCache) RunList(username string) (runs []domain.RunSummary, ok bool, err error) {
	ok, err = c.get(runListKey(username), &runs)
	return runs, ok, err
}

// SetRunList replaces the cached run list for a runner.
func (c *ViewCache) SetRunList(username string, runs []domain.RunSummary) error {
	return c.set(runListKey(username), runs)
}

// Categories returns the cached game name to category names map.
func (c *ViewCache) Categories() (categories map[string][]string, ok bool, err error) {
	ok, err = c.get([]byte(categoriesKey), &categories)
	return categories, ok, err
}

// SetCategories replaces the cached autocomplete map.
func (c *ViewCache) SetCategories(categories map[string][]string) error {
	return c.set([]byte(categoriesKey), categories)
}

// InvalidateRunner drops both views of a runner in one transaction.
func (c *ViewCache) InvalidateRunner(username string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(personalBestsKey(username)); err != nil {
			return err
		}
		return txn.Delete(runListKey(username))
	})
}

// InvalidateCategories drops the autocomplete map.
func (c *ViewCache) InvalidateCategories() error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(categoriesKey))
	})
}

func (c *ViewCache) get(key []byte, dest any) (bool, error) {
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cache %s: %w", key, err)
	}
	return true, nil
}

func (c *ViewCache) set(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}
