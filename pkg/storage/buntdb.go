// Package storage provides persistence backends for performance state
// and open trade records.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raykavin/adaptrisk/pkg/core"
	"github.com/tidwall/buntdb"
)

const (
	// performanceKey holds the single performance state snapshot
	performanceKey = "performance:state"

	// tradeKeyPrefix namespaces open trade records
	tradeKeyPrefix = "trade:"

	// tradeIndexName orders trade records by open time
	tradeIndexName = "trade_opened_index"
)

// BuntStore implements core.PerformanceStore and core.TradeRepository
// on top of BuntDB, either file backed or in-memory
type BuntStore struct {
	db *buntdb.DB
}

// NewFromMemory creates an in-memory store, useful for backtests and
// tests where restart safety is not needed
func NewFromMemory() (*BuntStore, error) {
	return NewBuntStore(":memory:")
}

// NewFromFile creates a file-backed store
func NewFromFile(file string) (*BuntStore, error) {
	return NewBuntStore(file)
}

// NewBuntStore opens a BuntDB database and prepares the trade index
func NewBuntStore(sourceFile string) (*BuntStore, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{
		SyncPolicy: buntdb.EverySecond,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	if err := db.CreateIndex(tradeIndexName, tradeKeyPrefix+"*", buntdb.IndexJSON("opened_at")); err != nil {
		return nil, fmt.Errorf("failed to create trade index: %w", err)
	}

	return &BuntStore{db: db}, nil
}

// Load retrieves the persisted performance state, or an empty state
// when nothing was saved yet
func (b *BuntStore) Load(_ context.Context) (*core.PerformanceState, error) {
	state := core.NewPerformanceState()

	err := b.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(performanceKey)
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(value), state)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load performance state: %w", err)
	}

	return state, nil
}

// Save persists the full performance state snapshot
func (b *BuntStore) Save(_ context.Context, state *core.PerformanceState) error {
	content, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal performance state: %w", err)
	}

	return b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(performanceKey, string(content), nil)
		return err
	})
}

// Clear removes the persisted performance state
func (b *BuntStore) Clear(_ context.Context) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(performanceKey)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

// SaveTrade stores or replaces a trade record
func (b *BuntStore) SaveTrade(_ context.Context, record *core.TradeRecord) error {
	content, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal trade record: %w", err)
	}

	return b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(tradeKeyPrefix+record.ID, string(content), nil)
		return err
	})
}

// Trades retrieves trade records matching all provided filters, ordered
// by open time
func (b *BuntStore) Trades(_ context.Context, filters ...core.TradeFilter) ([]*core.TradeRecord, error) {
	records := make([]*core.TradeRecord, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(tradeIndexName, func(key, value string) bool {
			if !strings.HasPrefix(key, tradeKeyPrefix) {
				return true
			}

			var record core.TradeRecord
			if err := json.Unmarshal([]byte(value), &record); err != nil {
				// Skip unreadable entries and keep iterating
				return true
			}

			for _, filter := range filters {
				if !filter(record) {
					return true
				}
			}

			records = append(records, &record)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query trade records: %w", err)
	}

	return records, nil
}

// DeleteTrade removes the record for the given trade identifier
func (b *BuntStore) DeleteTrade(_ context.Context, id string) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(tradeKeyPrefix + id)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

// Close closes the underlying database
func (b *BuntStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
