package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/raykavin/adaptrisk/pkg/core"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLStore implements core.PerformanceStore and core.TradeRepository on
// a SQL database via GORM. Performance state is stored as one row per
// (strategy, direction, metric) so several strategies can share one
// database file.
type SQLStore struct {
	db       *gorm.DB
	strategy string
}

// SQLConfig holds the configuration for SQL database connections
type SQLConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultSQLConfig returns a default configuration for SQL connections
func DefaultSQLConfig() SQLConfig {
	return SQLConfig{
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// performanceRow is one persisted performance metric
type performanceRow struct {
	Strategy  string `gorm:"primaryKey;size:64"`
	Direction string `gorm:"primaryKey;size:8"`
	Metric    string `gorm:"primaryKey;size:32"`
	Value     string
	UpdatedAt time.Time
}

func (performanceRow) TableName() string {
	return "strategy_performance"
}

// NewFromSQLite creates a new SQLite-backed store for the named
// strategy
func NewFromSQLite(dbPath, strategy string, config SQLConfig, opts ...gorm.Option) (*SQLStore, error) {
	return newFromSQL(sqlite.Open(dbPath), strategy, config, opts...)
}

func newFromSQL(dialect gorm.Dialector, strategy string, config SQLConfig, opts ...gorm.Option) (*SQLStore, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err = db.AutoMigrate(&performanceRow{}, &core.TradeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStore{db: db, strategy: strategy}, nil
}

// Load rebuilds the performance state from its metric rows
func (s *SQLStore) Load(ctx context.Context) (*core.PerformanceState, error) {
	var rows []performanceRow
	result := s.db.WithContext(ctx).Where("strategy = ?", s.strategy).Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load performance state: %w", result.Error)
	}

	state := core.NewPerformanceState()
	for _, row := range rows {
		stats := state.Stats(core.Direction(row.Direction))
		switch row.Metric {
		case "wins":
			stats.Wins, _ = strconv.Atoi(row.Value)
		case "losses":
			stats.Losses, _ = strconv.Atoi(row.Value)
		case "streak":
			stats.Streak, _ = strconv.Atoi(row.Value)
		case "total_profit":
			stats.TotalProfit, _ = strconv.ParseFloat(row.Value, 64)
		case "recent":
			if err := json.Unmarshal([]byte(row.Value), &stats.Recent); err != nil {
				return nil, fmt.Errorf("failed to decode recent outcomes: %w", err)
			}
		}
	}

	return state, nil
}

// Save upserts all metric rows in one transaction
func (s *SQLStore) Save(ctx context.Context, state *core.PerformanceState) error {
	now := time.Now()

	rows := make([]performanceRow, 0, 10)
	for _, direction := range []core.Direction{core.DirectionLong, core.DirectionShort} {
		stats := state.Stats(direction)

		recent, err := json.Marshal(stats.Recent)
		if err != nil {
			return fmt.Errorf("failed to encode recent outcomes: %w", err)
		}

		for metric, value := range map[string]string{
			"wins":         strconv.Itoa(stats.Wins),
			"losses":       strconv.Itoa(stats.Losses),
			"streak":       strconv.Itoa(stats.Streak),
			"total_profit": strconv.FormatFloat(stats.TotalProfit, 'f', -1, 64),
			"recent":       string(recent),
		} {
			rows = append(rows, performanceRow{
				Strategy:  s.strategy,
				Direction: string(direction),
				Metric:    metric,
				Value:     value,
				UpdatedAt: now,
			})
		}
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows)
	if result.Error != nil {
		return fmt.Errorf("failed to save performance state: %w", result.Error)
	}

	return nil
}

// Clear removes all performance rows for this strategy
func (s *SQLStore) Clear(ctx context.Context) error {
	result := s.db.WithContext(ctx).
		Where("strategy = ?", s.strategy).
		Delete(&performanceRow{})
	if result.Error != nil {
		return fmt.Errorf("failed to clear performance state: %w", result.Error)
	}
	return nil
}

// SaveTrade stores or replaces a trade record
func (s *SQLStore) SaveTrade(ctx context.Context, record *core.TradeRecord) error {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(record)
	if result.Error != nil {
		return fmt.Errorf("failed to save trade record: %w", result.Error)
	}
	return nil
}

// Trades retrieves trade records matching all provided filters
func (s *SQLStore) Trades(ctx context.Context, filters ...core.TradeFilter) ([]*core.TradeRecord, error) {
	var all []*core.TradeRecord
	result := s.db.WithContext(ctx).Order("opened_at").Find(&all)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query trade records: %w", result.Error)
	}

	records := make([]*core.TradeRecord, 0, len(all))
	for _, record := range all {
		matches := true
		for _, filter := range filters {
			if !filter(*record) {
				matches = false
				break
			}
		}
		if matches {
			records = append(records, record)
		}
	}

	return records, nil
}

// DeleteTrade removes the record for the given trade identifier
func (s *SQLStore) DeleteTrade(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&core.TradeRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete trade record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", core.ErrTradeNotFound, id)
	}
	return nil
}

// Close closes the underlying database connection
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		if errors.Is(err, gorm.ErrInvalidDB) {
			return nil
		}
		return err
	}
	return sqlDB.Close()
}
