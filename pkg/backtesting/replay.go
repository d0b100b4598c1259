// Package backtesting replays recorded trade outcomes through the risk
// engine so its adaptive behavior can be inspected offline.
package backtesting

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/raykavin/adaptrisk/pkg/core"
	"github.com/raykavin/adaptrisk/pkg/logger"
	"github.com/raykavin/adaptrisk/pkg/performance"
)

// Outcome is one parsed replay row
type Outcome struct {
	ClosedAt    time.Time
	Direction   core.Direction
	ProfitRatio float64
}

// Replayer streams a CSV of trade outcomes into a performance tracker
// in chronological file order
type Replayer struct {
	tracker *performance.Tracker
	log     logger.Logger
}

// NewReplayer creates a replayer
func NewReplayer(tracker *performance.Tracker, log logger.Logger) *Replayer {
	return &Replayer{tracker: tracker, log: log}
}

// ParseFile reads a replay CSV. Expected columns:
// unix timestamp, direction (long/short), profit ratio.
// A header row is detected and skipped when the first field is not
// numeric.
func ParseFile(file string) ([]Outcome, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read outcomes from %s: %w", file, err)
	}

	outcomes := make([]Outcome, 0, len(rows))
	for i, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("row %d of %s: want 3 columns, got %d", i+1, file, len(row))
		}

		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			if i == 0 {
				// Header row
				continue
			}
			return nil, fmt.Errorf("row %d of %s: invalid timestamp %q", i+1, file, row[0])
		}

		direction := core.Direction(row[1])
		if direction != core.DirectionLong && direction != core.DirectionShort {
			return nil, fmt.Errorf("row %d of %s: invalid direction %q", i+1, file, row[1])
		}

		profit, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d of %s: invalid profit ratio %q", i+1, file, row[2])
		}

		outcomes = append(outcomes, Outcome{
			ClosedAt:    time.Unix(ts, 0),
			Direction:   direction,
			ProfitRatio: profit,
		})
	}

	return outcomes, nil
}

// Run clears the tracker and feeds every outcome through it, flushing
// any debounced persistence at the end
func (r *Replayer) Run(ctx context.Context, file string) error {
	outcomes, err := ParseFile(file)
	if err != nil {
		return err
	}

	r.log.Infof("replaying %d outcomes from %s", len(outcomes), file)

	// Historical live-trading data must not leak into the simulation
	r.tracker.Clear(ctx)

	progressBar := progressbar.Default(int64(len(outcomes)))
	for _, outcome := range outcomes {
		r.tracker.RecordOutcome(ctx, outcome.Direction, outcome.ProfitRatio, outcome.ClosedAt)
		if err := progressBar.Add(1); err != nil {
			r.log.Warnf("update progressbar fail: %v", err)
		}
	}

	r.tracker.Flush(ctx)

	return nil
}
