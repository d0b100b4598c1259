// Package metric provides summary statistics over trade profit ratios.
package metric

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// noLossCap stands in for the win/loss ratios while a sample has no
// losing trades, keeping the summary finite instead of dividing by zero
const noLossCap = 10

// Mean calculates the arithmetic mean of the profit ratios
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Payoff calculates the ratio of the average winning trade to the
// average losing trade, capped at noLossCap while no losses exist
func Payoff(values []float64) float64 {
	wins, losses := partitionOutcomes(values)

	if len(losses) == 0 {
		return noLossCap
	}

	avgWin := stat.Mean(wins, nil)
	avgLoss := stat.Mean(losses, nil)

	if avgLoss == 0 {
		return noLossCap
	}

	return math.Abs(avgWin / avgLoss)
}

// ProfitFactor calculates the ratio of summed profits to summed losses,
// capped at noLossCap while no losses exist
func ProfitFactor(values []float64) float64 {
	var totalWins, totalLosses float64

	for _, value := range values {
		if value >= 0 {
			totalWins += value
		} else {
			totalLosses += value
		}
	}

	if totalLosses == 0 {
		return noLossCap
	}

	return math.Abs(totalWins / totalLosses)
}

// partitionOutcomes splits profit ratios into wins and loss magnitudes
func partitionOutcomes(values []float64) (wins []float64, losses []float64) {
	for _, value := range values {
		if value >= 0 {
			wins = append(wins, value)
		} else {
			losses = append(losses, math.Abs(value))
		}
	}
	return wins, losses
}
