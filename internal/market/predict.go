package market

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Prediction summarises a forecast for display in the chat.
type Prediction struct {
	Symbol          string
	Interval        Interval
	Steps           int
	CurrentPrice    float64
	PredictedPrice  float64
	MinPrice        float64
	MaxPrice        float64
	ConfidenceLevel float64
	Volatility      string
	MarketSentiment string
}

// PriceSource is the subset of BinanceClient the predictor needs.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (float64, error)
	Closes(ctx context.Context, symbol string, interval Interval) ([]float64, error)
}

// TrendPredictor extrapolates a least-squares line through recent closes.
type TrendPredictor struct {
	source PriceSource
	logger zerolog.Logger
}

func NewTrendPredictor(source PriceSource, logger zerolog.Logger) *TrendPredictor {
	return &TrendPredictor{source: source, logger: logger.With().Str("component", "market").Logger()}
}

func (p *TrendPredictor) Predict(ctx context.Context, symbol string, interval Interval, steps int) (*Prediction, error) {
	if steps < 1 {
		return nil, fmt.Errorf("steps must be positive, got %d", steps)
	}
	closes, err := p.source.Closes(ctx, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", symbol, err)
	}
	closes = usableCloses(closes)
	if len(closes) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 closes for %s, got %d", ErrNoData, symbol, len(closes))
	}

	current := closes[len(closes)-1]
	live, err := p.source.Price(ctx, symbol)
	switch {
	case err != nil:
		p.logger.Warn().Err(err).Str("symbol", symbol).Msg("live price unavailable, using last close")
	case !usable(live):
		p.logger.Warn().Float64("price", live).Str("symbol", symbol).Msg("ignoring non-positive live price")
	default:
		current = live
	}

	xs := make([]float64, len(closes))
	for i := range xs {
		xs[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(xs, closes, nil, false)
	predicted := math.Max(0, alpha+beta*float64(len(closes)-1+steps))

	volatility := volatilityBucket(closes)
	confidence := confidenceLevel(closes, volatility, interval, steps)
	rangeFactor := (100 - confidence) / 100 * 0.5

	return &Prediction{
		Symbol:          symbol,
		Interval:        interval,
		Steps:           steps,
		CurrentPrice:    current,
		PredictedPrice:  predicted,
		MinPrice:        predicted * (1 - rangeFactor),
		MaxPrice:        predicted * (1 + rangeFactor),
		ConfidenceLevel: confidence,
		Volatility:      volatility,
		MarketSentiment: marketSentiment(closes, predicted, current),
	}, nil
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// usableCloses drops zero, negative and non-finite closes; the ratios below
// divide by them.
func usableCloses(closes []float64) []float64 {
	out := make([]float64, 0, len(closes))
	for _, c := range closes {
		if usable(c) {
			out = append(out, c)
		}
	}
	return out
}

// volatilityBucket classifies the mean absolute relative change between
// consecutive closes.
func volatilityBucket(closes []float64) string {
	var sum float64
	for i := 1; i < len(closes); i++ {
		sum += math.Abs(closes[i]-closes[i-1]) / closes[i-1]
	}
	avg := sum / float64(len(closes)-1)
	switch {
	case avg < 0.01:
		return "Low"
	case avg < 0.03:
		return "Medium"
	default:
		return "High"
	}
}

func confidenceLevel(closes []float64, volatility string, interval Interval, steps int) float64 {
	confidence := 85.0

	switch volatility {
	case "Low":
		confidence += 8
	case "Medium":
		confidence += 3
	default:
		confidence -= 5
	}

	if interval == Hourly {
		switch {
		case steps <= 6:
			confidence += 5
		case steps <= 24:
		default:
			confidence -= 8
		}
	} else {
		switch {
		case steps <= 3:
			confidence += 5
		case steps <= 7:
		default:
			confidence -= 10
		}
	}

	switch n := len(closes); {
	case n >= 100:
		confidence += 3
	case n >= 50:
	default:
		confidence -= 5
	}

	recent := tail(closes, 10)
	if changes := len(recent) - 1; changes > 0 {
		up := 0
		for i := 1; i < len(recent); i++ {
			if recent[i] > recent[i-1] {
				up++
			}
		}
		half := float64(changes) / 2
		consistency := math.Abs(float64(up)-half) / half
		confidence += float64(int(consistency * 4))
	}

	confidence = math.Max(65, math.Min(95, confidence))
	return math.Round(confidence*10) / 10
}

func marketSentiment(closes []float64, predicted, current float64) string {
	change := (predicted - current) / current

	recent := tail(closes, 10)
	recentTrend := (recent[len(recent)-1] - recent[0]) / recent[0]
	mediumTrend := recentTrend
	if len(closes) >= 30 {
		medium := tail(closes, 30)
		mediumTrend = (medium[len(medium)-1] - medium[0]) / medium[0]
	}

	switch {
	case change > 0.03:
		if recentTrend > 0 && mediumTrend > 0 {
			return "Strongly Bullish"
		} else if recentTrend > 0 {
			return "Bullish"
		}
		return "Cautiously Bullish"
	case change < -0.03:
		if recentTrend < 0 && mediumTrend < 0 {
			return "Strongly Bearish"
		} else if recentTrend < 0 {
			return "Bearish"
		}
		return "Cautiously Bearish"
	default:
		if math.Abs(recentTrend) < 0.01 {
			return "Neutral"
		} else if recentTrend > 0 {
			return "Slightly Bullish"
		}
		return "Slightly Bearish"
	}
}

func tail(xs []float64, n int) []float64 {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}
