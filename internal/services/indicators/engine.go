package indicators

import (
	"fmt"

	"FxPulse/internal/domain/models"
	"FxPulse/pkg/config"

	"github.com/moznion/go-optional"
)

// Capacity is the window size needed so every indicator and the regime
// lookback can be computed, plus a slack buffer.
func Capacity(cfg config.IndicatorsConfig, regimeLookback int) int {
	need := 0
	for _, n := range []int{
		cfg.RSIPeriod + 1,
		cfg.MACDSlow + cfg.MACDSignal,
		cfg.BollingerPeriod,
		cfg.VolumePeriod,
		cfg.ATRPeriod + 1,
		regimeLookback + 1,
	} {
		if n > need {
			need = n
		}
	}
	return need + cfg.Buffer
}

type EngineOption func(*Engine)

// WithRegistry swaps the indicator set.
func WithRegistry(r *Registry) EngineOption {
	return func(e *Engine) { e.registry = r }
}

// WithCapacity overrides the computed window capacity.
func WithCapacity(n int) EngineOption {
	return func(e *Engine) { e.capacity = n }
}

// Engine keeps the rolling window for one stream and derives snapshots.
// It is owned by a single evaluator goroutine.
type Engine struct {
	stream     models.StreamKey
	registry   *Registry
	capacity   int
	window     *RollingWindow[models.WindowEntry]
	indicators []Indicator
}

func NewEngine(stream models.StreamKey, cfg config.IndicatorsConfig, regimeLookback int, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		stream:   stream,
		registry: DefaultRegistry(),
		capacity: Capacity(cfg, regimeLookback),
	}
	for _, opt := range opts {
		opt(e)
	}
	inds, err := e.registry.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("indicator engine %s: %w", stream, err)
	}
	e.indicators = inds
	e.window = NewRollingWindow[models.WindowEntry](e.capacity)
	return e, nil
}

// Update pushes the checked candle into the window. Invalid candles still
// advance the window but yield a DataQualityError and no snapshot.
func (e *Engine) Update(checked models.CheckedCandle) (models.IndicatorSnapshot, error) {
	e.window.Push(models.WindowEntry{Candle: checked.Candle, Valid: checked.Valid})
	if !checked.Valid {
		return models.IndicatorSnapshot{}, &models.DataQualityError{
			Stream:   e.stream,
			OpenTime: checked.Candle.OpenTime,
			Flags:    append([]models.AnomalyFlag(nil), checked.Flags...),
		}
	}

	valid := e.ValidCandles()
	series := SeriesFrom(valid)
	values := make(map[models.IndicatorKind]optional.Option[[]float64], len(e.indicators))
	for _, ind := range e.indicators {
		values[ind.Kind()] = ind.Compute(series)
	}
	return models.NewIndicatorSnapshot(e.stream, checked.Candle.OpenTime, checked.Candle.Close, len(valid), values), nil
}

// ValidCandles returns the valid candles in the window, oldest first.
func (e *Engine) ValidCandles() []models.Candle {
	items := e.window.Items()
	out := make([]models.Candle, 0, len(items))
	for _, it := range items {
		if it.Valid {
			out = append(out, it.Candle)
		}
	}
	return out
}

func (e *Engine) Len() int      { return e.window.Len() }
func (e *Engine) Capacity() int { return e.window.Cap() }
