package indicators

import (
	"fmt"
	"sort"
	"sync"

	"FxPulse/internal/domain/models"
	"FxPulse/pkg/config"

	"github.com/moznion/go-optional"
)

// Series holds the OHLCV columns of the valid candles in a window, oldest first.
type Series struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

func SeriesFrom(candles []models.Candle) Series {
	s := Series{
		Open:   make([]float64, len(candles)),
		High:   make([]float64, len(candles)),
		Low:    make([]float64, len(candles)),
		Close:  make([]float64, len(candles)),
		Volume: make([]float64, len(candles)),
	}
	for i, c := range candles {
		s.Open[i] = c.Open
		s.High[i] = c.High
		s.Low[i] = c.Low
		s.Close[i] = c.Close
		s.Volume[i] = c.Volume
	}
	return s
}

func (s Series) Len() int { return len(s.Close) }

// Indicator computes one tagged output vector over a series. None means the
// series is too short.
type Indicator interface {
	Kind() models.IndicatorKind
	// Warmup is the number of samples needed before Compute returns Some.
	Warmup() int
	Compute(s Series) optional.Option[[]float64]
}

// Factory builds an indicator from the indicator settings.
type Factory func(cfg config.IndicatorsConfig) (Indicator, error)

// Registry maps indicator kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[models.IndicatorKind]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[models.IndicatorKind]Factory)}
}

// DefaultRegistry knows every built-in indicator.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(models.IndicatorRSI, func(c config.IndicatorsConfig) (Indicator, error) { return NewRSI(c.RSIPeriod) })
	_ = r.Register(models.IndicatorMACD, func(c config.IndicatorsConfig) (Indicator, error) {
		return NewMACD(c.MACDFast, c.MACDSlow, c.MACDSignal)
	})
	_ = r.Register(models.IndicatorBollinger, func(c config.IndicatorsConfig) (Indicator, error) {
		return NewBollinger(c.BollingerPeriod, c.BollingerK)
	})
	_ = r.Register(models.IndicatorVolumeMA, func(c config.IndicatorsConfig) (Indicator, error) { return NewVolumeMA(c.VolumePeriod) })
	_ = r.Register(models.IndicatorATR, func(c config.IndicatorsConfig) (Indicator, error) { return NewATR(c.ATRPeriod) })
	return r
}

func (r *Registry) Register(kind models.IndicatorKind, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("indicator %s already registered", kind)
	}
	r.factories[kind] = f
	return nil
}

func (r *Registry) Kinds() []models.IndicatorKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.IndicatorKind, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Build instantiates every registered indicator, in kind order.
func (r *Registry) Build(cfg config.IndicatorsConfig) ([]Indicator, error) {
	kinds := r.Kinds()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Indicator, 0, len(kinds))
	for _, k := range kinds {
		ind, err := r.factories[k](cfg)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", k, err)
		}
		out = append(out, ind)
	}
	return out, nil
}

func positive(name string, v int) error {
	if v < 1 {
		return models.NewConfigurationError(name, "period must be positive, got %d", v)
	}
	return nil
}

// sma is the simple mean of xs.
func sma(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// emaSeries returns the EMA of xs seeded with the SMA of the first period
// values. out[0] corresponds to xs[period-1].
func emaSeries(xs []float64, period int) []float64 {
	if period < 1 || len(xs) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(xs)-period+1)
	prev := sma(xs[:period])
	out = append(out, prev)
	for _, x := range xs[period:] {
		prev = (x-prev)*k + prev
		out = append(out, prev)
	}
	return out
}

// wilder seeds with the SMA of the first period values and smooths the rest
// with alpha 1/period.
func wilder(xs []float64, period int) float64 {
	avg := sma(xs[:period])
	p := float64(period)
	for _, x := range xs[period:] {
		avg = (avg*(p-1) + x) / p
	}
	return avg
}
