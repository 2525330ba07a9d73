package regime

import (
	"math"

	"FxPulse/internal/domain/models"
	"FxPulse/internal/services/features"
	"FxPulse/pkg/config"
	"FxPulse/pkg/logger"
)

type Option func(*Classifier)

func WithLogger(l *logger.Logger) Option {
	return func(c *Classifier) { c.log = l.Component("regime") }
}

// Classifier labels one stream's market regime with debounced commits.
// It is owned by a single evaluator goroutine.
type Classifier struct {
	cfg      config.RegimeConfig
	stream   models.StreamKey
	baseline float64
	log      *logger.Logger

	committed models.RegimeLabel
	pending   models.RegimeLabel
	count     int
	last      models.RegimeState
}

func NewClassifier(stream models.StreamKey, cfg config.RegimeConfig, opts ...Option) *Classifier {
	baseline := cfg.DefaultBaseline
	if b, ok := cfg.Baselines[stream.Symbol]; ok && b > 0 {
		baseline = b
	}
	c := &Classifier{
		cfg:       cfg,
		stream:    stream,
		baseline:  baseline,
		log:       logger.Nop(),
		committed: models.RegimeChoppy,
		last:      models.InitialRegime(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the last evaluated state.
func (c *Classifier) State() models.RegimeState { return c.last }

// Evaluate classifies the tick from the snapshot and the valid candles
// (oldest first). With too little history the state is left untouched.
func (c *Classifier) Evaluate(snap models.IndicatorSnapshot, candles []models.Candle) (models.RegimeState, error) {
	if len(candles) < c.cfg.MinHistory {
		return c.last, models.NewInsufficientHistoryError("regime", c.cfg.MinHistory, len(candles))
	}
	window := candles
	if len(window) > c.cfg.Lookback+1 {
		window = window[len(window)-c.cfg.Lookback-1:]
	}
	closes := features.Closes(window)

	strength, dir := trendStrength(snap, closes)
	rets := features.LogReturns(closes)
	vol := features.RealizedVolatility(rets, len(rets)) / c.baseline

	raw := models.RegimeChoppy
	if strength > c.cfg.TrendThreshold && vol < c.cfg.MaxVolatility {
		switch {
		case dir > 0:
			raw = models.RegimeStrongTrendUp
		case dir < 0:
			raw = models.RegimeStrongTrendDown
		}
	}
	c.advance(raw)

	support, resistance := SupportResistance(window, c.cfg.PivotSpan, c.cfg.ClusterTolerance)
	st := models.RegimeState{
		Label:         c.committed,
		Committed:     c.committed,
		Pending:       c.pending,
		PendingTicks:  c.count,
		TrendStrength: strength,
		Direction:     dir,
		Volatility:    vol,
		Support:       support,
		Resistance:    resistance,
		At:            snap.Timestamp(),
	}
	if c.pending != "" {
		st.Label = models.RegimeTransition
	}
	c.last = st
	return st, nil
}

func (c *Classifier) advance(raw models.RegimeLabel) {
	switch {
	case raw == c.committed:
		c.pending, c.count = "", 0
	case raw == c.pending:
		c.count++
	default:
		c.pending, c.count = raw, 1
	}
	if c.pending == "" || c.count < c.cfg.Debounce {
		return
	}
	c.log.Info("regime committed",
		logger.String("symbol", c.stream.Symbol),
		logger.String("timeframe", string(c.stream.Timeframe)),
		logger.String("from", string(c.committed)),
		logger.String("to", string(c.pending)),
		logger.Int("ticks", c.count),
	)
	c.committed, c.pending, c.count = c.pending, "", 0
}

// trendStrength is 0.5·persistence + 0.5·agreement and the dominant direction.
func trendStrength(snap models.IndicatorSnapshot, closes []float64) (float64, int) {
	if len(closes) < 2 {
		return 0, 0
	}
	var sum int
	for i := 1; i < len(closes); i++ {
		sum += sign(closes[i] - closes[i-1])
	}
	n := len(closes) - 1
	persistence := math.Abs(float64(sum)) / float64(n)

	slope := features.Slope(closes)
	dir := sign(float64(sum))
	if dir == 0 {
		dir = sign(slope)
	}
	if dir == 0 {
		return 0.5 * persistence, 0
	}

	votes := []float64{slope}
	if v := snap.Value(models.IndicatorMACD, models.MACDLine); v.IsSome() {
		votes = append(votes, v.Unwrap())
	}
	if v := snap.Value(models.IndicatorMACD, models.MACDHistogram); v.IsSome() {
		votes = append(votes, v.Unwrap())
	}
	if v := snap.Value(models.IndicatorRSI, 0); v.IsSome() {
		votes = append(votes, v.Unwrap()-50)
	}
	agree := 0
	for _, v := range votes {
		if sign(v) == dir {
			agree++
		}
	}
	agreement := float64(agree) / float64(len(votes))
	return 0.5*persistence + 0.5*agreement, dir
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
