package scorer

import (
	"math"

	"FxPulse/internal/domain/models"
	"FxPulse/pkg/config"

	"github.com/moznion/go-optional"
)

const (
	FactorRSI         = "rsi"
	FactorMACD        = "macd"
	FactorBollinger   = "bollinger"
	FactorVolume      = "volume"
	FactorPriceAction = "price_action"
	FactorRegime      = "regime"
	FactorCorrelation = "correlation"
)

// factorOrder fixes the summation order so that confidence is bit-identical
// across runs.
var factorOrder = []string{
	FactorRSI,
	FactorMACD,
	FactorBollinger,
	FactorVolume,
	FactorPriceAction,
	FactorRegime,
	FactorCorrelation,
}

// ScoreInput is everything one tick contributes to a score.
type ScoreInput struct {
	Snapshot     models.IndicatorSnapshot
	Previous     optional.Option[models.IndicatorSnapshot]
	Regime       models.RegimeState
	Candle       models.Candle
	Closes       []float64
	Correlations map[string]models.Direction
}

// contribution is a factor's pull toward LONG and toward SHORT, each in [0,1].
type contribution struct {
	long, short float64
}

func (c contribution) toward(d models.Direction) float64 {
	if d == models.DirectionShort {
		return c.short
	}
	return c.long
}

// Scorer turns a tick's derived state into a SignalCandidate. It holds no
// mutable state.
type Scorer struct {
	cfg  config.ScorerConfig
	inds config.IndicatorsConfig
}

func New(cfg config.ScorerConfig, inds config.IndicatorsConfig) *Scorer {
	return &Scorer{cfg: cfg, inds: inds}
}

func (s *Scorer) Score(in ScoreInput) (models.SignalCandidate, error) {
	snap := in.Snapshot
	required := []struct {
		kind models.IndicatorKind
		need int
	}{
		{models.IndicatorRSI, s.inds.RSIPeriod + 1},
		{models.IndicatorMACD, s.inds.MACDSlow + s.inds.MACDSignal - 1},
		{models.IndicatorVolumeMA, s.inds.VolumePeriod},
		{models.IndicatorATR, s.inds.ATRPeriod + 1},
	}
	for _, r := range required {
		if !snap.Available(r.kind) {
			return models.SignalCandidate{}, models.NewInsufficientHistoryError(string(r.kind), r.need, snap.Samples())
		}
	}

	factors := map[string]contribution{
		FactorRSI:         s.rsi(snap),
		FactorMACD:        s.macd(snap, in.Previous),
		FactorBollinger:   s.bollinger(snap, in.Candle),
		FactorVolume:      s.volume(snap, in.Candle),
		FactorPriceAction: s.priceAction(in.Closes),
		FactorRegime:      regimeFactor(in.Regime),
		FactorCorrelation: s.correlation(in.Candle.Symbol, in.Correlations),
	}

	longConf := s.confidence(factors, models.DirectionLong)
	shortConf := s.confidence(factors, models.DirectionShort)

	dir, conf := models.DirectionNone, math.Max(longConf, shortConf)
	switch {
	case longConf > shortConf:
		dir = models.DirectionLong
	case shortConf > longConf:
		dir = models.DirectionShort
	}
	breakdownDir := dir
	if conf < s.cfg.MinConfidence || s.disallowed(dir, in.Regime) {
		dir = models.DirectionNone
	}

	breakdown := make(map[string]float64, len(factors))
	for _, name := range factorOrder {
		breakdown[name] = s.cfg.Weights[name] * factors[name].toward(breakdownDir)
	}

	return models.SignalCandidate{
		Symbol:     in.Candle.Symbol,
		Timeframe:  in.Candle.Timeframe,
		Timestamp:  in.Candle.OpenTime,
		Direction:  dir,
		Confidence: conf,
		Factors:    breakdown,
		Price:      in.Candle.Close,
		Regime:     in.Regime.Label,
		Indicators: snap.Flatten(),
	}, nil
}

func (s *Scorer) confidence(factors map[string]contribution, d models.Direction) float64 {
	var sum float64
	for _, name := range factorOrder {
		sum += s.cfg.Weights[name] * factors[name].toward(d)
	}
	return clamp01(sum)
}

func (s *Scorer) disallowed(d models.Direction, r models.RegimeState) bool {
	if d == models.DirectionNone {
		return false
	}
	for _, rule := range s.cfg.Disallow {
		if rule.Direction != d || rule.Label != r.Label {
			continue
		}
		if rule.Pending == "" || rule.Pending == r.Pending {
			return true
		}
	}
	return false
}

func (s *Scorer) rsi(snap models.IndicatorSnapshot) contribution {
	v := snap.Value(models.IndicatorRSI, 0).TakeOr(50)
	switch {
	case v < s.cfg.RSIOversold:
		return contribution{long: (50 - v) / 50}
	case v > s.cfg.RSIOverbought:
		return contribution{short: (v - 50) / 50}
	}
	return contribution{}
}

func (s *Scorer) macd(snap models.IndicatorSnapshot, prev optional.Option[models.IndicatorSnapshot]) contribution {
	hist := snap.Value(models.IndicatorMACD, models.MACDHistogram).TakeOr(0)
	if prev.IsSome() {
		if p := prev.Unwrap().Value(models.IndicatorMACD, models.MACDHistogram); p.IsSome() {
			ph := p.Unwrap()
			switch {
			case ph <= 0 && hist > 0:
				return contribution{long: 1}
			case ph >= 0 && hist < 0:
				return contribution{short: 1}
			}
		}
	}
	atr := snap.Value(models.IndicatorATR, 0).TakeOr(0)
	if atr <= 0 {
		return contribution{}
	}
	strength := math.Min(1, math.Abs(hist)/atr)
	if hist > 0 {
		return contribution{long: strength}
	}
	if hist < 0 {
		return contribution{short: strength}
	}
	return contribution{}
}

func (s *Scorer) bollinger(snap models.IndicatorSnapshot, c models.Candle) contribution {
	bands := snap.Get(models.IndicatorBollinger)
	if bands.IsNone() {
		return contribution{}
	}
	b := bands.Unwrap()
	switch {
	case c.Close < b[models.BollingerLower]:
		return contribution{long: 1}
	case c.Close > b[models.BollingerUpper]:
		return contribution{short: 1}
	}
	return contribution{}
}

func (s *Scorer) volume(snap models.IndicatorSnapshot, c models.Candle) contribution {
	mean := snap.Value(models.IndicatorVolumeMA, models.VolumeMean).TakeOr(0)
	if mean <= 0 {
		return contribution{}
	}
	ratio := c.Volume / mean
	if ratio <= s.cfg.VolumeRatio {
		return contribution{}
	}
	strength := math.Min(1, ratio/(2*s.cfg.VolumeRatio))
	switch {
	case c.Close > c.Open:
		return contribution{long: strength}
	case c.Close < c.Open:
		return contribution{short: strength}
	}
	return contribution{}
}

func (s *Scorer) priceAction(closes []float64) contribution {
	n := s.cfg.ConfirmCandles
	if len(closes) < n+1 {
		return contribution{}
	}
	tail := closes[len(closes)-n-1:]
	up, down := true, true
	for i := 1; i < len(tail); i++ {
		if tail[i] <= tail[i-1] {
			up = false
		}
		if tail[i] >= tail[i-1] {
			down = false
		}
	}
	switch {
	case up:
		return contribution{long: 1}
	case down:
		return contribution{short: 1}
	}
	return contribution{}
}

func regimeFactor(r models.RegimeState) contribution {
	switch r.Committed {
	case models.RegimeStrongTrendUp:
		return contribution{long: clamp01(r.TrendStrength)}
	case models.RegimeStrongTrendDown:
		return contribution{short: clamp01(r.TrendStrength)}
	}
	return contribution{}
}

// correlation is the fraction of configured instruments whose direction
// confirms, with negatively correlated instruments inverted.
func (s *Scorer) correlation(symbol string, dirs map[string]models.Direction) contribution {
	peers := s.cfg.Correlated[symbol]
	if len(peers) == 0 || len(dirs) == 0 {
		return contribution{}
	}
	var long, short int
	for inst, coef := range peers {
		d := dirs[inst].Sign()
		if coef < 0 {
			d = -d
		}
		switch {
		case d > 0:
			long++
		case d < 0:
			short++
		}
	}
	n := float64(len(peers))
	return contribution{long: float64(long) / n, short: float64(short) / n}
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
