package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FxPulse/internal/domain/models"
	domrepo "FxPulse/internal/domain/repository"
	"FxPulse/internal/domain/service"
	"FxPulse/internal/services/anomaly"
	"FxPulse/internal/services/features"
	"FxPulse/internal/services/indicators"
	"FxPulse/internal/services/regime"
	"FxPulse/internal/services/scorer"
	"FxPulse/internal/services/sizer"
	"FxPulse/pkg/config"
	"FxPulse/pkg/logger"
	"FxPulse/pkg/metrics"

	"github.com/moznion/go-optional"
)

// SignalSink receives sized signals. OnSignal must not block.
type SignalSink interface {
	OnSignal(ctx context.Context, s models.RiskAdjustedSignal) models.DispatchOutcome
}

// RiskSnapshotter hands out read-only RiskState copies.
type RiskSnapshotter interface {
	Snapshot(symbol string, at time.Time) models.RiskState
}

// Tick is everything one candle produced on its way through the pipeline.
// Err carries the stage-local reason a signal was not produced, if any.
type Tick struct {
	Checked  models.CheckedCandle
	Snapshot optional.Option[models.IndicatorSnapshot]
	Regime   models.RegimeState
	Signal   optional.Option[models.RiskAdjustedSignal]
	Outcome  optional.Option[models.DispatchOutcome]
	Err      error
}

type EvaluatorOption func(*Evaluator)

func WithEvaluatorLogger(l *logger.Logger) EvaluatorOption {
	return func(e *Evaluator) { e.base = l }
}

func WithEvaluatorMetrics(m domrepo.Metrics) EvaluatorOption {
	return func(e *Evaluator) { e.metrics = m }
}

// WithCorrelations sets where correlated-instrument directions come from.
// Lookups slower than timeout are skipped for the tick.
func WithCorrelations(src domrepo.CorrelationSource, timeout time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		e.corr = src
		e.corrTimeout = timeout
	}
}

// Evaluator runs anomaly → indicators → regime → scorer → sizer for one
// stream and hands the result to the sink. It is not safe for concurrent use;
// one goroutine owns it.
type Evaluator struct {
	key         models.StreamKey
	base        *logger.Logger
	log         *logger.Logger
	metrics     domrepo.Metrics
	corr        domrepo.CorrelationSource
	corrTimeout time.Duration

	detector   service.AnomalyChecker
	engine     service.IndicatorEngine
	classifier service.RegimeClassifier
	scorer     *scorer.Scorer
	sizer      *sizer.Sizer
	book       RiskSnapshotter
	sink       SignalSink

	prev optional.Option[models.IndicatorSnapshot]
}

func NewEvaluator(key models.StreamKey, cfg *config.Config, book RiskSnapshotter, sink SignalSink, opts ...EvaluatorOption) (*Evaluator, error) {
	e := &Evaluator{
		key:     key,
		base:    logger.Nop(),
		metrics: metrics.Nop{},
		book:    book,
		sink:    sink,
		prev:    optional.None[models.IndicatorSnapshot](),
	}
	for _, opt := range opts {
		opt(e)
	}
	stream := e.base.With(logger.String("symbol", key.Symbol), logger.String("timeframe", string(key.Timeframe)))
	e.log = stream.Component("evaluator")

	engine, err := indicators.NewEngine(key, cfg.Indicators, cfg.Regime.Lookback)
	if err != nil {
		return nil, fmt.Errorf("new evaluator: %w", err)
	}
	e.engine = engine
	e.detector = anomaly.NewDetector(cfg.Anomaly, anomaly.WithLogger(stream), anomaly.WithMetrics(e.metrics))
	e.classifier = regime.NewClassifier(key, cfg.Regime, regime.WithLogger(stream))
	e.scorer = scorer.New(cfg.Scorer, cfg.Indicators)
	e.sizer = sizer.New(cfg.Sizer)
	return e, nil
}

func (e *Evaluator) Key() models.StreamKey { return e.key }

// Regime returns the classifier's last state.
func (e *Evaluator) Regime() models.RegimeState { return e.classifier.State() }

// Run evaluates candles until ctx is done or in is closed.
func (e *Evaluator) Run(ctx context.Context, in <-chan models.Candle) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-in:
			if !ok {
				return nil
			}
			e.Evaluate(ctx, c)
		}
	}
}

// Evaluate pushes one finalized candle through every stage. Stage failures
// end the tick early and are reported in Tick.Err.
func (e *Evaluator) Evaluate(ctx context.Context, c models.Candle) Tick {
	start := time.Now()
	defer func() { e.metrics.RecordLatency("evaluate", time.Since(start).Seconds()) }()

	tick := Tick{
		Snapshot: optional.None[models.IndicatorSnapshot](),
		Signal:   optional.None[models.RiskAdjustedSignal](),
		Outcome:  optional.None[models.DispatchOutcome](),
	}

	tick.Checked = e.detector.Check(c, e.engine.ValidCandles())
	snap, err := e.engine.Update(tick.Checked)
	if err != nil {
		e.metrics.RecordError("data_quality")
		e.log.Warn("candle excluded", logger.Time("open_time", c.OpenTime), logger.Error(err))
		tick.Regime = e.classifier.State()
		tick.Err = err
		return tick
	}
	tick.Snapshot = optional.Some(snap)
	e.metrics.RecordLastPrice(c.Symbol, tick.Checked.Candle.Close)

	valid := e.engine.ValidCandles()
	state, err := e.classifier.Evaluate(snap, valid)
	tick.Regime = state
	if err != nil {
		return e.skip(tick, snap, err)
	}

	candidate, err := e.scorer.Score(scorer.ScoreInput{
		Snapshot:     snap,
		Previous:     e.prev,
		Regime:       state,
		Candle:       tick.Checked.Candle,
		Closes:       features.Closes(valid),
		Correlations: e.correlations(ctx),
	})
	if err != nil {
		return e.skip(tick, snap, err)
	}

	atr := 0.0
	if v := snap.Value(models.IndicatorATR, 0); v.IsSome() {
		atr = v.Unwrap()
	}
	market := models.MarketContext{
		ATR:        atr,
		Close:      tick.Checked.Candle.Close,
		Regime:     state.Label,
		Volatility: state.Volatility,
	}
	signal, err := e.sizer.Size(candidate, e.book.Snapshot(c.Symbol, c.OpenTime), market)
	if err != nil {
		return e.skip(tick, snap, err)
	}
	e.prev = optional.Some(snap)
	tick.Signal = optional.Some(signal)

	if signal.Direction != models.DirectionNone {
		e.metrics.RecordSignal(signal.Symbol, signal.Direction)
		e.log.Info("signal",
			logger.String("direction", string(signal.Direction)),
			logger.Float64("confidence", signal.Confidence),
			logger.Float64("position_size", signal.PositionSize),
			logger.String("regime", string(signal.Regime)),
		)
	}
	tick.Outcome = optional.Some(e.sink.OnSignal(ctx, signal))
	return tick
}

func (e *Evaluator) skip(tick Tick, snap models.IndicatorSnapshot, err error) Tick {
	e.prev = optional.Some(snap)
	tick.Err = err
	if !errors.Is(err, models.ErrInsufficientHistory) {
		e.metrics.RecordError("evaluate")
		e.log.Error("evaluation failed", logger.Error(err))
	}
	return tick
}

func (e *Evaluator) correlations(ctx context.Context) map[string]models.Direction {
	if e.corr == nil {
		return nil
	}
	if e.corrTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.corrTimeout)
		defer cancel()
	}
	dirs, err := e.corr.Directions(ctx)
	if err != nil {
		e.metrics.RecordError("correlations")
		e.log.Debug("correlations unavailable", logger.Error(err))
		return nil
	}
	return dirs
}
