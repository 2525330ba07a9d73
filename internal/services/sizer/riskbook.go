package sizer

import (
	"math"
	"sort"
	"sync"
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/internal/domain/service"
	"FxPulse/pkg/config"
	"FxPulse/pkg/logger"
)

type BookOption func(*RiskBook)

func WithLogger(l *logger.Logger) BookOption {
	return func(b *RiskBook) { b.log = l.Component("riskbook") }
}

// WithClock sets the time used when an outcome carries no close time.
func WithClock(now func() time.Time) BookOption {
	return func(b *RiskBook) { b.now = now }
}

type shard struct {
	mu      sync.Mutex
	state   models.RiskState
	results []bool // last win_rate_window outcomes, oldest first
}

// RiskBook owns one RiskState per symbol. ApplyOutcome is the only mutator.
type RiskBook struct {
	cfg config.SizerConfig
	log *logger.Logger
	now func() time.Time

	mu     sync.RWMutex
	shards map[string]*shard
}

func NewRiskBook(cfg config.SizerConfig, opts ...BookOption) *RiskBook {
	b := &RiskBook{
		cfg:    cfg,
		log:    logger.Nop(),
		now:    time.Now,
		shards: make(map[string]*shard),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *RiskBook) shard(symbol string) *shard {
	b.mu.RLock()
	s, ok := b.shards[symbol]
	b.mu.RUnlock()
	if ok {
		return s
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.shards[symbol]; ok {
		return s
	}
	s = &shard{state: freshState(symbol)}
	b.shards[symbol] = s
	return s
}

func freshState(symbol string) models.RiskState {
	return models.RiskState{Symbol: symbol, RecentWinRate: 0.5}
}

// ApplyOutcome folds a closed trade into the symbol's state and returns the
// resulting copy.
func (b *RiskBook) ApplyOutcome(o models.TradeOutcome) models.RiskState {
	at := o.ClosedAt
	if at.IsZero() {
		at = b.now()
	}
	s := b.shard(o.Symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	if b.cooldownElapsed(*st, at) {
		b.exitRecovery(st, at, "cooldown")
	}

	if o.Win {
		st.ConsecutiveWins++
		st.ConsecutiveLosses = 0
	} else {
		st.ConsecutiveLosses++
		st.ConsecutiveWins = 0
	}
	s.results = append(s.results, o.Win)
	if len(s.results) > b.cfg.WinRateWindow {
		s.results = s.results[len(s.results)-b.cfg.WinRateWindow:]
	}
	st.RecentWinRate = winRate(s.results)
	st.CurrentDrawdown = math.Max(0, math.Min(1, st.CurrentDrawdown+o.DrawdownDelta))
	st.Trades++
	st.LastOutcomeAt = at

	switch {
	case !st.RecoveryMode && st.ConsecutiveLosses >= b.cfg.Recovery.LossThreshold:
		st.RecoveryMode = true
		st.RecoverySince = at
		b.log.Warn("recovery mode entered",
			logger.String("symbol", st.Symbol),
			logger.Int("consecutive_losses", st.ConsecutiveLosses),
			logger.Float64("drawdown", st.CurrentDrawdown),
		)
	case st.RecoveryMode && st.ConsecutiveWins >= b.cfg.Recovery.ExitWins:
		b.exitRecovery(st, at, "wins")
	}
	return *st
}

// Snapshot returns a consistent copy of the symbol's state as of at. An
// elapsed recovery cooldown is reported as exited without being persisted.
func (b *RiskBook) Snapshot(symbol string, at time.Time) models.RiskState {
	b.mu.RLock()
	s, ok := b.shards[symbol]
	b.mu.RUnlock()
	if !ok {
		return freshState(symbol)
	}
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()

	if b.cooldownElapsed(st, at) {
		st.RecoveryMode = false
		st.RecoverySince = time.Time{}
		st.ConsecutiveLosses = 0
	}
	return st
}

// Symbols lists every symbol with recorded outcomes.
func (b *RiskBook) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.shards))
	for k := range b.shards {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (b *RiskBook) cooldownElapsed(st models.RiskState, at time.Time) bool {
	return st.RecoveryMode && b.cfg.Recovery.Cooldown > 0 && !at.Before(st.RecoverySince.Add(b.cfg.Recovery.Cooldown))
}

func (b *RiskBook) exitRecovery(st *models.RiskState, at time.Time, reason string) {
	st.RecoveryMode = false
	st.RecoverySince = time.Time{}
	st.ConsecutiveLosses = 0
	b.log.Info("recovery mode exited",
		logger.String("symbol", st.Symbol),
		logger.String("reason", reason),
		logger.Time("at", at),
	)
}

func winRate(results []bool) float64 {
	if len(results) == 0 {
		return 0.5
	}
	wins := 0
	for _, w := range results {
		if w {
			wins++
		}
	}
	return float64(wins) / float64(len(results))
}

var _ service.RiskBook = (*RiskBook)(nil)
