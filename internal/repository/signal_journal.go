package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"FxPulse/internal/domain/models"
	domrepo "FxPulse/internal/domain/repository"
	"FxPulse/pkg/logger"
)

const signalsDDL = `CREATE TABLE IF NOT EXISTS %s (
    id            UUID,
    ts            DateTime64(3, 'UTC'),
    symbol        LowCardinality(String),
    timeframe     LowCardinality(String),
    direction     LowCardinality(String),
    confidence    Float64,
    price         Float64,
    position_size Float64,
    stop_loss     Float64,
    take_profit   Float64,
    risk_percent  Float64,
    risk_level    UInt8,
    recovery_mode Bool,
    regime        LowCardinality(String),
    priority      LowCardinality(String),
    factors       String,
    created_at    DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (symbol, ts)`

// ClickHouseSignalJournal records dispatched signals in ClickHouse for later joins
// against trade outcomes.
type ClickHouseSignalJournal struct {
	db    *sql.DB
	table string
	log   *logger.Logger
}

func NewClickHouseSignalJournal(db *sql.DB, table string, l *logger.Logger) *ClickHouseSignalJournal {
	if table == "" {
		table = "signals"
	}
	if l == nil {
		l = logger.Nop()
	}
	return &ClickHouseSignalJournal{db: db, table: table, log: l.Component("signal_journal")}
}

func (j *ClickHouseSignalJournal) Init(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, fmt.Sprintf(signalsDDL, j.table)); err != nil {
		return fmt.Errorf("create %s: %w", j.table, err)
	}
	return nil
}

func (j *ClickHouseSignalJournal) Record(ctx context.Context, a *models.Alert) error {
	s := a.Signal
	factors, err := json.Marshal(s.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, ts, symbol, timeframe, direction, confidence, price, position_size,
        stop_loss, take_profit, risk_percent, risk_level, recovery_mode, regime, priority, factors, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, j.table)

	start := time.Now()
	_, err = j.db.ExecContext(ctx, q,
		a.ID.String(),
		s.Timestamp.UTC(),
		s.Symbol,
		string(s.Timeframe),
		string(s.Direction),
		s.Confidence,
		s.Price,
		s.PositionSize,
		s.StopLoss,
		s.TakeProfit,
		s.RiskPercent,
		uint8(s.RiskLevel),
		s.RecoveryMode,
		string(s.Regime),
		a.Priority.String(),
		string(factors),
		a.CreatedAt.UTC(),
	)
	if err != nil {
		j.log.Error("journal insert failed", logger.String("symbol", s.Symbol), logger.Error(err))
		return fmt.Errorf("journal insert: %w", err)
	}
	j.log.Debug("journal insert ok", logger.String("symbol", s.Symbol), logger.Duration("duration_ms", time.Since(start)))
	return nil
}

// Recent returns the newest signals for symbol since the given time, newest first.
func (j *ClickHouseSignalJournal) Recent(ctx context.Context, symbol string, since time.Time, limit int) ([]models.RiskAdjustedSignal, error) {
	q := fmt.Sprintf(`SELECT ts, symbol, timeframe, direction, confidence, price, position_size,
        stop_loss, take_profit, risk_percent, risk_level, recovery_mode, regime, factors
        FROM %s WHERE symbol = ? AND ts >= ? ORDER BY ts DESC LIMIT ?`, j.table)
	rows, err := j.db.QueryContext(ctx, q, symbol, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []models.RiskAdjustedSignal
	for rows.Next() {
		var (
			s         models.RiskAdjustedSignal
			tf, dir   string
			regime    string
			factors   string
			riskLevel uint8
		)
		if err := rows.Scan(&s.Timestamp, &s.Symbol, &tf, &dir, &s.Confidence, &s.Price, &s.PositionSize,
			&s.StopLoss, &s.TakeProfit, &s.RiskPercent, &riskLevel, &s.RecoveryMode, &regime, &factors); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		s.Timeframe = models.Timeframe(tf)
		s.Direction = models.Direction(dir)
		s.Regime = models.RegimeLabel(regime)
		s.RiskLevel = int(riskLevel)
		if factors != "" {
			if err := json.Unmarshal([]byte(factors), &s.Factors); err != nil {
				return nil, fmt.Errorf("journal factors: %w", err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close leaves the pool to its owner.
func (j *ClickHouseSignalJournal) Close() error { return nil }

var _ domrepo.SignalJournal = (*ClickHouseSignalJournal)(nil)
