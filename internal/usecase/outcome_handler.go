package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FxPulse/internal/domain/models"
	domrepo "FxPulse/internal/domain/repository"
	pkgkafka "FxPulse/pkg/kafka"
	"FxPulse/pkg/logger"
)

// OutcomeApplier is satisfied by *sizer.RiskBook.
type OutcomeApplier interface {
	ApplyOutcome(o models.TradeOutcome) models.RiskState
}

// OutcomeHandler feeds trade outcomes from Kafka back into the risk book.
type OutcomeHandler struct {
	topic   string
	book    OutcomeApplier
	metrics domrepo.Metrics
	log     *logger.Logger
	now     func() time.Time
}

func NewOutcomeHandler(topic string, book OutcomeApplier, m domrepo.Metrics, l *logger.Logger) *OutcomeHandler {
	return &OutcomeHandler{topic: topic, book: book, metrics: m, log: l.Component("outcomes"), now: time.Now}
}

func (h *OutcomeHandler) Topic() string { return h.topic }

// Handle rejects malformed payloads without retrying them forever: the
// consumer routes them to the DLQ once retries are exhausted.
func (h *OutcomeHandler) Handle(_ context.Context, b []byte) error {
	var o models.TradeOutcome
	if err := json.Unmarshal(b, &o); err != nil {
		h.metrics.RecordError("outcome_unmarshal")
		return fmt.Errorf("decode outcome: %w", err)
	}
	if o.Symbol == "" {
		h.metrics.RecordError("outcome_invalid")
		return fmt.Errorf("decode outcome: missing symbol")
	}
	st := h.Apply(o)
	h.log.Debug("outcome applied",
		logger.String("symbol", st.Symbol),
		logger.Bool("win", o.Win),
		logger.Int("consecutive_losses", st.ConsecutiveLosses),
		logger.Bool("recovery_mode", st.RecoveryMode),
	)
	return nil
}

// Apply stamps a missing close time with now and applies the outcome.
func (h *OutcomeHandler) Apply(o models.TradeOutcome) models.RiskState {
	if o.ClosedAt.IsZero() {
		o.ClosedAt = h.now()
	}
	return h.book.ApplyOutcome(o)
}

var _ pkgkafka.MessageHandler = (*OutcomeHandler)(nil)
