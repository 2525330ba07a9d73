package repository

import (
	"context"
	"time"

	"FxPulse/internal/domain/models"
	domrepo "FxPulse/internal/domain/repository"
	"FxPulse/pkg/logger"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value any) error
	Close() error
}

// AlertMessage is the wire form of an alert.
type AlertMessage struct {
	ID           string             `json:"id"`
	Symbol       string             `json:"symbol"`
	Timeframe    string             `json:"timeframe"`
	Direction    string             `json:"direction"`
	Confidence   float64            `json:"confidence"`
	Priority     string             `json:"priority"`
	Price        float64            `json:"price"`
	PositionSize float64            `json:"position_size"`
	StopLoss     float64            `json:"stop_loss"`
	TakeProfit   float64            `json:"take_profit"`
	RiskPercent  float64            `json:"risk_percent"`
	RiskLevel    int                `json:"risk_level"`
	RecoveryMode bool               `json:"recovery_mode"`
	Regime       string             `json:"regime"`
	Factors      map[string]float64 `json:"contributing_factors"`
	SignalTime   time.Time          `json:"signal_time"`
	CreatedAt    time.Time          `json:"created_at"`
}

func NewAlertMessage(a *models.Alert) AlertMessage {
	s := a.Signal
	return AlertMessage{
		ID:           a.ID.String(),
		Symbol:       s.Symbol,
		Timeframe:    string(s.Timeframe),
		Direction:    string(s.Direction),
		Confidence:   s.Confidence,
		Priority:     a.Priority.String(),
		Price:        s.Price,
		PositionSize: s.PositionSize,
		StopLoss:     s.StopLoss,
		TakeProfit:   s.TakeProfit,
		RiskPercent:  s.RiskPercent,
		RiskLevel:    s.RiskLevel,
		RecoveryMode: s.RecoveryMode,
		Regime:       string(s.Regime),
		Factors:      s.Factors,
		SignalTime:   s.Timestamp,
		CreatedAt:    a.CreatedAt,
	}
}

// KafkaAlertTransport publishes alerts keyed by symbol so one symbol's alerts
// stay ordered on a partition. Retries are the producer's concern.
type KafkaAlertTransport struct {
	producer Publisher
	topic    string
}

func NewKafkaAlertTransport(p Publisher, topic string) *KafkaAlertTransport {
	return &KafkaAlertTransport{producer: p, topic: topic}
}

func (t *KafkaAlertTransport) Publish(ctx context.Context, a *models.Alert) error {
	return t.producer.Publish(ctx, t.topic, []byte(a.Signal.Symbol), NewAlertMessage(a))
}

func (t *KafkaAlertTransport) Close() error {
	if t.producer == nil {
		return nil
	}
	return t.producer.Close()
}

// LogAlertTransport writes alerts to the structured log.
type LogAlertTransport struct {
	log *logger.Logger
}

func NewLogAlertTransport(l *logger.Logger) *LogAlertTransport {
	return &LogAlertTransport{log: l.Component("alerts")}
}

func (t *LogAlertTransport) Publish(_ context.Context, a *models.Alert) error {
	m := NewAlertMessage(a)
	t.log.Info("alert",
		logger.String("id", m.ID),
		logger.String("symbol", m.Symbol),
		logger.String("timeframe", m.Timeframe),
		logger.String("direction", m.Direction),
		logger.String("priority", m.Priority),
		logger.Float64("confidence", m.Confidence),
		logger.Float64("price", m.Price),
		logger.Float64("position_size", m.PositionSize),
		logger.Float64("stop_loss", m.StopLoss),
		logger.Float64("take_profit", m.TakeProfit),
		logger.Float64("risk_percent", m.RiskPercent),
		logger.String("regime", m.Regime),
		logger.Any("factors", m.Factors),
	)
	return nil
}

func (t *LogAlertTransport) Close() error { return nil }

var (
	_ domrepo.AlertTransport = (*KafkaAlertTransport)(nil)
	_ domrepo.AlertTransport = (*LogAlertTransport)(nil)
)
