package repository

import (
	"context"
	"time"

	"FxPulse/internal/domain/models"
)

// SignalJournal is the performance-tracking collaborator: every dispatched
// signal is recorded so outcomes can later be joined against it.
type SignalJournal interface {
	Init(ctx context.Context) error
	Record(ctx context.Context, a *models.Alert) error
	Recent(ctx context.Context, symbol string, since time.Time, limit int) ([]models.RiskAdjustedSignal, error)
	Close() error
}
