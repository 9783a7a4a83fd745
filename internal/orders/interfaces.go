package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradelines-backend/internal/brokers"
	"github.com/angelmondragon/tradelines-backend/internal/pricing"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTxTimeout(ctx context.Context, timeout time.Duration, fn func(tx *gorm.DB) error) error
}

// Quoter prices a set of catalog lines for an optional broker.
type Quoter interface {
	Quote(ctx context.Context, input pricing.QuoteInput) (*pricing.Quote, error)
}

// ClientDirectory resolves a client the order is placed for. A non-nil scope
// restricts the lookup to that broker's clients.
type ClientDirectory interface {
	Get(ctx context.Context, clientID uuid.UUID, scope *uuid.UUID) (*models.Client, error)
}

// SalesRecorder updates broker analytics for a completed order.
type SalesRecorder interface {
	RecordSale(ctx context.Context, tx *gorm.DB, sale brokers.Sale) error
}
