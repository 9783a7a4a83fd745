package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/tradelinesupply"
)

// BrokerSource loads broker records.
type BrokerSource interface {
	Get(ctx context.Context, brokerID uuid.UUID) (*models.Broker, error)
}

// ClientSource resolves an end customer's excluded banks.
type ClientSource interface {
	ExcludedBanks(ctx context.Context, clientID uuid.UUID) ([]string, error)
}

type catalogReader interface {
	All(ctx context.Context) ([]tradelinesupply.Tradeline, error)
}

// PricedTradeline is a catalog line priced for a broker.
type PricedTradeline struct {
	Tradeline tradelinesupply.Tradeline
	Price     UnitPrice
}

// CatalogInput selects the broker and the exclusions to apply.
type CatalogInput struct {
	BrokerID      uuid.UUID
	ClientID      *uuid.UUID
	ExcludedBanks []string
}

// QuoteInput describes a prospective order.
type QuoteInput struct {
	BrokerID  *uuid.UUID
	Items     []LineRequest
	PromoCode string
}

// Service prices the catalog and quotes orders.
type Service interface {
	Catalog(ctx context.Context, input CatalogInput) ([]PricedTradeline, error)
	Quote(ctx context.Context, input QuoteInput) (*Quote, error)
}

type service struct {
	catalog    catalogReader
	brokers    BrokerSource
	clients    ClientSource
	calculator Calculator
}

func NewService(catalog catalogReader, brokers BrokerSource, clients ClientSource, calculator Calculator) (Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if brokers == nil {
		return nil, fmt.Errorf("broker source required")
	}
	if clients == nil {
		return nil, fmt.Errorf("client source required")
	}
	return &service{
		catalog:    catalog,
		brokers:    brokers,
		clients:    clients,
		calculator: calculator,
	}, nil
}

func (s *service) Catalog(ctx context.Context, input CatalogInput) ([]PricedTradeline, error) {
	if input.BrokerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "broker id is required")
	}
	terms, err := s.terms(ctx, &input.BrokerID)
	if err != nil {
		return nil, err
	}

	excluded := append([]string(nil), input.ExcludedBanks...)
	if input.ClientID != nil {
		clientExcluded, err := s.clients.ExcludedBanks(ctx, *input.ClientID)
		if err != nil {
			return nil, err
		}
		excluded = append(excluded, clientExcluded...)
	}

	all, err := s.catalog.All(ctx)
	if err != nil {
		return nil, err
	}
	available := ExcludeBanks(all, excluded)

	out := make([]PricedTradeline, 0, len(available))
	for _, line := range available {
		// Unparseable supplier prices come through as zero and cannot be sold.
		if line.PriceCents <= 0 {
			continue
		}
		price, err := Price(line, terms)
		if err != nil {
			return nil, err
		}
		out = append(out, PricedTradeline{Tradeline: line, Price: price})
	}
	return out, nil
}

func (s *service) Quote(ctx context.Context, input QuoteInput) (*Quote, error) {
	terms, err := s.terms(ctx, input.BrokerID)
	if err != nil {
		return nil, err
	}
	all, err := s.catalog.All(ctx)
	if err != nil {
		return nil, err
	}
	return s.calculator.Quote(all, input.Items, terms, input.PromoCode)
}

// terms resolves broker pricing terms; inactive brokers are rejected.
func (s *service) terms(ctx context.Context, brokerID *uuid.UUID) (*BrokerTerms, error) {
	if brokerID == nil {
		return nil, nil
	}
	broker, err := s.brokers.Get(ctx, *brokerID)
	if err != nil {
		return nil, err
	}
	if !broker.IsActive() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "broker is not active")
	}
	return TermsFromBroker(broker), nil
}
