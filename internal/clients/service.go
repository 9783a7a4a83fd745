// Package clients resolves the end customers orders and catalogs are built for.
package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradelines-backend/pkg/db"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
)

// Service defines client lookup and onboarding.
type Service interface {
	GetOrCreate(ctx context.Context, input OnboardInput) (*OnboardResult, error)
	Get(ctx context.Context, clientID uuid.UUID, scope *uuid.UUID) (*models.Client, error)
	UpdateExcludedBanks(ctx context.Context, clientID uuid.UUID, scope *uuid.UUID, banks []string) (*models.Client, error)
	ExcludedBanks(ctx context.Context, clientID uuid.UUID) ([]string, error)
}

// OnboardInput identifies a client by email. Name and Phone overwrite the
// stored values when set; ExcludedBanks is merged into the stored list.
type OnboardInput struct {
	Email         string
	Name          *string
	Phone         *string
	ExcludedBanks []string
	BrokerID      *uuid.UUID
}

// OnboardResult reports whether the client row was created by this call.
type OnboardResult struct {
	Client  *models.Client
	Created bool
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("client repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) GetOrCreate(ctx context.Context, input OnboardInput) (*OnboardResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		client := &models.Client{
			ID:            uuid.New(),
			BrokerID:      input.BrokerID,
			Email:         email,
			Name:          trimmed(input.Name),
			Phone:         trimmed(input.Phone),
			ExcludedBanks: pq.StringArray(NormalizeBanks(input.ExcludedBanks)),
		}
		err := s.repo.Create(ctx, client)
		if err == nil {
			s.info(ctx, client, "client created")
			return &OnboardResult{Client: client, Created: true}, nil
		}
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create client")
		}
		// Lost the insert race; merge into the winner's row.
		existing, err = s.repo.FindByEmail(ctx, email)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup client by email")
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup client by email")
	}

	if err := checkOwner(existing, input.BrokerID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.BrokerID != nil && existing.BrokerID == nil {
		updates["broker_id"] = *input.BrokerID
	}
	if name := trimmed(input.Name); name != nil {
		updates["name"] = *name
	}
	if phone := trimmed(input.Phone); phone != nil {
		updates["phone"] = *phone
	}
	merged := NormalizeBanks(append([]string(existing.ExcludedBanks), input.ExcludedBanks...))
	if len(merged) != len(existing.ExcludedBanks) {
		updates["excluded_banks"] = pq.StringArray(merged)
	}
	if len(updates) == 0 {
		return &OnboardResult{Client: existing}, nil
	}
	if err := s.repo.Update(ctx, existing.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update client")
	}
	updated, err := s.repo.FindByID(ctx, existing.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload client")
	}
	return &OnboardResult{Client: updated}, nil
}

// Get loads a client. A non-nil scope hides clients owned by other brokers
// or by no broker at all.
func (s *service) Get(ctx context.Context, clientID uuid.UUID, scope *uuid.UUID) (*models.Client, error) {
	client, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return nil, notFoundOr(err, "load client")
	}
	if scope != nil && (client.BrokerID == nil || *client.BrokerID != *scope) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "client not found")
	}
	return client, nil
}

// UpdateExcludedBanks replaces the client's excluded bank list.
func (s *service) UpdateExcludedBanks(ctx context.Context, clientID uuid.UUID, scope *uuid.UUID, banks []string) (*models.Client, error) {
	client, err := s.Get(ctx, clientID, scope)
	if err != nil {
		return nil, err
	}
	normalized := NormalizeBanks(banks)
	if err := s.repo.Update(ctx, client.ID, map[string]any{"excluded_banks": pq.StringArray(normalized)}); err != nil {
		return nil, notFoundOr(err, "update client")
	}
	client.ExcludedBanks = normalized
	return client, nil
}

func (s *service) ExcludedBanks(ctx context.Context, clientID uuid.UUID) ([]string, error) {
	client, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return nil, notFoundOr(err, "load client")
	}
	return []string(client.ExcludedBanks), nil
}

// NormalizeBanks trims names and drops blanks and case-insensitive duplicates,
// keeping the first spelling seen.
func NormalizeBanks(banks []string) []string {
	out := make([]string, 0, len(banks))
	seen := make(map[string]struct{}, len(banks))
	for _, bank := range banks {
		bank = strings.TrimSpace(bank)
		if bank == "" {
			continue
		}
		key := strings.ToLower(bank)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, bank)
	}
	return out
}

func checkOwner(client *models.Client, brokerID *uuid.UUID) error {
	if brokerID == nil || client.BrokerID == nil || *client.BrokerID == *brokerID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "client is registered with another broker")
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func (s *service) info(ctx context.Context, client *models.Client, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "client_id", client.ID.String()), msg)
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "client not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
