// Package brokers onboards brokers and manages their pricing terms.
package brokers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradelines-backend/internal/activity"
	"github.com/angelmondragon/tradelines-backend/pkg/config"
	"github.com/angelmondragon/tradelines-backend/pkg/db"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/outbox"
	"github.com/angelmondragon/tradelines-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tradelines-backend/pkg/redis"
	"github.com/angelmondragon/tradelines-backend/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines broker account operations.
type Service interface {
	Onboard(ctx context.Context, input OnboardInput) (*OnboardResult, error)
	Approve(ctx context.Context, brokerID uuid.UUID, actorID string) (*models.Broker, error)
	Update(ctx context.Context, brokerID uuid.UUID, input UpdateInput, actorID string) (*models.Broker, error)
	Get(ctx context.Context, brokerID uuid.UUID) (*models.Broker, error)
	Authenticate(ctx context.Context, apiKey, secret string) (*models.Broker, error)
	RecordSale(ctx context.Context, tx *gorm.DB, sale Sale) error
}

// OnboardInput is the admin-submitted broker application.
type OnboardInput struct {
	Name                string
	BusinessName        *string
	Email               string
	Phone               *string
	RevenueSharePercent *decimal.Decimal
	MarkupType          enums.MarkupType
	MarkupValue         decimal.Decimal
	ActorID             string
}

// OnboardResult carries the plain API secret, which is never retrievable again.
type OnboardResult struct {
	Broker    *models.Broker
	APISecret string
}

// UpdateInput lists the admin-editable broker fields; nil means unchanged.
type UpdateInput struct {
	Name                *string
	BusinessName        *string
	Phone               *string
	RevenueSharePercent *decimal.Decimal
	MarkupType          *enums.MarkupType
	MarkupValue         *decimal.Decimal
	Status              *enums.BrokerStatus
}

// Sale is one completed order attributed to a broker.
type Sale struct {
	BrokerID     uuid.UUID
	At           time.Time
	Revenue      int64
	RevenueShare int64
	Markup       int64
}

// ServiceParams groups the broker service dependencies.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Activity activity.Recorder
	Outbox   outbox.Emitter
	Cache    redis.Cache
	Pricing  config.PricingConfig
	Password config.PasswordConfig
	CacheTTL time.Duration
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	tx       txRunner
	activity activity.Recorder
	outbox   outbox.Emitter
	cache    redis.Cache
	pricing  config.PricingConfig
	password config.PasswordConfig
	cacheTTL time.Duration
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("broker repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Activity == nil {
		return nil, fmt.Errorf("activity recorder required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("cache required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		activity: params.Activity,
		outbox:   params.Outbox,
		cache:    params.Cache,
		pricing:  params.Pricing,
		password: params.Password,
		cacheTTL: ttl,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

func (s *service) Onboard(ctx context.Context, input OnboardInput) (*OnboardResult, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and email are required")
	}

	share := decimal.NewFromFloat(s.pricing.DefaultRevenueShare)
	if input.RevenueSharePercent != nil {
		share = *input.RevenueSharePercent
	}
	if err := s.checkShare(share); err != nil {
		return nil, err
	}
	markupType := input.MarkupType
	if markupType == "" {
		markupType = enums.MarkupTypePercentage
	}
	if err := checkMarkup(markupType, input.MarkupValue); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a broker with this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup broker by email")
	}

	creds, err := security.IssueCredentials(s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue broker credentials")
	}

	broker := &models.Broker{
		ID:                  uuid.New(),
		Name:                name,
		BusinessName:        input.BusinessName,
		Email:               email,
		Phone:               input.Phone,
		Status:              enums.BrokerStatusPending,
		RevenueSharePercent: share,
		MarkupType:          markupType,
		MarkupValue:         input.MarkupValue,
		APIKey:              creds.APIKey,
		APISecretHash:       creds.SecretHash,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, broker); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a broker with this email already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create broker")
		}
		if _, err := s.activity.Record(ctx, tx, activity.Entry{
			Action:     enums.ActivityBrokerOnboarded,
			EntityType: enums.EntityBroker,
			EntityID:   broker.ID,
			BrokerID:   &broker.ID,
			ActorID:    input.ActorID,
			Metadata: map[string]any{
				"revenue_share_percent": share.String(),
				"markup_type":           markupType,
				"markup_value":          input.MarkupValue.String(),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record broker activity")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBrokerOnboarded,
			AggregateType: enums.AggregateBroker,
			AggregateID:   broker.ID,
			Actor:         &outbox.ActorRef{ActorID: input.ActorID, Role: string(enums.RoleAdmin)},
			Data: payloads.BrokerOnboardedEvent{
				BrokerID: broker.ID,
				Name:     broker.Name,
				Email:    broker.Email,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return &OnboardResult{Broker: broker, APISecret: creds.Secret}, nil
}

func (s *service) Approve(ctx context.Context, brokerID uuid.UUID, actorID string) (*models.Broker, error) {
	var approved *models.Broker
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		broker, err := repo.FindByID(ctx, brokerID)
		if err != nil {
			return notFoundOr(err, "load broker")
		}
		if broker.Status != enums.BrokerStatusPending {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "broker is %s, only PENDING brokers can be approved", broker.Status)
		}
		now := s.now().UTC()
		if err := repo.Update(ctx, brokerID, map[string]any{
			"status":      enums.BrokerStatusActive,
			"approved_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve broker")
		}
		if _, err := s.activity.Record(ctx, tx, activity.Entry{
			Action:     enums.ActivityBrokerApproved,
			EntityType: enums.EntityBroker,
			EntityID:   brokerID,
			BrokerID:   &brokerID,
			ActorID:    actorID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record broker activity")
		}
		broker.Status = enums.BrokerStatusActive
		broker.ApprovedAt = &now
		approved = broker
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, brokerID)
	return approved, nil
}

func (s *service) Update(ctx context.Context, brokerID uuid.UUID, input UpdateInput, actorID string) (*models.Broker, error) {
	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		updates["name"] = name
	}
	if input.BusinessName != nil {
		updates["business_name"] = *input.BusinessName
	}
	if input.Phone != nil {
		updates["phone"] = *input.Phone
	}
	if input.RevenueSharePercent != nil {
		if err := s.checkShare(*input.RevenueSharePercent); err != nil {
			return nil, err
		}
		updates["revenue_share_percent"] = *input.RevenueSharePercent
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid broker status %q", *input.Status)
		}
		updates["status"] = *input.Status
	}

	var updated *models.Broker
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, brokerID)
		if err != nil {
			return notFoundOr(err, "load broker")
		}

		markupType := current.MarkupType
		markupValue := current.MarkupValue
		if input.MarkupType != nil {
			markupType = *input.MarkupType
			updates["markup_type"] = markupType
		}
		if input.MarkupValue != nil {
			markupValue = *input.MarkupValue
			updates["markup_value"] = markupValue
		}
		if err := checkMarkup(markupType, markupValue); err != nil {
			return err
		}
		if len(updates) == 0 {
			updated = current
			return nil
		}

		if err := repo.Update(ctx, brokerID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update broker")
		}
		metadata := make(map[string]any, len(updates))
		for k, v := range updates {
			metadata[k] = fmt.Sprint(v)
		}
		if _, err := s.activity.Record(ctx, tx, activity.Entry{
			Action:     enums.ActivityBrokerUpdated,
			EntityType: enums.EntityBroker,
			EntityID:   brokerID,
			BrokerID:   &brokerID,
			ActorID:    actorID,
			Metadata:   metadata,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record broker activity")
		}
		updated, err = repo.FindByID(ctx, brokerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload broker")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, brokerID)
	return updated, nil
}

// Get returns the broker, served from the cache when possible. Cached copies
// never carry the API secret hash.
func (s *service) Get(ctx context.Context, brokerID uuid.UUID) (*models.Broker, error) {
	key := redis.BrokerKey(brokerID.String())

	var cached models.Broker
	err := s.cache.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		return &cached, nil
	case errors.Is(err, redis.ErrCacheMiss):
	default:
		s.warn(ctx, "broker cache read failed", err)
	}

	broker, err := s.repo.FindByID(ctx, brokerID)
	if err != nil {
		return nil, notFoundOr(err, "load broker")
	}
	entry := *broker
	entry.APISecretHash = ""
	if err := s.cache.SetJSON(ctx, key, entry, s.cacheTTL); err != nil {
		s.warn(ctx, "broker cache write failed", err)
	}
	return broker, nil
}

func (s *service) Authenticate(ctx context.Context, apiKey, secret string) (*models.Broker, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" || secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	broker, err := s.repo.FindByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup broker by api key")
	}
	ok, err := security.VerifySecret(secret, broker.APISecretHash)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	if broker.Status == enums.BrokerStatusSuspended || broker.Status == enums.BrokerStatusInactive {
		return nil, pkgerrors.Newf(pkgerrors.CodeForbidden, "broker account is %s", broker.Status)
	}
	return broker, nil
}

// RecordSale adds a completed order to the broker's daily counters inside tx.
func (s *service) RecordSale(ctx context.Context, tx *gorm.DB, sale Sale) error {
	if sale.BrokerID == uuid.Nil {
		return fmt.Errorf("broker id is required")
	}
	at := sale.At
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	return s.repo.WithTx(tx).IncrementDailySales(ctx, models.BrokerAnalytics{
		BrokerID:           sale.BrokerID,
		Date:               day,
		OrderCount:         1,
		Revenue:            sale.Revenue,
		RevenueShareEarned: sale.RevenueShare,
		MarkupEarned:       sale.Markup,
	})
}

func (s *service) checkShare(share decimal.Decimal) error {
	minShare := decimal.NewFromFloat(s.pricing.MinRevenueShare)
	maxShare := decimal.NewFromFloat(s.pricing.MaxRevenueShare)
	if share.LessThan(minShare) || share.GreaterThan(maxShare) {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "revenue share must be between %s%% and %s%%", minShare, maxShare).
			WithDetails(map[string]any{"min": minShare.String(), "max": maxShare.String()})
	}
	return nil
}

func checkMarkup(markupType enums.MarkupType, value decimal.Decimal) error {
	if !markupType.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid markup type %q", markupType)
	}
	if value.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "markup value cannot be negative")
	}
	return nil
}

func (s *service) invalidate(ctx context.Context, brokerID uuid.UUID) {
	if err := s.cache.Delete(ctx, redis.BrokerKey(brokerID.String())); err != nil {
		s.warn(ctx, "broker cache delete failed", err)
	}
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, strings.TrimPrefix(action, "load ")+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
