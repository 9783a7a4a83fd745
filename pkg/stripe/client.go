// Package stripe wraps stripe-go for hosted checkout and webhook verification.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/angelmondragon/tradelines-backend/pkg/config"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = errors.New(`stripe environment must be "test" or "live"`)
)

// keyPrefixes lists the secret and restricted key prefixes each
// environment accepts.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

// Client carries the webhook signing secret and checkout redirect defaults.
// API calls go through stripe-go's package-level key, set by NewClient.
type Client struct {
	environment   string
	signingSecret string
	successURL    string
	cancelURL     string

	newSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewClient rejects a key that belongs to the other environment so a test
// deployment cannot charge live cards.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, errInvalidStripeEnv
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	secret := strings.TrimSpace(cfg.Secret)
	switch {
	case apiKey == "":
		return nil, errAPIKeyRequired
	case secret == "":
		return nil, errSecretRequired
	case !hasAnyPrefix(apiKey, prefixes):
		return nil, fmt.Errorf("stripe environment %q requires a %s secret key", env, env)
	}

	stripe.Key = apiKey
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client initialized")
	}
	return &Client{
		environment:   env,
		signingSecret: secret,
		successURL:    cfg.CheckoutSuccessURL,
		cancelURL:     cfg.CheckoutCancelURL,
		newSession:    session.New,
	}, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Environment is "test" or "live"; empty on a nil client.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret is the whsec_ secret used to verify webhook signatures.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}
