package tradelinesupply

import (
	"context"
	"net/http"

	"github.com/dghubble/oauth1"
)

// signingClient wraps base so every request carries a two-legged OAuth 1.0a
// HMAC-SHA1 Authorization header. Query parameters take part in the
// signature; JSON bodies do not.
func signingClient(base *http.Client, key, secret string, noncer oauth1.Noncer) *http.Client {
	cfg := oauth1.NewConfig(key, secret)
	if noncer != nil {
		cfg.Noncer = noncer
	}
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)
	signed := cfg.Client(ctx, oauth1.NewToken("", ""))
	signed.Timeout = base.Timeout
	signed.CheckRedirect = base.CheckRedirect
	signed.Jar = base.Jar
	return signed
}
