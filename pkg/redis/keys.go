package redis

import "strings"

// All keys live under the "tl" namespace so the instance can be shared.
const namespace = "tl"

// BuildKey joins the non-blank parts under the namespace, e.g. "tl:lock:cron".
func BuildKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

func prefixed(prefix string, parts []string) string {
	return BuildKey(append([]string{prefix}, parts...)...)
}

// IdempotencyKey returns the key for a stored idempotent result.
func (c *Client) IdempotencyKey(scope, id string) string {
	return BuildKey("idempotency", scope, id)
}

// RateLimitKey returns the key of a fixed-window counter.
func RateLimitKey(parts ...string) string { return prefixed("rl", parts) }

// LockKey returns the key of a distributed lock.
func LockKey(parts ...string) string { return prefixed("lock", parts) }

// CatalogKey is the cache key for the raw supplier feed.
func CatalogKey() string { return BuildKey("cache", "tradelines_all") }

// BrokerKey is the cache key for a broker's pricing terms.
func BrokerKey(brokerID string) string { return BuildKey("cache", "broker", brokerID) }

// OrderKey is the cache key for an order view.
func OrderKey(orderID string) string { return BuildKey("cache", "order", orderID) }

// SessionKey is the key tracking a live access token.
func SessionKey(accessID string) string { return BuildKey("session", accessID) }
