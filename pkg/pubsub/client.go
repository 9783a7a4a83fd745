// Package pubsub wraps the Pub/Sub v2 client used by the outbox publisher.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/tradelines-backend/pkg/config"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic name is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client owns the Pub/Sub connection and one long-lived publisher per
// topic. Publishers batch in the background, so they are created once and
// stopped on Close.
type Client struct {
	client    *pubsub.Client
	projectID string
	topics    []string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects and fails unless every configured topic exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	topics := topicNames(cfg)
	if len(topics) == 0 {
		return nil, errNoTopics
	}

	psClient, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:     psClient,
		projectID:  projectID,
		topics:     topics,
		publishers: make(map[string]*pubsub.Publisher),
	}
	if err := c.checkTopics(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", topics), "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func topicNames(cfg config.PubSubConfig) []string {
	var names []string
	for _, name := range []string{cfg.FulfillmentTopic, cfg.NotificationTopic} {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// checkTopics reports every missing topic, not just the first.
func (c *Client) checkTopics(ctx context.Context) error {
	var errs []error
	for _, name := range c.topics {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topicPath(name)})
		switch {
		case err == nil:
		case status.Code(err) == codes.NotFound:
			errs = append(errs, fmt.Errorf("topic %q does not exist", name))
		default:
			errs = append(errs, fmt.Errorf("checking topic %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Publisher returns the shared publisher for a topic ID or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	path := c.topicPath(name)
	if path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[path]; ok {
		return p
	}
	p := c.client.Publisher(path)
	c.publishers[path] = p
	return p
}

// Ping re-checks the configured topics.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.checkTopics(ctx)
}

// Close flushes pending publishes before closing the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for path, p := range c.publishers {
		p.Stop()
		delete(c.publishers, path)
	}
	c.mu.Unlock()
	return c.client.Close()
}

func (c *Client) topicPath(name string) string {
	return resourceName(c.projectID, "topics", name)
}

// resourceName expands a short ID to projects/<p>/<kind>/<id> and passes
// full resource names through.
func resourceName(projectID, kind, name string) string {
	name = strings.TrimSpace(name)
	projectID = strings.TrimSpace(projectID)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/"):
		return name
	case projectID == "":
		return ""
	}
	return "projects/" + projectID + "/" + kind + "/" + name
}
