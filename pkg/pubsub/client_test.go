package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/tradelines-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/tl-fulfillment", resourceName("p1", "topics", " tl-fulfillment "))
	assert.Equal(t, "projects/other/topics/x", resourceName("p1", "topics", "projects/other/topics/x"))
	assert.Equal(t, "", resourceName("", "topics", "x"))
	assert.Equal(t, "", resourceName("p1", "topics", ""))
}

func TestTopicNamesSkipsBlank(t *testing.T) {
	assert.Equal(t, []string{"f"}, topicNames(config.PubSubConfig{FulfillmentTopic: "f", NotificationTopic: " "}))
	assert.Empty(t, topicNames(config.PubSubConfig{}))
}

func TestClientOptions(t *testing.T) {
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/sa.json"}), 1)
	assert.Empty(t, clientOptions(config.GCPConfig{}))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "p1"}, config.PubSubConfig{}, nil)
	assert.ErrorIs(t, err, errNoTopics)

	var nilClient *Client
	assert.ErrorIs(t, nilClient.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, nilClient.Close())
	assert.Nil(t, nilClient.Publisher("x"))
}
