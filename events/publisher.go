package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	_ "github.com/pitabwire/natspubsub" // required for NATS pubsub driver registration
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub" // required for in-memory pubsub driver registration
)

// HeaderName is the message metadata key holding the event name.
const HeaderName = "langpack.event"

var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher forwards named payloads outside the process.
type Publisher interface {
	Publish(ctx context.Context, name string, payload any) error
	Close(ctx context.Context) error
}

// TopicPublisher sends JSON encoded payloads to a gocloud pubsub topic.
type TopicPublisher struct {
	url string

	mu    sync.RWMutex
	topic *pubsub.Topic
}

var _ Publisher = new(TopicPublisher)

// OpenTopicPublisher opens the topic at url, e.g. mem://langpack or nats://subject.
func OpenTopicPublisher(ctx context.Context, url string) (*TopicPublisher, error) {
	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		return nil, err
	}
	return &TopicPublisher{url: url, topic: topic}, nil
}

func (p *TopicPublisher) URL() string {
	return p.url
}

func (p *TopicPublisher) Publish(ctx context.Context, name string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	metadata := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, metadata)
	metadata[HeaderName] = name

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.topic == nil {
		return ErrPublisherClosed
	}

	return p.topic.Send(ctx, &pubsub.Message{
		Body:     body,
		Metadata: metadata,
	})
}

const shutdownTimeout = 30 * time.Second

func (p *TopicPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	topic := p.topic
	p.topic = nil
	if topic == nil {
		return nil
	}

	// mem:// topics are shared by URL within the process; shutting one down breaks
	// every later user of the same URL.
	if strings.HasPrefix(strings.ToLower(p.url), "mem://") {
		return nil
	}

	sctx := ctx
	if ctx.Err() != nil {
		sctx = context.Background()
	}
	sctx, cancel := context.WithTimeout(sctx, shutdownTimeout)
	defer cancel()

	return topic.Shutdown(sctx)
}
