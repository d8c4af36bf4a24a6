package events

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher produces messages synchronously to a Kafka cluster.
type KafkaPublisher struct {
	client *kgo.Client
}

// NewKafkaPublisher creates a client for brokers. The connection is made
// lazily on the first publish.
func NewKafkaPublisher(brokers []string, opts ...kgo.Opt) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	opts = append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	}, opts...)

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "kafka client")
	}
	return &KafkaPublisher{client: client}, nil
}

func (k *KafkaPublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	return k.client.ProduceSync(ctx, record).FirstErr()
}

func (k *KafkaPublisher) Ping(ctx context.Context) error {
	return k.client.Ping(ctx)
}

func (k *KafkaPublisher) Close() {
	k.client.Close()
}
