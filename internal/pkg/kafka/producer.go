package kafka

import (
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// NewProducer builds the async writer behind the lifecycle event feed.
// Writes are acknowledged by the partition leader only and buffered
// asynchronously, so publishing never stalls a request path; failed
// batches surface through the completion callback.
func NewProducer(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Error("Kafka async write failed", "error", err)
			}
		},
	}
}
