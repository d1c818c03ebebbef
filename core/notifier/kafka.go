// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package notifier

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/logger"
)

// Kafka publishes notifications to a Kafka topic. The resource is the message key,
// so all notifications of one resource end up in the same partition.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka returns a notifier for topic
func NewKafka(brokers []string, topic string) *Kafka {
	logger.Default().Debugln("kafka notifier for topic", topic)
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

func kafkaMessage(resource string, operation core.Operation, payload []byte) kafka.Message {
	return kafka.Message{
		Key:   []byte(resource),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "resource", Value: []byte(resource)},
			{Key: "operation", Value: []byte(operation)},
		},
	}
}

// Notify implements core.Notifier
func (k *Kafka) Notify(resource string, operation core.Operation, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, kafkaMessage(resource, operation, payload)); err != nil {
		logger.Default().WithError(err).Errorln("kafka notifier: cannot publish", operation, resource)
	}
}

// Close flushes pending messages and closes the writer
func (k *Kafka) Close() error {
	return k.writer.Close()
}
