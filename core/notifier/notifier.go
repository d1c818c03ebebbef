// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package notifier publishes entity lifecycle notifications to message brokers

All notifiers implement core.Notifier. The payload is the JSON representation of the
entity, resource and operation travel as message metadata: SQS message attributes,
Kafka headers, or the NATS subject.
*/
package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/relabs-tech/restmodel/core"
)

// publishTimeout limits a single publish call
const publishTimeout = 10 * time.Second

// Multi fans a notification out to several notifiers
type Multi []core.Notifier

// Notify implements core.Notifier
func (m Multi) Notify(resource string, operation core.Operation, payload []byte) {
	for _, n := range m {
		n.Notify(resource, operation, payload)
	}
}

// Close closes every notifier which is an io.Closer
func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		if closer, ok := n.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

// Close closes n if it is an io.Closer, like the notifiers of New
func Close(n core.Notifier) error {
	if closer, ok := n.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Func adapts a function to core.Notifier
type Func func(resource string, operation core.Operation, payload []byte)

// Notify implements core.Notifier
func (f Func) Notify(resource string, operation core.Operation, payload []byte) {
	f(resource, operation, payload)
}

// New creates the notifiers of a configuration string, like
// "kafka:localhost:9092/topic", "nats:nats://localhost:4222/restmodel" or
// "sqs:https://sqs.eu-central-1.amazonaws.com/123/queue". Several notifiers are
// separated by comma. An empty configuration has no notifier.
func New(ctx context.Context, configuration string) (core.Notifier, error) {
	var multi Multi
	for _, entry := range strings.Split(configuration, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		kind, target, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("invalid notifier '%s'", entry)
		}
		var (
			n   core.Notifier
			err error
		)
		switch kind {
		case "kafka":
			brokers, topic, found := strings.Cut(target, "/")
			if !found || topic == "" {
				return nil, fmt.Errorf("kafka notifier requires brokers/topic, got '%s'", target)
			}
			n = NewKafka(strings.Split(brokers, ";"), topic)
		case "nats":
			u, perr := url.Parse(target)
			if perr != nil || u.Host == "" || strings.Trim(u.Path, "/") == "" {
				return nil, fmt.Errorf("nats notifier requires url/subject, got '%s'", target)
			}
			n, err = NewNATS(u.Scheme+"://"+u.Host, strings.Trim(u.Path, "/"))
		case "sqs":
			n, err = NewSQS(ctx, target)
		default:
			return nil, fmt.Errorf("unknown notifier '%s'", kind)
		}
		if err != nil {
			return nil, err
		}
		multi = append(multi, n)
	}
	switch len(multi) {
	case 0:
		return nil, nil
	case 1:
		return multi[0], nil
	}
	return multi, nil
}
