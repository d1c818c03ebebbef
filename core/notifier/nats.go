// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package notifier

import (
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/logger"
)

// NATS publishes notifications on the subject "<prefix>.<resource>.<operation>", where
// the slashes of nested resources become dots, like "restmodel.post.comment.create"
type NATS struct {
	conn   *nats.Conn
	prefix string
}

// NewNATS connects to the server at url
func NewNATS(url, prefix string) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("restmodel"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Default().WithError(err).Warnln("nats notifier disconnected")
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	logger.Default().Debugln("nats notifier for subjects", prefix+".>")
	return &NATS{conn: conn, prefix: prefix}, nil
}

func natsSubject(prefix, resource string, operation core.Operation) string {
	subject := strings.ReplaceAll(resource, "/", ".") + "." + string(operation)
	if prefix == "" {
		return subject
	}
	return prefix + "." + subject
}

// Notify implements core.Notifier
func (n *NATS) Notify(resource string, operation core.Operation, payload []byte) {
	if err := n.conn.Publish(natsSubject(n.prefix, resource, operation), payload); err != nil {
		logger.Default().WithError(err).Errorln("nats notifier: cannot publish", operation, resource)
	}
}

// Close drains and closes the connection
func (n *NATS) Close() error {
	return n.conn.Drain()
}
