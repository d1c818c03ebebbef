// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend_test

import (
	"sync"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/backend"
	"github.com/relabs-tech/restmodel/core/client"
)

// TestService is a backend on a fresh router, with an in-process client
type TestService struct {
	Router   *mux.Router
	backend  *backend.Backend
	client   client.Client
	notifier *recordingNotifier
}

// CreateTestService creates a new service that can be used for testing. It is expected
// to call Close on the returned object when it is no longer used.
func CreateTestService(config, format string) *TestService {
	s := TestService{
		Router:   mux.NewRouter(),
		notifier: &recordingNotifier{},
	}
	builder := backend.Builder{
		Config:       config,
		ConfigFormat: format,
		Router:       s.Router,
		Notifier:     s.notifier,
		MetricsRoute: "/metrics",
	}
	s.backend = backend.New(&builder)
	s.client = client.NewWithRouter(s.Router)
	return &s
}

// Close stops the notification workers of the backend
func (s *TestService) Close() {
	s.backend.Close()
}

type notification struct {
	resource  string
	operation core.Operation
	payload   string
}

// recordingNotifier implements core.Notifier
type recordingNotifier struct {
	mutex         sync.Mutex
	notifications []notification
}

func (r *recordingNotifier) Notify(resource string, operation core.Operation, payload []byte) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.notifications = append(r.notifications, notification{resource, operation, string(payload)})
}

func (r *recordingNotifier) received() []notification {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]notification{}, r.notifications...)
}
