// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/events"
	"github.com/relabs-tech/restmodel/core/logger"
)

// backendMetrics holds the Prometheus metrics of a backend
type backendMetrics struct {
	entities   *prometheus.GaugeVec   // by collection
	operations *prometheus.CounterVec // by collection and operation
	requests   *prometheus.CounterVec // by collection, method and status
}

func newBackendMetrics(registerer prometheus.Registerer) (*backendMetrics, error) {
	m := &backendMetrics{
		entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "restmodel",
			Name:      "collection_entities",
			Help:      "Number of entities held in memory per collection",
		}, []string{"collection"}),

		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restmodel",
			Name:      "entity_operations_total",
			Help:      "Total number of successful entity lifecycle operations",
		}, []string{"collection", "operation"}), // operation: create, update, destroy

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restmodel",
			Name:      "requests_total",
			Help:      "Total number of requests served by collection routes",
		}, []string{"collection", "method", "status"}),
	}

	for _, collector := range []prometheus.Collector{m.entities, m.operations, m.requests} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// observe follows the events of c
func (m *backendMetrics) observe(c *Collection) []*events.Subscription {
	name := c.Name()
	m.entities.WithLabelValues(name).Set(float64(c.Count()))
	update := func(events.Event[*Entity]) {
		m.entities.WithLabelValues(name).Set(float64(c.Count()))
	}
	subscriptions := []*events.Subscription{
		c.On("add", update),
		c.On("remove", update),
	}
	for _, operation := range []core.Operation{core.OperationCreate, core.OperationUpdate, core.OperationDestroy} {
		counter := m.operations.WithLabelValues(name, string(operation))
		subscriptions = append(subscriptions, c.On(string(operation), func(events.Event[*Entity]) {
			counter.Inc()
		}))
	}
	return subscriptions
}

func (m *backendMetrics) request(collection, method string, status int) {
	if status == 0 {
		status = http.StatusOK
	}
	m.requests.WithLabelValues(collection, method, strconv.Itoa(status)).Inc()
}

func (b *Backend) handleMetrics(router *mux.Router, route string, gatherer prometheus.Gatherer) {
	logger.Default().Debugln("metrics")
	logger.Default().Debugln("  handle metrics route:", route, "GET")
	router.Handle(route, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
