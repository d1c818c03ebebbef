// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/events"
	"github.com/relabs-tech/restmodel/core/logger"
)

// Notification is an entity lifecycle notification. Receive them
// with RequestNotifications() or through the Notifier of the backend.
type Notification struct {
	Serial     int64
	Resource   string
	Operation  core.Operation
	ResourceID string
	Payload    []byte
	CreatedAt  time.Time
}

type notificationHandler struct {
	request  string
	callback func(Notification) error
}

// NotificationRequest represents a notification request
// for a specific resource and a list of operations
type NotificationRequest struct {
	Resource   string
	Operations []core.Operation
}

// RequestNotifications installs a handler for entity lifecycle notifications.
//
// There can only be one handler for each unique combination of resource and operation.
// Handlers run on the notification workers of the backend, never on the request goroutine.
func (b *Backend) RequestNotifications(handler func(Notification) error, requests ...NotificationRequest) {
	b.handlersMutex.Lock()
	defer b.handlersMutex.Unlock()
	for _, request := range requests {
		for _, operation := range request.Operations {
			key := notificationRequestKey(request.Resource, operation)
			if _, ok := b.handlers[key]; ok {
				panic(configurationError("notification handler for %s already installed", key))
			}
			logger.Default().Debugf("install notification handler %s", key)
			b.handlers[key] = notificationHandler{request: key, callback: handler}
		}
	}
}

func notificationRequestKey(resource string, operation core.Operation) string {
	return string(operation) + " " + resource
}

// resourceName returns the nested resource name of c, like "post/comment"
func resourceName(c *Collection) string {
	return c.Resource()
}

// handleNotifications turns the lifecycle events of c into notifications
func (b *Backend) handleNotifications(c *Collection) []*events.Subscription {
	var subscriptions []*events.Subscription
	for _, operation := range []core.Operation{core.OperationCreate, core.OperationUpdate, core.OperationDestroy} {
		operation := operation
		subscriptions = append(subscriptions, c.On(string(operation), func(ev events.Event[*Entity]) {
			b.enqueueNotification(resourceName(c), operation, ev.Payload)
		}))
	}
	return subscriptions
}

func (b *Backend) enqueueNotification(resource string, operation core.Operation, e *Entity) {
	b.handlersMutex.RLock()
	_, requested := b.handlers[notificationRequestKey(resource, operation)]
	b.handlersMutex.RUnlock()
	if !requested && b.notifier == nil {
		return
	}

	payload, err := json.Marshal(e)
	if err != nil {
		logger.Default().WithError(err).Errorln("cannot marshal notification for", resource)
		return
	}
	notification := Notification{
		Serial:     atomic.AddInt64(&b.notificationSerial, 1),
		Resource:   resource,
		Operation:  operation,
		ResourceID: KeyString(e.ID()),
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}

	b.queueMutex.RLock()
	defer b.queueMutex.RUnlock()
	if b.queue == nil {
		logger.Default().Warnln("backend closed, dropping notification", notification.Serial, resource)
		return
	}
	b.queue <- notification
}

func (b *Backend) startNotificationWorkers(n int) {
	b.queue = make(chan Notification, 100)
	b.workers.Add(n)
	for i := 0; i < n; i++ {
		go b.notificationWorker(b.queue)
	}
}

func callWithPanicEnvelope(callback func(Notification) error, notification Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from panic: %s", r)
		}
	}()
	err = callback(notification)
	return
}

func (b *Backend) notificationWorker(jobs chan Notification) {
	defer b.workers.Done()

	for notification := range jobs {
		request := notificationRequestKey(notification.Resource, notification.Operation)
		rlog := logger.Default().WithField("serial", notification.Serial)

		if b.notifier != nil {
			err := callWithPanicEnvelope(func(n Notification) error {
				b.notifier.Notify(n.Resource, n.Operation, n.Payload)
				return nil
			}, notification)
			if err != nil {
				rlog.WithError(err).Errorln("notifier failed for", request)
			}
		}

		b.handlersMutex.RLock()
		handler, ok := b.handlers[request]
		b.handlersMutex.RUnlock()
		if !ok {
			continue
		}
		if err := callWithPanicEnvelope(handler.callback, notification); err != nil {
			rlog.WithError(err).Errorln("error processing", request)
		} else {
			rlog.Debugln("successfully handled", request)
		}
	}
}

// Close stops the notification workers after all queued notifications were handled
func (b *Backend) Close() {
	b.queueMutex.Lock()
	queue := b.queue
	b.queue = nil
	b.queueMutex.Unlock()
	if queue == nil {
		return
	}
	close(queue)
	b.workers.Wait()
	for _, subscription := range b.subscriptions {
		subscription.Unsubscribe()
	}
}
