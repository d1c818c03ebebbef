// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend_test

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/restmodel/core"
	"github.com/relabs-tech/restmodel/core/backend"
)

func TestNotifications(t *testing.T) {
	s := CreateTestService(configurationJSON, "json")
	defer s.Close()

	received := make(chan backend.Notification, 10)
	s.backend.RequestNotifications(func(n backend.Notification) error {
		received <- n
		return nil
	}, backend.NotificationRequest{
		Resource:   "post/comment",
		Operations: []core.Operation{core.OperationCreate, core.OperationDestroy},
	})

	var p post
	_, err := s.client.Collection("post").Create(post{Title: "notified"}, &p)
	require.NoError(t, err)
	var c comment
	comments := s.client.Collection("post/comment").WithParent(p.ID)
	_, err = comments.Create(comment{Text: "hello"}, &c)
	require.NoError(t, err)
	_, err = comments.Item(c.ID).Update(comment{Text: "changed"}, nil)
	require.NoError(t, err)
	_, err = comments.Item(c.ID).Delete(nil)
	require.NoError(t, err)

	var notifications []backend.Notification
	for len(notifications) < 2 {
		select {
		case n := <-received:
			notifications = append(notifications, n)
		case <-time.After(5 * time.Second):
			t.Fatal("missing notifications")
		}
	}
	// two workers, the handlers may run in any order
	sort.Slice(notifications, func(i, j int) bool { return notifications[i].Serial < notifications[j].Serial })
	created, destroyed := notifications[0], notifications[1]
	assert.Equal(t, core.OperationCreate, created.Operation)
	assert.Equal(t, "post/comment", created.Resource)
	assert.Equal(t, c.ID, created.ResourceID)
	var payload comment
	require.NoError(t, json.Unmarshal(created.Payload, &payload))
	assert.Equal(t, c, payload)
	assert.Equal(t, core.OperationDestroy, destroyed.Operation)

	assert.Eventually(t, func() bool {
		return len(s.notifier.received()) == 4
	}, 5*time.Second, 10*time.Millisecond)
	operations := []string{}
	for _, n := range s.notifier.received() {
		operations = append(operations, n.resource+" "+string(n.operation))
	}
	assert.ElementsMatch(t, []string{
		"post create",
		"post/comment create",
		"post/comment update",
		"post/comment destroy",
	}, operations)

	assert.Panics(t, func() {
		s.backend.RequestNotifications(func(backend.Notification) error { return nil },
			backend.NotificationRequest{Resource: "post/comment", Operations: []core.Operation{core.OperationCreate}})
	})
}

func TestNotificationHandlerFailures(t *testing.T) {
	s := CreateTestService(configurationJSON, "json")

	calls := make(chan string, 10)
	s.backend.RequestNotifications(func(n backend.Notification) error {
		calls <- n.Resource
		if n.Resource == "post" {
			panic("handler panic")
		}
		return errors.New("handler error")
	}, backend.NotificationRequest{Resource: "post", Operations: []core.Operation{core.OperationCreate}},
		backend.NotificationRequest{Resource: "tag", Operations: []core.Operation{core.OperationCreate}})

	_, err := s.client.Collection("post").Create(post{Title: "first"}, nil)
	require.NoError(t, err)
	_, err = s.client.Collection("post").Create(post{Title: "second"}, nil)
	require.NoError(t, err)

	// the workers survive panics, Close waits for all queued notifications
	s.Close()
	assert.Len(t, calls, 2)
}
