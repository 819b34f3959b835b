package services

import (
	"testing"
	"time"

	"callbridge/internal/core/domain"
	"callbridge/internal/core/ports"
	"callbridge/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseConnectionData(t *testing.T) {
	tests := []struct {
		name string
		data string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"pairs", "role=agent&name=Ana%20B", map[string]string{"role": "agent", "name": "Ana B"}},
		{"repeated key keeps first", "role=agent&role=customer", map[string]string{"role": "agent"}},
		{"key without value", "flag", map[string]string{"flag": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseConnectionData(tt.data))
		})
	}
}

func TestLogConnections_Empty(t *testing.T) {
	logger, logs := testutil.NewObservedLogger()
	l := NewConnectionLogger(logger)

	assert.Empty(t, l.LogConnections(nil, LabelCurrentConnections))
	assert.Empty(t, l.LogConnections([]*domain.Connection{}, LabelCurrentConnections))

	assert.Equal(t, 2, logs.FilterMessage("No Current Connections found.").Len())
	assert.Equal(t, 2, logs.Len())
}

func TestLogConnections_Defaults(t *testing.T) {
	logger, logs := testutil.NewObservedLogger()
	created := time.Date(2024, 11, 17, 9, 0, 0, 0, time.UTC)

	records := NewConnectionLogger(logger).LogConnections([]*domain.Connection{
		{ConnectionID: "c1", CreationTime: created, Data: "role=customer&name=Ana"},
		{ConnectionID: "c2", Destroyed: true, DestroyedReason: "clientDisconnected", Quality: "good", Role: "agent",
			Capabilities: map[string]bool{"publish": true}},
	}, LabelCurrentConnections)

	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, domain.ConnectionID("c1"), first.ConnectionID)
	assert.Equal(t, map[string]string{"role": "customer", "name": "Ana"}, first.Metadata)
	assert.Equal(t, created, first.CreationTime)
	assert.False(t, first.Destroyed)
	assert.Equal(t, "N/A", first.DestroyedReason)
	assert.Equal(t, "Unknown", first.Quality)
	assert.NotNil(t, first.Capabilities)
	assert.Empty(t, first.Capabilities)
	assert.NotNil(t, first.Permissions)
	assert.Equal(t, []string{"connectionId", "creationTime", "data"}, first.AllKeys)

	second := records[1]
	assert.True(t, second.Destroyed)
	assert.Equal(t, "clientDisconnected", second.DestroyedReason)
	assert.Equal(t, "good", second.Quality)
	assert.Equal(t, map[string]bool{"publish": true}, second.Capabilities)

	assert.Equal(t, 2, logs.FilterMessage("Connection").Len())
}

func TestNotifyConnections(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		logger, logs := testutil.NewObservedLogger()
		session := testutil.NewFakeSession("s", testutil.NewCallLog(), &testutil.Loop{})

		assert.Nil(t, NewConnectionLogger(logger).NotifyConnections(session, false))
		assert.Nil(t, NewConnectionLogger(logger).NotifyConnections(nil, false))
		assert.Equal(t, 2, testutil.CountLevel(logs, zapcore.WarnLevel))
	})

	t.Run("labels", func(t *testing.T) {
		logger, logs := testutil.NewObservedLogger()
		session := testutil.NewFakeSession("s", testutil.NewCallLog(), &testutil.Loop{})
		session.SetConnected("own")
		session.SetConnections(&domain.Connection{ConnectionID: "own"})
		l := NewConnectionLogger(logger)

		assert.Len(t, l.NotifyConnections(session, false), 1)
		session.SetConnections()
		assert.Empty(t, l.NotifyConnections(session, true))

		assert.Equal(t, 1, logs.FilterMessage(LabelCurrentConnections).Len())
		assert.Equal(t, 1, logs.FilterMessage("No Disconnected Connections found.").Len())
	})
}

func TestLogSubscribers(t *testing.T) {
	logger, logs := testutil.NewObservedLogger()
	session := testutil.NewFakeSession("s", testutil.NewCallLog(), &testutil.Loop{})
	l := NewConnectionLogger(logger)

	assert.Nil(t, l.LogSubscribers(nil, session), "guarded on connectivity")
	assert.Equal(t, 1, testutil.CountLevel(logs, zapcore.WarnLevel))

	session.SetConnected("own")
	assert.Empty(t, l.LogSubscribers(nil, session))
	assert.Equal(t, 1, logs.FilterMessage("No active subscribers found.").Len())

	stream := &domain.Stream{StreamID: "st1", Name: "Agent camera", Connection: &domain.Connection{ConnectionID: "c9"}}
	records := l.LogSubscribers([]ports.Subscriber{
		&testutil.FakeSubscriber{SubscriberID: "sub-1", StreamRef: stream, Props: map[string]any{"audioVolume": 100}},
		&testutil.FakeSubscriber{SubscriberID: "sub-2"},
	}, session)

	require.Len(t, records, 2)
	assert.Equal(t, SubscriberRecord{
		SubscriberID: "sub-1",
		StreamID:     "st1",
		ConnectionID: "c9",
		StreamName:   "Agent camera",
		Properties:   map[string]any{"audioVolume": 100},
	}, records[0])
	assert.Equal(t, SubscriberRecord{
		SubscriberID: "sub-2",
		StreamID:     "Unknown",
		ConnectionID: "Unknown",
		StreamName:   "Unnamed Stream",
		Properties:   map[string]any{},
	}, records[1])
}
