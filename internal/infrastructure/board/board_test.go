package board

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"callbridge/internal/core/domain"
	"callbridge/internal/core/services"
	"callbridge/internal/infrastructure/hostevents"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBoard() (*Board, *hostevents.Target) {
	logger := zap.NewNop().Sugar()
	host := hostevents.NewTarget(logger)
	return New(host, logger), host
}

func TestDocument_StartsHidden(t *testing.T) {
	doc := NewDocument(StandardElementIDs...)
	snap := doc.Snapshot()

	require.Len(t, snap.Elements, len(StandardElementIDs))
	for _, el := range snap.Elements {
		assert.Equal(t, services.DisplayNone, el.Display, el.ID)
	}
	assert.Nil(t, doc.ElementByID("missing"))
	assert.Zero(t, snap.Version)
}

func TestDocument_ChangesBumpVersion(t *testing.T) {
	doc := NewDocument(StandardElementIDs...)
	var changes []Snapshot
	doc.OnChange(func(s Snapshot) { changes = append(changes, s) })

	el := doc.ElementByID(services.StatusMessageID)
	el.SetText("Reconnecting")
	el.SetText("Reconnecting")
	el.SetDisplay(services.DisplayBlock)
	doc.Body().Add("modal-open")
	doc.Body().Add("modal-open")
	doc.Body().Remove("absent")

	require.Len(t, changes, 3)
	last := changes[2]
	assert.Equal(t, uint64(3), last.Version)
	assert.Equal(t, []string{"modal-open"}, last.BodyClasses)
	assert.True(t, doc.Body().Contains("modal-open"))
	assert.Equal(t, "Reconnecting", el.Text())
	assert.Equal(t, services.DisplayBlock, el.Display())
}

func TestBoard_EndCall(t *testing.T) {
	b, _ := newTestBoard()
	assert.ErrorIs(t, b.TriggerEndCall(), ErrNoEndCall)
	assert.False(t, b.Document().Snapshot().EndCallAvailable)

	var calls int32
	b.InstallEndCall(func() { atomic.AddInt32(&calls, 1) })
	assert.True(t, b.Document().Snapshot().EndCallAvailable)
	require.NoError(t, b.TriggerEndCall())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	b.UninstallEndCall()
	assert.False(t, b.Document().Snapshot().EndCallAvailable)
	assert.ErrorIs(t, b.TriggerEndCall(), ErrNoEndCall)
}

func TestBoard_HandlePageMessage(t *testing.T) {
	b, host := newTestBoard()
	var visibility, unload int
	host.AddListener(domain.HostVisibilityChange, func() { visibility++ })
	host.AddListener(domain.HostBeforeUnload, func() { unload++ })

	hidden := true
	require.NoError(t, b.HandlePageMessage(PageMessage{Type: PageVisibility, Hidden: &hidden}))
	assert.True(t, host.Hidden())
	assert.Equal(t, 1, visibility)

	require.NoError(t, b.HandlePageMessage(PageMessage{Type: PageBeforeUnload}))
	assert.Equal(t, 1, unload)

	assert.Error(t, b.HandlePageMessage(PageMessage{Type: PageVisibility}))
	assert.Error(t, b.HandlePageMessage(PageMessage{Type: "scroll"}))
}

func TestHub_StreamsSnapshotsAndPageMessages(t *testing.T) {
	b, host := newTestBoard()
	server := httptest.NewServer(http.HandlerFunc(b.Hub().ServeWS))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var initial Snapshot
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Zero(t, initial.Version)

	require.Eventually(t, func() bool { return b.Hub().ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	b.Document().ElementByID(services.AlertTitleID).SetText("Offline")
	var update Snapshot
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, uint64(1), update.Version)
	for _, el := range update.Elements {
		if el.ID == services.AlertTitleID {
			assert.Equal(t, "Offline", el.Text)
		}
	}

	hidden := true
	require.NoError(t, conn.WriteJSON(PageMessage{Type: PageVisibility, Hidden: &hidden}))
	require.Eventually(t, host.Hidden, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return b.Hub().ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}
