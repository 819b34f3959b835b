package services

import (
	"testing"

	"callbridge/internal/testutil"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func newAlertDocument() *testutil.Document {
	return testutil.NewDocument(AlertTitleID, AlertMessageID, AlertContainerID, AlertOverlayID, StatusMessageID)
}

func TestAlertNotifier_ShowThenHideRestoresHidden(t *testing.T) {
	doc := newAlertDocument()
	logger, _ := testutil.NewObservedLogger()
	n := NewAlertNotifier(doc, logger)

	before := [2]string{doc.Element(AlertContainerID).Display(), doc.Element(AlertOverlayID).Display()}

	n.ShowStatus("Reconnecting", "Reconnecting to the video session. Please wait.")
	assert.Equal(t, DisplayBlock, doc.Element(AlertContainerID).Display())
	assert.Equal(t, DisplayBlock, doc.Element(AlertOverlayID).Display())
	assert.Equal(t, "Reconnecting", doc.Element(AlertTitleID).Text())
	assert.Equal(t, "Reconnecting to the video session. Please wait.", doc.Element(AlertMessageID).Text())

	n.HideStatus()
	after := [2]string{doc.Element(AlertContainerID).Display(), doc.Element(AlertOverlayID).Display()}
	assert.Equal(t, before, after)
	assert.Equal(t, [2]string{DisplayNone, DisplayNone}, after)
}

func TestAlertNotifier_Idempotent(t *testing.T) {
	doc := newAlertDocument()
	logger, _ := testutil.NewObservedLogger()
	n := NewAlertNotifier(doc, logger)

	n.ShowStatus("Error", "first")
	n.ShowStatus("Error", "second")
	assert.Equal(t, DisplayBlock, doc.Element(AlertContainerID).Display())
	assert.Equal(t, "second", doc.Element(AlertMessageID).Text())

	n.HideStatus()
	n.HideStatus()
	assert.Equal(t, DisplayNone, doc.Element(AlertContainerID).Display())
	assert.Equal(t, DisplayNone, doc.Element(AlertOverlayID).Display())
}

func TestAlertNotifier_MissingContainers(t *testing.T) {
	doc := testutil.NewDocument(AlertTitleID, AlertMessageID, AlertContainerID)
	logger, logs := testutil.NewObservedLogger()
	n := NewAlertNotifier(doc, logger)

	n.ShowStatus("Error", "unavailable")
	n.HideStatus()

	assert.Equal(t, DisplayNone, doc.Element(AlertContainerID).Display())
	assert.Empty(t, doc.Element(AlertTitleID).Text(), "no partial update when the overlay is missing")
	assert.Equal(t, 2, testutil.CountLevel(logs, zapcore.ErrorLevel))
}

func TestAlertNotifier_OptionalTextElements(t *testing.T) {
	doc := testutil.NewDocument(AlertContainerID, AlertOverlayID)
	logger, logs := testutil.NewObservedLogger()

	NewAlertNotifier(doc, logger).ShowStatus("Error", "unavailable")

	assert.Equal(t, DisplayBlock, doc.Element(AlertContainerID).Display())
	assert.Zero(t, testutil.CountLevel(logs, zapcore.ErrorLevel))
}

func TestAlertNotifier_OfflineMarkers(t *testing.T) {
	doc := newAlertDocument()
	logger, _ := testutil.NewObservedLogger()
	n := NewAlertNotifier(doc, logger)

	n.MarkOffline(StatusOffline)
	assert.True(t, doc.Body().Contains(OfflineClass))
	assert.Equal(t, StatusOffline, doc.Element(StatusMessageID).Text())

	n.MarkOnline(StatusOnline)
	assert.False(t, doc.Body().Contains(OfflineClass))
	assert.Equal(t, StatusOnline, doc.Element(StatusMessageID).Text())
}

func TestAlertNotifier_OfflineWithoutStatusElement(t *testing.T) {
	doc := testutil.NewDocument()
	logger, _ := testutil.NewObservedLogger()

	NewAlertNotifier(doc, logger).MarkOffline(StatusReconnecting)

	assert.True(t, doc.Body().Contains(OfflineClass))
}
