package services

import (
	"context"
	"errors"
	"testing"

	"callbridge/internal/core/domain"
	"callbridge/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) Action(ctx context.Context, req domain.ActionRequest, onSuccess func(any), onError func(error)) {
	m.Called(ctx, req, onSuccess, onError)
}

func (m *MockPlatform) Get(ctx context.Context, guid string, onSuccess func(*domain.Entity), onError func(error)) {
	m.Called(ctx, guid, onSuccess, onError)
}

func (m *MockPlatform) Commit(ctx context.Context, entity *domain.Entity, onSuccess func(), onError func(error)) {
	m.Called(ctx, entity, onSuccess, onError)
}

type callbackRecorder struct {
	successes int
	errs      []error
}

func (r *callbackRecorder) onSuccess()        { r.successes++ }
func (r *callbackRecorder) onError(err error) { r.errs = append(r.errs, err) }
func (r *callbackRecorder) total() int        { return r.successes + len(r.errs) }
func (r *callbackRecorder) lastErr() error    { return r.errs[len(r.errs)-1] }

func TestUpdateEntityAttribute_InvalidParameters(t *testing.T) {
	tests := []struct {
		name      string
		guid      string
		attribute string
		value     any
	}{
		{"missing guid", "", "IsOffline", true},
		{"missing attribute", "42", "", true},
		{"absent value", "42", "IsOffline", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform := new(MockPlatform)
			logger, logs := testutil.NewObservedLogger()
			bridge := NewPlatformBridge(platform, nil, logger)

			rec := &callbackRecorder{}
			bridge.UpdateEntityAttribute(tt.guid, tt.attribute, tt.value, rec.onSuccess, rec.onError)

			// Callbacks have already run: the rejection is synchronous.
			require.Equal(t, 1, rec.total())
			assert.Zero(t, rec.successes)
			assert.ErrorIs(t, rec.lastErr(), domain.ErrInvalidParameters)
			platform.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			platform.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			assert.Equal(t, 1, testutil.CountLevel(logs, zapcore.ErrorLevel))
		})
	}
}

func TestUpdateEntityAttribute_PlatformUnavailable(t *testing.T) {
	logger, logs := testutil.NewObservedLogger()
	metrics := testutil.NewMetrics()
	bridge := NewPlatformBridge(nil, metrics, logger)

	rec := &callbackRecorder{}
	bridge.UpdateEntityAttribute("42", "IsOffline", true, rec.onSuccess, rec.onError)

	require.Equal(t, 1, rec.total())
	assert.ErrorIs(t, rec.lastErr(), domain.ErrPlatformUnavailable)
	assert.NotErrorIs(t, rec.lastErr(), domain.ErrInvalidParameters)
	assert.Equal(t, 1, logs.FilterMessage("Platform is not available, entity not updated").Len())
}

func TestUpdateEntityAttribute_FalseIsNotAbsent(t *testing.T) {
	platform := testutil.NewFakePlatform(nil)
	platform.Put(domain.NewEntity("42", "VideoCall.Session"))
	logger, _ := testutil.NewObservedLogger()
	bridge := NewPlatformBridge(platform, nil, logger)

	rec := &callbackRecorder{}
	bridge.UpdateEntityAttribute("42", "IsOffline", false, rec.onSuccess, rec.onError)

	assert.Equal(t, 1, rec.successes)
	v, ok := platform.Entity("42").Get("IsOffline")
	require.True(t, ok)
	assert.Equal(t, false, v)
}

func TestUpdateEntityAttribute_SuccessAfterFetchAndCommit(t *testing.T) {
	platform := new(MockPlatform)
	entity := domain.NewEntity("42", "VideoCall.Session")
	var steps []string

	platform.On("Get", mock.Anything, "42", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			steps = append(steps, "get")
			args.Get(2).(func(*domain.Entity))(entity)
		}).Once()
	platform.On("Commit", mock.Anything, entity, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			steps = append(steps, "commit")
			args.Get(2).(func())()
		}).Once()

	logger, _ := testutil.NewObservedLogger()
	metrics := testutil.NewMetrics()
	bridge := NewPlatformBridge(platform, metrics, logger)

	rec := &callbackRecorder{}
	bridge.UpdateEntityAttribute("42", "IsOffline", true, func() {
		steps = append(steps, "success")
		rec.onSuccess()
	}, rec.onError)

	assert.Equal(t, []string{"get", "commit", "success"}, steps)
	assert.Equal(t, 1, rec.total())
	v, _ := entity.Get("IsOffline")
	assert.Equal(t, true, v)
	assert.Equal(t, 1, metrics.UpdateCount(ResultSuccess))
	platform.AssertExpectations(t)
}

func TestUpdateEntityAttribute_NotFound(t *testing.T) {
	platform := testutil.NewFakePlatform(nil)
	logger, _ := testutil.NewObservedLogger()
	bridge := NewPlatformBridge(platform, nil, logger)

	rec := &callbackRecorder{}
	bridge.UpdateEntityAttribute("missing", "IsOffline", true, rec.onSuccess, rec.onError)

	require.Equal(t, 1, rec.total())
	assert.ErrorIs(t, rec.lastErr(), domain.ErrObjectNotFound)
	assert.Equal(t, "Object not found", rec.lastErr().Error())
	assert.Zero(t, platform.Log.Count(testutil.CallCommit))
}

func TestUpdateEntityAttribute_RemoteErrors(t *testing.T) {
	fetchErr := errors.New("retrieve failed")
	commitErr := errors.New("commit rejected")

	t.Run("fetch", func(t *testing.T) {
		platform := testutil.NewFakePlatform(nil)
		platform.GetErr = fetchErr
		logger, _ := testutil.NewObservedLogger()

		rec := &callbackRecorder{}
		NewPlatformBridge(platform, nil, logger).UpdateEntityAttribute("42", "IsOffline", true, rec.onSuccess, rec.onError)

		require.Equal(t, 1, rec.total())
		assert.Equal(t, fetchErr, rec.lastErr())
	})

	t.Run("commit", func(t *testing.T) {
		platform := testutil.NewFakePlatform(nil)
		platform.Put(domain.NewEntity("42", ""))
		platform.CommitErr = commitErr
		logger, _ := testutil.NewObservedLogger()

		rec := &callbackRecorder{}
		NewPlatformBridge(platform, nil, logger).UpdateEntityAttribute("42", "IsOffline", true, rec.onSuccess, rec.onError)

		require.Equal(t, 1, rec.total())
		assert.Equal(t, commitErr, rec.lastErr())
	})
}

func TestUpdateEntityAttribute_SingleCallbackWithMisbehavingPlatform(t *testing.T) {
	platform := new(MockPlatform)
	entity := domain.NewEntity("42", "")
	platform.On("Get", mock.Anything, "42", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { args.Get(2).(func(*domain.Entity))(entity) })
	platform.On("Commit", mock.Anything, entity, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(2).(func())()
			args.Get(3).(func(error))(errors.New("late failure"))
			args.Get(2).(func())()
		})

	logger, _ := testutil.NewObservedLogger()
	rec := &callbackRecorder{}
	NewPlatformBridge(platform, nil, logger).UpdateEntityAttribute("42", "IsOffline", true, rec.onSuccess, rec.onError)

	assert.Equal(t, 1, rec.total())
	assert.Equal(t, 1, rec.successes)
}

func TestUpdateEntityAttribute_NilCallbacks(t *testing.T) {
	logger, _ := testutil.NewObservedLogger()
	bridge := NewPlatformBridge(testutil.NewFakePlatform(nil), nil, logger)

	assert.NotPanics(t, func() {
		bridge.UpdateEntityAttribute("", "", nil, nil, nil)
		bridge.UpdateEntityAttribute("42", "IsOffline", true, nil, nil)
	})
}

func TestTriggerWorkflowAction(t *testing.T) {
	t.Run("issues selection request", func(t *testing.T) {
		platform := testutil.NewFakePlatform(nil)
		logger, logs := testutil.NewObservedLogger()
		metrics := testutil.NewMetrics()

		NewPlatformBridge(platform, metrics, logger).
			TriggerWorkflowAction("VideoCall.ACT_EndCall", "42", domain.Origin("form-1"))

		require.Len(t, platform.Actions(), 1)
		assert.Equal(t, domain.ActionRequest{
			ActionName: "VideoCall.ACT_EndCall",
			ApplyTo:    domain.ApplyToSelection,
			GUIDs:      []string{"42"},
			Origin:     domain.Origin("form-1"),
		}, platform.Actions()[0])
		assert.Equal(t, 1, logs.FilterMessage("Workflow action executed").Len())
		assert.Equal(t, 1, metrics.Actions[ResultSuccess])
	})

	t.Run("missing parameters", func(t *testing.T) {
		for _, args := range [][2]string{{"", "42"}, {"VideoCall.ACT_EndCall", ""}} {
			platform := testutil.NewFakePlatform(nil)
			logger, logs := testutil.NewObservedLogger()

			NewPlatformBridge(platform, nil, logger).TriggerWorkflowAction(args[0], args[1], "")

			assert.Empty(t, platform.Actions())
			assert.Equal(t, 1, testutil.CountLevel(logs, zapcore.WarnLevel))
		}
	})

	t.Run("remote error is logged only", func(t *testing.T) {
		platform := testutil.NewFakePlatform(nil)
		platform.ActionErr = errors.New("microflow failed")
		logger, logs := testutil.NewObservedLogger()

		assert.NotPanics(t, func() {
			NewPlatformBridge(platform, nil, logger).TriggerWorkflowAction("VideoCall.ACT_EndCall", "42", "")
		})
		assert.Equal(t, 1, logs.FilterMessage("Workflow action failed").Len())
	})
}
