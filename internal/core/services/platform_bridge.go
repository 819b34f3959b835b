package services

import (
	"context"
	"sync"

	"callbridge/internal/core/domain"
	"callbridge/internal/core/ports"

	"go.uber.org/zap"
)

// PlatformBridge triggers workflow actions and persists entity attributes
// through the host platform's data API.
type PlatformBridge struct {
	platform ports.Platform
	metrics  ports.CallMetrics
	logger   *zap.SugaredLogger
}

func NewPlatformBridge(platform ports.Platform, metrics ports.CallMetrics, logger *zap.SugaredLogger) *PlatformBridge {
	return &PlatformBridge{
		platform: platform,
		metrics:  metricsOrNoop(metrics),
		logger:   logger,
	}
}

// TriggerWorkflowAction fires the named action for a single entity and returns
// immediately. The outcome is only logged.
func (b *PlatformBridge) TriggerWorkflowAction(actionName, entityGUID string, origin domain.Origin) {
	if actionName == "" || entityGUID == "" {
		b.logger.Warnw("Workflow action or entity GUID missing, action not triggered",
			"action", actionName,
			"guid", entityGUID,
		)
		b.metrics.WorkflowActionTriggered(actionName, ResultSkipped)
		return
	}
	if b.platform == nil {
		b.logger.Errorw("Platform is not available, action not triggered", "action", actionName)
		b.metrics.WorkflowActionTriggered(actionName, ResultError)
		return
	}

	req := domain.ActionRequest{
		ActionName: actionName,
		ApplyTo:    domain.ApplyToSelection,
		GUIDs:      []string{entityGUID},
		Origin:     origin,
	}

	b.platform.Action(context.Background(), req,
		func(response any) {
			b.logger.Infow("Workflow action executed", "action", actionName, "guid", entityGUID, "response", response)
			b.metrics.WorkflowActionTriggered(actionName, ResultSuccess)
		},
		func(err error) {
			b.logger.Errorw("Workflow action failed", "action", actionName, "guid", entityGUID, "error", err)
			b.metrics.WorkflowActionTriggered(actionName, ResultError)
		},
	)
}

// UpdateEntityAttribute fetches the entity, sets the attribute and commits it.
// A nil value is treated as absent. Exactly one of onSuccess or onError runs
// per call; invalid parameters are rejected synchronously without contacting
// the platform.
func (b *PlatformBridge) UpdateEntityAttribute(guid, attributeName string, value any, onSuccess func(), onError func(error)) {
	var once sync.Once
	succeed := func() {
		once.Do(func() {
			b.metrics.EntityUpdated(ResultSuccess)
			if onSuccess != nil {
				onSuccess()
			}
		})
	}
	fail := func(result string, err error) {
		once.Do(func() {
			b.metrics.EntityUpdated(result)
			if onError != nil {
				onError(err)
			}
		})
	}

	if guid == "" || attributeName == "" || value == nil {
		b.logger.Errorw("Invalid parameters for entity update",
			"guid", guid,
			"attribute", attributeName,
			"value", value,
		)
		fail(ResultInvalid, domain.ErrInvalidParameters)
		return
	}
	if b.platform == nil {
		b.logger.Errorw("Platform is not available, entity not updated", "guid", guid)
		fail(ResultError, domain.ErrPlatformUnavailable)
		return
	}

	ctx := context.Background()
	b.platform.Get(ctx, guid,
		func(entity *domain.Entity) {
			if entity == nil {
				b.logger.Errorw("Object not found", "guid", guid)
				fail(ResultNotFound, domain.ErrObjectNotFound)
				return
			}

			entity.Set(attributeName, value)
			b.platform.Commit(ctx, entity,
				func() {
					b.logger.Infow("Entity attribute committed", "guid", guid, "attribute", attributeName, "value", value)
					succeed()
				},
				func(err error) {
					b.logger.Errorw("Entity commit failed", "guid", guid, "attribute", attributeName, "error", err)
					fail(ResultError, err)
				},
			)
		},
		func(err error) {
			b.logger.Errorw("Entity retrieval failed", "guid", guid, "error", err)
			fail(ResultError, err)
		},
	)
}
