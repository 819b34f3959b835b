// Package redisstore implements the platform data API on Redis: entities are
// hashes and workflow actions are published on a pub/sub channel.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"callbridge/internal/core/domain"
	"callbridge/internal/infrastructure/distributed"
	apperrors "callbridge/pkg/errors"
	"callbridge/pkg/validation"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// entityNameField holds the entity type inside each hash.
const entityNameField = "__entity"

// RequestObserver receives the outcome and duration of every operation.
type RequestObserver interface {
	RecordPlatformRequest(operation, result string, duration time.Duration)
}

type Store struct {
	client    *redis.Client
	bus       *distributed.EventBus
	keyPrefix string
	observer  RequestObserver
	logger    *zap.SugaredLogger
	wg        sync.WaitGroup
}

func NewStore(client *redis.Client, bus *distributed.EventBus, keyPrefix string, observer RequestObserver, logger *zap.SugaredLogger) *Store {
	return &Store{
		client:    client,
		bus:       bus,
		keyPrefix: keyPrefix,
		observer:  observer,
		logger:    logger,
	}
}

// Close waits for in-flight operations to resolve.
func (s *Store) Close() {
	s.wg.Wait()
}

func (s *Store) key(guid string) string {
	return s.keyPrefix + guid
}

func (s *Store) Action(ctx context.Context, req domain.ActionRequest, onSuccess func(any), onError func(error)) {
	s.async(ctx, "action", func(ctx context.Context) (string, error) {
		receivers, err := s.bus.PublishAction(ctx, req)
		if err != nil {
			onError(err)
			return "error", err
		}
		onSuccess(map[string]any{"receivers": receivers})
		return "success", nil
	})
}

func (s *Store) Get(ctx context.Context, guid string, onSuccess func(*domain.Entity), onError func(error)) {
	s.async(ctx, "get", func(ctx context.Context) (string, error) {
		if err := validation.ValidateGUID(guid); err != nil {
			onError(apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, "invalid guid", http.StatusBadRequest))
			return "invalid", err
		}
		fields, err := s.client.HGetAll(ctx, s.key(guid)).Result()
		if err != nil {
			err = fmt.Errorf("failed to load entity %s: %w", guid, err)
			onError(err)
			return "error", err
		}
		if len(fields) == 0 {
			onSuccess(nil)
			return "not_found", nil
		}
		entity, err := DecodeEntity(guid, fields)
		if err != nil {
			onError(err)
			return "error", err
		}
		onSuccess(entity)
		return "success", nil
	})
}

func (s *Store) Commit(ctx context.Context, entity *domain.Entity, onSuccess func(), onError func(error)) {
	s.async(ctx, "commit", func(ctx context.Context) (string, error) {
		if entity == nil {
			err := apperrors.NewInvalidInputError("entity is required")
			onError(err)
			return "invalid", err
		}
		fields, err := EncodeEntity(entity)
		if err != nil {
			onError(err)
			return "error", err
		}
		_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.key(entity.GUID), fields)
			return nil
		})
		if err != nil {
			err = fmt.Errorf("failed to commit entity %s: %w", entity.GUID, err)
			onError(err)
			return "error", err
		}
		onSuccess()
		return "success", nil
	})
}

func (s *Store) async(ctx context.Context, operation string, fn func(ctx context.Context) (string, error)) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		start := time.Now()
		result, err := fn(ctx)
		if s.observer != nil {
			s.observer.RecordPlatformRequest(operation, result, time.Since(start))
		}
		if err != nil {
			s.logger.Warnw("Platform store operation failed", "operation", operation, "error", err)
		}
	}()
}

// EncodeEntity flattens an entity into hash fields. Attribute values are
// stored as JSON so their types survive the round trip.
func EncodeEntity(entity *domain.Entity) (map[string]any, error) {
	if err := validation.ValidateGUID(entity.GUID); err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, "invalid guid", http.StatusBadRequest)
	}
	fields := make(map[string]any, len(entity.Attributes)+1)
	if entity.EntityName != "" {
		fields[entityNameField] = entity.EntityName
	}
	for name, value := range entity.Attributes {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode attribute %s: %w", name, err)
		}
		fields[name] = string(raw)
	}
	if len(fields) == 0 {
		return nil, apperrors.NewInvalidInputError("entity has no attributes to commit")
	}
	return fields, nil
}

// DecodeEntity rebuilds an entity from its hash fields. Values that are not
// valid JSON are kept as plain strings.
func DecodeEntity(guid string, fields map[string]string) (*domain.Entity, error) {
	entity := domain.NewEntity(guid, fields[entityNameField])
	for name, raw := range fields {
		if name == entityNameField {
			continue
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		entity.Set(name, value)
	}
	return entity, nil
}
