package ports

import (
	"context"

	"callbridge/internal/core/domain"
)

// Platform is the low-code runtime's data API. Each call resolves through
// exactly one of its callbacks; implementations must not block the caller.
type Platform interface {
	Action(ctx context.Context, req domain.ActionRequest, onSuccess func(response any), onError func(error))
	// Get resolves with a nil entity when no object has the guid.
	Get(ctx context.Context, guid string, onSuccess func(*domain.Entity), onError func(error))
	Commit(ctx context.Context, entity *domain.Entity, onSuccess func(), onError func(error))
}
