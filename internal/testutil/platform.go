package testutil

import (
	"context"
	"sync"

	"callbridge/internal/core/domain"
)

const (
	CallAction = "platform.action"
	CallGet    = "platform.get"
	CallCommit = "platform.commit"
)

// FakePlatform implements ports.Platform over an in-memory entity map and
// resolves every call synchronously.
type FakePlatform struct {
	Log *CallLog

	ActionErr error
	GetErr    error
	CommitErr error

	mu        sync.Mutex
	entities  map[string]*domain.Entity
	actions   []domain.ActionRequest
	committed []*domain.Entity
}

func NewFakePlatform(log *CallLog) *FakePlatform {
	if log == nil {
		log = NewCallLog()
	}
	return &FakePlatform{Log: log, entities: make(map[string]*domain.Entity)}
}

func (p *FakePlatform) Put(entity *domain.Entity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entities[entity.GUID] = entity
}

func (p *FakePlatform) Entity(guid string) *domain.Entity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entities[guid]
}

func (p *FakePlatform) Action(ctx context.Context, req domain.ActionRequest, onSuccess func(any), onError func(error)) {
	p.Log.Record(CallAction)
	p.mu.Lock()
	p.actions = append(p.actions, req)
	err := p.ActionErr
	p.mu.Unlock()

	if err != nil {
		onError(err)
		return
	}
	onSuccess(nil)
}

func (p *FakePlatform) Get(ctx context.Context, guid string, onSuccess func(*domain.Entity), onError func(error)) {
	p.Log.Record(CallGet)
	p.mu.Lock()
	err := p.GetErr
	entity := p.entities[guid]
	p.mu.Unlock()

	if err != nil {
		onError(err)
		return
	}
	onSuccess(entity)
}

func (p *FakePlatform) Commit(ctx context.Context, entity *domain.Entity, onSuccess func(), onError func(error)) {
	p.Log.Record(CallCommit)
	p.mu.Lock()
	err := p.CommitErr
	if err == nil {
		p.entities[entity.GUID] = entity
		p.committed = append(p.committed, entity)
	}
	p.mu.Unlock()

	if err != nil {
		onError(err)
		return
	}
	onSuccess()
}

func (p *FakePlatform) Actions() []domain.ActionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ActionRequest(nil), p.actions...)
}

func (p *FakePlatform) Committed() []*domain.Entity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.Entity(nil), p.committed...)
}
