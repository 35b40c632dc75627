package service

import (
	"context"

	apperrors "go-ticket-reservation/pkg/app_errors"
)

// ActorIDContextKey 認證 middleware 放入 context 的 actor id 鍵
const ActorIDContextKey = "actor_id"

// IdentityProvider 提供目前操作者的穩定識別；取不到時整個 reservation 流程立即中止
type IdentityProvider interface {
	CurrentActorID(ctx context.Context) (string, error)
}

// ContextIdentityProvider 從請求 context 讀取 middleware 寫入的 actor id
type ContextIdentityProvider struct{}

func NewContextIdentityProvider() IdentityProvider {
	return &ContextIdentityProvider{}
}

func (p *ContextIdentityProvider) CurrentActorID(ctx context.Context) (string, error) {
	value := ctx.Value(ActorIDContextKey)
	actorID, ok := value.(string)
	if !ok || actorID == "" {
		return "", apperrors.ErrUnauthenticated
	}
	return actorID, nil
}

// StaticIdentityProvider 固定回傳同一個 actor id，供測試使用
type StaticIdentityProvider struct {
	ActorID string
}

func (p *StaticIdentityProvider) CurrentActorID(ctx context.Context) (string, error) {
	if p.ActorID == "" {
		return "", apperrors.ErrUnauthenticated
	}
	return p.ActorID, nil
}
