package domain

import (
	"context"
	"errors"
	"time"
)

// ErrPostNotFound возвращается, если пост не найден в хранилище контента.
var ErrPostNotFound = errors.New("пост не найден")

// RecipientRepo читает каталог получателей и пишет отметку последней рассылки.
type RecipientRepo interface {
	// ListDigestCandidates возвращает активных получателей с включённой подпиской.
	// Итоговую проверку права на рассылку выполняет Recipient.EligibleAt.
	ListDigestCandidates(ctx context.Context) ([]Recipient, error)
	UpdateLastDigestAt(ctx context.Context, recipientID int64, at time.Time) error
}

// DeliveryStateRepo хранит маркеры дедупликации дополнительных постов.
type DeliveryStateRepo interface {
	// GetDeliveryState возвращает нулевое состояние, если записи ещё нет.
	GetDeliveryState(ctx context.Context, recipientID int64) (DeliveryState, error)
	SaveDeliveryState(ctx context.Context, state DeliveryState) error
}

// FavoredQuery описывает выборку кандидатов на любимый пост периода.
type FavoredQuery struct {
	Author    string
	Since     time.Time
	OlderThan time.Time
	MinLikes  int
	Limit     int
}

// ContentRepo читает темы и посты из хранилища контента.
type ContentRepo interface {
	FindPostByID(ctx context.Context, id int64) (Post, error)
	// ListActivitySince возвращает темы, в которых есть посты новее since.
	// Служебные посты попадают в выборку только при includeWhispers.
	ListActivitySince(ctx context.Context, since time.Time, includeWhispers bool) ([]Topic, error)
	// ListCandidateFavoredPosts возвращает кандидатов по убыванию числа лайков.
	ListCandidateFavoredPosts(ctx context.Context, q FavoredQuery) ([]Post, error)
}

// Lease — выданная блокировка запуска.
type Lease struct {
	Key   string
	Token string
}

// RunLock гарантирует единственный активный запуск. Блокировка самоистекает
// по validity, поэтому упавший запуск не блокирует последующие навсегда.
type RunLock interface {
	TryAcquire(ctx context.Context, key string, validity time.Duration) (Lease, bool, error)
	Release(ctx context.Context, lease Lease) error
}

// Pacer задаёт паузу между получателями внутри одного запуска.
type Pacer interface {
	Wait(ctx context.Context) error
}

// DeliveryClient отправляет собранный дайджест внешнему сервису доставки.
type DeliveryClient interface {
	Send(ctx context.Context, payload DigestPayload) error
}
