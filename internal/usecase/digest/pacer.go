package digest

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"forum-digest-relay/internal/domain"
)

// IntervalPacer выдерживает фиксированную паузу между получателями.
type IntervalPacer struct {
	limiter *rate.Limiter
}

var _ domain.Pacer = (*IntervalPacer)(nil)

// NewIntervalPacer создаёт пейсер с указанным интервалом. Нулевой или
// отрицательный интервал отключает паузы.
func NewIntervalPacer(delay time.Duration) *IntervalPacer {
	if delay <= 0 {
		return &IntervalPacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &IntervalPacer{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait блокирует до следующего слота либо до отмены контекста.
func (p *IntervalPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
