package digest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"forum-digest-relay/internal/domain"
)

// PickerConfig задаёт параметры выбора дополнительных постов.
type PickerConfig struct {
	SpecialPostID int64
	Author        string
	Lookback      time.Duration
	Grace         time.Duration
	MinLikes      int
	LikeThreshold int
	SampleSize    int
}

// Picker выбирает общие для запуска дополнительные посты: закреплённый
// оператором и самый залайканный за скользящее окно.
type Picker struct {
	content domain.ContentRepo
	cfg     PickerConfig
}

// NewPicker создаёт Picker.
func NewPicker(content domain.ContentRepo, cfg PickerConfig) *Picker {
	return &Picker{content: content, cfg: cfg}
}

// PickSpecial возвращает закреплённый пост либо nil. Любой сбой поиска
// трактуется как отсутствие поста, а не как ошибка запуска.
func (p *Picker) PickSpecial(ctx context.Context, logger zerolog.Logger) *domain.Post {
	if p.cfg.SpecialPostID <= 0 {
		return nil
	}
	post, err := p.content.FindPostByID(ctx, p.cfg.SpecialPostID)
	if err != nil {
		if !errors.Is(err, domain.ErrPostNotFound) {
			logger.Error().Err(err).Int64("post_id", p.cfg.SpecialPostID).Msg("поиск закреплённого поста не удался")
		}
		return nil
	}
	return &post
}

// PickFavored возвращает самый залайканный пост окна либо nil, если ни один
// кандидат не добирает порога. При равенстве лайков выигрывает первый в
// устойчивом порядке выборки.
func (p *Picker) PickFavored(ctx context.Context, now time.Time, logger zerolog.Logger) *domain.Post {
	if p.cfg.Author == "" {
		return nil
	}
	candidates, err := p.content.ListCandidateFavoredPosts(ctx, domain.FavoredQuery{
		Author:    p.cfg.Author,
		Since:     now.Add(-p.cfg.Lookback),
		OlderThan: now.Add(-p.cfg.Grace),
		MinLikes:  p.cfg.MinLikes,
		Limit:     p.cfg.SampleSize,
	})
	if err != nil {
		logger.Error().Err(err).Msg("выборка кандидатов на любимый пост не удалась")
		return nil
	}

	var best *domain.Post
	for i := range candidates {
		if best == nil || candidates[i].LikeCount > best.LikeCount {
			best = &candidates[i]
		}
	}
	if best == nil || best.LikeCount < p.cfg.LikeThreshold {
		return nil
	}
	return best
}
