package digest

import (
	"context"
	"fmt"
	"time"

	"forum-digest-relay/internal/domain"
)

// Builder собирает тело дайджеста для одного получателя. Чистое
// преобразование: побочных эффектов нет.
type Builder struct {
	content domain.ContentRepo
	baseURL string
}

// NewBuilder создаёт Builder.
func NewBuilder(content domain.ContentRepo, baseURL string) *Builder {
	return &Builder{content: content, baseURL: baseURL}
}

// SinceFor возвращает начало отчётного периода получателя. Период всегда
// равен настроенной частоте и не зависит от фактического last_digest_at.
func SinceFor(r domain.Recipient, now time.Time) time.Time {
	return now.Add(-time.Duration(r.CadenceMinutes) * time.Minute)
}

// Build собирает payload. Дополнительные посты вкладываются только если
// переданы: дедупликацию по получателю выполняет вызывающий.
func (b *Builder) Build(ctx context.Context, r domain.Recipient, since time.Time, special, favored *domain.Post) (domain.DigestPayload, error) {
	topics, err := b.content.ListActivitySince(ctx, since, r.Staff())
	if err != nil {
		return domain.DigestPayload{}, fmt.Errorf("активность получателя %d: %w", r.ID, err)
	}

	payload := domain.DigestPayload{
		Username:  r.Username,
		Email:     r.Email,
		Frequency: r.CadenceMinutes,
		Since:     since.UTC().Format(time.RFC3339),
		BaseURL:   b.baseURL,
		Activity:  make([]domain.TopicPayload, 0, len(topics)),
	}

	for _, t := range topics {
		tp := domain.TopicPayload{
			TopicName:          t.Title,
			TopicURL:           t.URL,
			TopicEmblemOrColor: t.EmblemColor,
			TopicCategories:    t.Categories,
			TopicTags:          t.Tags,
			Slug:               t.Slug,
			Posts:              make([]domain.PostPayload, 0, len(t.Posts)),
		}
		for _, post := range t.Posts {
			tp.Posts = append(tp.Posts, formatPost(post))
		}
		payload.Activity = append(payload.Activity, tp)
	}

	if special != nil {
		sp := formatPost(*special)
		payload.SpecialPost = &sp
	}
	if favored != nil {
		payload.FavoritePosts = []domain.FavoritePostPayload{{
			PostPayload: formatPost(*favored),
			TopicTitle:  favored.TopicTitle,
		}}
	}
	return payload, nil
}

func formatPost(post domain.Post) domain.PostPayload {
	return domain.PostPayload{
		Username:  post.AuthorUsername,
		URL:       post.URL,
		Avatar:    post.AvatarURL,
		Timestamp: post.CreatedAt.UTC().Format(time.RFC3339),
		Raw:       post.Raw,
		Cooked:    post.Cooked,
	}
}
