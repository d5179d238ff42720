package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"forum-digest-relay/internal/domain"
	"forum-digest-relay/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.RecipientRepo     = (*Postgres)(nil)
	_ domain.DeliveryStateRepo = (*Postgres)(nil)
	_ domain.ContentRepo       = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// ListDigestCandidates реализует domain.RecipientRepo.
// Грубый фильтр выполняется в SQL, точную проверку делает Recipient.EligibleAt.
func (p *Postgres) ListDigestCandidates(ctx context.Context) ([]domain.Recipient, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, username, email, digest_minutes, last_digest_at, admin, moderator, approved, suspended, activated, staged, email_digests, bounce_score
FROM recipients
WHERE email_digests AND activated AND NOT staged AND NOT suspended AND id > 0
ORDER BY id
`)
	metrics.ObserveNetworkRequest("postgres", "recipients_list_candidates", "recipients", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка кандидатов: %w", err)
	}
	defer rows.Close()

	var recipients []domain.Recipient
	for rows.Next() {
		var r domain.Recipient
		var lastDigest sql.NullTime
		if err := rows.Scan(&r.ID, &r.Username, &r.Email, &r.CadenceMinutes, &lastDigest, &r.Admin, &r.Moderator, &r.Approved, &r.Suspended, &r.Activated, &r.Staged, &r.EmailDigests, &r.BounceScore); err != nil {
			return nil, err
		}
		if lastDigest.Valid {
			ts := lastDigest.Time
			r.LastDigestAt = &ts
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}

// UpdateLastDigestAt реализует domain.RecipientRepo.
func (p *Postgres) UpdateLastDigestAt(ctx context.Context, recipientID int64, at time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE recipients SET last_digest_at = $2 WHERE id = $1
`, recipientID, at)
	metrics.ObserveNetworkRequest("postgres", "recipients_update_last_digest", "recipients", start, err)
	if err != nil {
		return fmt.Errorf("обновление last_digest_at: %w", err)
	}
	return nil
}

// GetDeliveryState реализует domain.DeliveryStateRepo.
func (p *Postgres) GetDeliveryState(ctx context.Context, recipientID int64) (domain.DeliveryState, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	state := domain.DeliveryState{RecipientID: recipientID}
	var special, favored sql.NullInt64

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT last_special_post_id, last_favored_post_id
FROM digest_delivery_state WHERE recipient_id = $1
`, recipientID).Scan(&special, &favored)
	metrics.ObserveNetworkRequest("postgres", "delivery_state_get", "digest_delivery_state", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return domain.DeliveryState{}, fmt.Errorf("чтение состояния доставки: %w", err)
	}
	if special.Valid {
		id := special.Int64
		state.LastSpecialPostID = &id
	}
	if favored.Valid {
		id := favored.Int64
		state.LastFavoredPostID = &id
	}
	return state, nil
}

// SaveDeliveryState реализует domain.DeliveryStateRepo.
func (p *Postgres) SaveDeliveryState(ctx context.Context, state domain.DeliveryState) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var special, favored sql.NullInt64
	if state.LastSpecialPostID != nil {
		special = sql.NullInt64{Int64: *state.LastSpecialPostID, Valid: true}
	}
	if state.LastFavoredPostID != nil {
		favored = sql.NullInt64{Int64: *state.LastFavoredPostID, Valid: true}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO digest_delivery_state (recipient_id, last_special_post_id, last_favored_post_id, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (recipient_id) DO UPDATE SET
	last_special_post_id = EXCLUDED.last_special_post_id,
	last_favored_post_id = EXCLUDED.last_favored_post_id,
	updated_at = now()
`, state.RecipientID, special, favored)
	metrics.ObserveNetworkRequest("postgres", "delivery_state_save", "digest_delivery_state", start, err)
	if err != nil {
		return fmt.Errorf("сохранение состояния доставки: %w", err)
	}
	return nil
}

// FindPostByID реализует domain.ContentRepo.
func (p *Postgres) FindPostByID(ctx context.Context, id int64) (domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var post domain.Post
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT p.id, p.topic_id, t.title, p.author_username, p.url, p.avatar_url, p.created_at, p.raw, p.cooked, p.like_count
FROM posts p
JOIN topics t ON t.id = p.topic_id
WHERE p.id = $1 AND NOT p.deleted AND NOT p.hidden
`, id).Scan(&post.ID, &post.TopicID, &post.TopicTitle, &post.AuthorUsername, &post.URL, &post.AvatarURL, &post.CreatedAt, &post.Raw, &post.Cooked, &post.LikeCount)
	metrics.ObserveNetworkRequest("postgres", "posts_find_by_id", "posts", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Post{}, domain.ErrPostNotFound
	}
	if err != nil {
		return domain.Post{}, fmt.Errorf("поиск поста %d: %w", id, err)
	}
	return post, nil
}

// ListActivitySince реализует domain.ContentRepo. Темы возвращаются вместе
// с постами новее since, в устойчивом порядке (по теме, затем по номеру поста).
func (p *Postgres) ListActivitySince(ctx context.Context, since time.Time, includeWhispers bool) ([]domain.Topic, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT t.id, t.title, t.url, t.slug, t.emblem_color, t.category_names, t.tag_names,
	p.id, p.author_username, p.url, p.avatar_url, p.created_at, p.raw, p.cooked, p.like_count
FROM topics t
JOIN posts p ON p.topic_id = t.id
WHERE p.created_at > $1
	AND NOT p.deleted AND NOT p.hidden
	AND ($2 OR p.post_type <> 4)
ORDER BY t.id, p.post_number
`, since, includeWhispers)
	metrics.ObserveNetworkRequest("postgres", "topics_list_activity", "topics", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка активности: %w", err)
	}
	defer rows.Close()

	var topics []domain.Topic
	byID := make(map[int64]int)
	for rows.Next() {
		var t domain.Topic
		var post domain.Post
		if err := rows.Scan(&t.ID, &t.Title, &t.URL, &t.Slug, &t.EmblemColor, &t.Categories, &t.Tags,
			&post.ID, &post.AuthorUsername, &post.URL, &post.AvatarURL, &post.CreatedAt, &post.Raw, &post.Cooked, &post.LikeCount); err != nil {
			return nil, err
		}
		post.TopicID = t.ID
		post.TopicTitle = t.Title
		idx, ok := byID[t.ID]
		if !ok {
			idx = len(topics)
			byID[t.ID] = idx
			topics = append(topics, t)
		}
		topics[idx].Posts = append(topics[idx].Posts, post)
	}
	return topics, rows.Err()
}

// ListCandidateFavoredPosts реализует domain.ContentRepo. Кандидаты берутся
// из тем, видимых в почтовой ленте указанного аккаунта, без первых постов тем
// и без скрытых или удалённых постов.
func (p *Postgres) ListCandidateFavoredPosts(ctx context.Context, q domain.FavoredQuery) ([]domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT p.id, p.topic_id, t.title, p.author_username, p.url, p.avatar_url, p.created_at, p.raw, p.cooked, p.like_count
FROM posts p
JOIN topics t ON t.id = p.topic_id
WHERE p.created_at > $1 AND p.created_at < $2
	AND p.post_type = 1
	AND NOT p.deleted AND NOT p.hidden AND NOT p.user_deleted
	AND p.post_number > 1
	AND p.like_count > $3
	AND EXISTS (
		SELECT 1 FROM mailing_list_topics m
		WHERE m.topic_id = t.id AND m.username = $4
	)
ORDER BY p.like_count DESC, p.created_at
LIMIT $5
`, q.Since, q.OlderThan, q.MinLikes, q.Author, q.Limit)
	metrics.ObserveNetworkRequest("postgres", "posts_list_favored_candidates", "posts", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка кандидатов на любимый пост: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var post domain.Post
		if err := rows.Scan(&post.ID, &post.TopicID, &post.TopicTitle, &post.AuthorUsername, &post.URL, &post.AvatarURL, &post.CreatedAt, &post.Raw, &post.Cooked, &post.LikeCount); err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}
