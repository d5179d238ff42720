package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"forum-digest-relay/internal/domain"
)

type stubContent struct {
	post       domain.Post
	postErr    error
	topics     []domain.Topic
	topicsErr  error
	candidates []domain.Post

	findCalls    int
	lastSince    time.Time
	lastWhispers bool
	lastQuery    domain.FavoredQuery
	favoredCalls int
}

func (s *stubContent) FindPostByID(_ context.Context, id int64) (domain.Post, error) {
	s.findCalls++
	if s.postErr != nil {
		return domain.Post{}, s.postErr
	}
	return s.post, nil
}

func (s *stubContent) ListActivitySince(_ context.Context, since time.Time, includeWhispers bool) ([]domain.Topic, error) {
	s.lastSince = since
	s.lastWhispers = includeWhispers
	return s.topics, s.topicsErr
}

func (s *stubContent) ListCandidateFavoredPosts(_ context.Context, q domain.FavoredQuery) ([]domain.Post, error) {
	s.favoredCalls++
	s.lastQuery = q
	return s.candidates, nil
}

func TestPickFavoredTieBreak(t *testing.T) {
	content := &stubContent{candidates: []domain.Post{
		{ID: 1, LikeCount: 10},
		{ID: 2, LikeCount: 10},
		{ID: 3, LikeCount: 3},
	}}
	picker := NewPicker(content, PickerConfig{Author: "digest-bot", LikeThreshold: 4, SampleSize: 10})

	got := picker.PickFavored(context.Background(), time.Now(), zerolog.Nop())
	if got == nil {
		t.Fatalf("ожидали выбранный пост")
	}
	if got.ID != 1 {
		t.Fatalf("при равных лайках выигрывает первый в выборке, получили %d", got.ID)
	}
}

func TestPickFavoredBelowThreshold(t *testing.T) {
	content := &stubContent{candidates: []domain.Post{
		{ID: 1, LikeCount: 3},
		{ID: 2, LikeCount: 2},
	}}
	picker := NewPicker(content, PickerConfig{Author: "digest-bot", LikeThreshold: 4})

	if got := picker.PickFavored(context.Background(), time.Now(), zerolog.Nop()); got != nil {
		t.Fatalf("ниже порога пост не выбирается, получили %+v", got)
	}
}

func TestPickFavoredWithoutAuthor(t *testing.T) {
	content := &stubContent{candidates: []domain.Post{{ID: 1, LikeCount: 100}}}
	picker := NewPicker(content, PickerConfig{LikeThreshold: 1})

	if got := picker.PickFavored(context.Background(), time.Now(), zerolog.Nop()); got != nil {
		t.Fatalf("без настроенного аккаунта выбор выключен")
	}
	if content.favoredCalls != 0 {
		t.Fatalf("репозиторий не должен вызываться")
	}
}

func TestPickFavoredQueryWindow(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	content := &stubContent{}
	picker := NewPicker(content, PickerConfig{
		Author:        "digest-bot",
		Lookback:      29 * time.Hour,
		Grace:         time.Hour,
		MinLikes:      5,
		LikeThreshold: 10,
		SampleSize:    10,
	})

	picker.PickFavored(context.Background(), now, zerolog.Nop())

	q := content.lastQuery
	if !q.Since.Equal(now.Add(-29 * time.Hour)) {
		t.Fatalf("окно выборки: ожидали %v, получили %v", now.Add(-29*time.Hour), q.Since)
	}
	if !q.OlderThan.Equal(now.Add(-time.Hour)) {
		t.Fatalf("льготный период: ожидали %v, получили %v", now.Add(-time.Hour), q.OlderThan)
	}
	if q.MinLikes != 5 || q.Limit != 10 || q.Author != "digest-bot" {
		t.Fatalf("параметры выборки не совпали: %+v", q)
	}
}

func TestPickSpecialZeroID(t *testing.T) {
	content := &stubContent{post: domain.Post{ID: 42}}
	picker := NewPicker(content, PickerConfig{SpecialPostID: 0})

	if got := picker.PickSpecial(context.Background(), zerolog.Nop()); got != nil {
		t.Fatalf("нулевой id означает отсутствие закреплённого поста")
	}
	if content.findCalls != 0 {
		t.Fatalf("поиск не должен выполняться")
	}
}

func TestPickSpecialLookupMiss(t *testing.T) {
	content := &stubContent{postErr: domain.ErrPostNotFound}
	picker := NewPicker(content, PickerConfig{SpecialPostID: 42})

	if got := picker.PickSpecial(context.Background(), zerolog.Nop()); got != nil {
		t.Fatalf("несуществующий id — это просто запуск без закреплённого поста")
	}
}

func TestPickSpecialRepoError(t *testing.T) {
	content := &stubContent{postErr: errors.New("бд недоступна")}
	picker := NewPicker(content, PickerConfig{SpecialPostID: 42})

	if got := picker.PickSpecial(context.Background(), zerolog.Nop()); got != nil {
		t.Fatalf("сбой поиска не фатален и трактуется как отсутствие поста")
	}
}

func TestPickSpecialFound(t *testing.T) {
	content := &stubContent{post: domain.Post{ID: 42, AuthorUsername: "operator"}}
	picker := NewPicker(content, PickerConfig{SpecialPostID: 42})

	got := picker.PickSpecial(context.Background(), zerolog.Nop())
	if got == nil || got.ID != 42 {
		t.Fatalf("ожидали закреплённый пост 42, получили %+v", got)
	}
}
