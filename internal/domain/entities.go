package domain

import "time"

// EpochFloor — нижняя граница last_digest_at: получатели без единой рассылки
// считаются просроченными при любой частоте.
var EpochFloor = time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)

// Recipient описывает получателя дайджеста из внешнего каталога пользователей.
type Recipient struct {
	ID             int64
	Username       string
	Email          string
	CadenceMinutes int
	LastDigestAt   *time.Time
	Admin          bool
	Moderator      bool
	Approved       bool
	Suspended      bool
	Activated      bool
	Staged         bool
	EmailDigests   bool
	BounceScore    float64
}

// Staff сообщает, имеет ли получатель служебную роль.
func (r Recipient) Staff() bool {
	return r.Admin || r.Moderator
}

// EligibleAt проверяет, подлежит ли получатель рассылке в момент now.
// Системные аккаунты имеют неположительные идентификаторы.
func (r Recipient) EligibleAt(now time.Time, bounceThreshold float64, mustApprove bool) bool {
	if r.ID <= 0 || r.Suspended || !r.Activated || r.Staged {
		return false
	}
	if !r.EmailDigests {
		return false
	}
	if r.BounceScore >= bounceThreshold {
		return false
	}
	if mustApprove && !r.Approved && !r.Staff() {
		return false
	}
	last := EpochFloor
	if r.LastDigestAt != nil {
		last = *r.LastDigestAt
	}
	return now.Sub(last) >= time.Duration(r.CadenceMinutes)*time.Minute
}

// Topic представляет тему форума с постами за отчётный период.
type Topic struct {
	ID          int64
	Title       string
	URL         string
	Slug        string
	EmblemColor string
	Categories  []string
	Tags        []string
	Posts       []Post
}

// Post представляет отдельный пост темы.
type Post struct {
	ID             int64
	TopicID        int64
	TopicTitle     string
	AuthorUsername string
	URL            string
	AvatarURL      string
	CreatedAt      time.Time
	Raw            string
	Cooked         string
	LikeCount      int
}

// DeliveryState хранит маркеры дедупликации дополнительных постов получателя.
// Нулевые указатели означают, что соответствующий пост ещё не отправлялся.
type DeliveryState struct {
	RecipientID       int64
	LastSpecialPostID *int64
	LastFavoredPostID *int64
}
