package domain

// DigestPayload — тело запроса к внешнему сервису доставки.
type DigestPayload struct {
	Username      string                `json:"username"`
	Email         string                `json:"email"`
	Frequency     int                   `json:"frequency"`
	Since         string                `json:"since"`
	BaseURL       string                `json:"base_url"`
	Activity      []TopicPayload        `json:"activity"`
	SpecialPost   *PostPayload          `json:"special_post,omitempty"`
	FavoritePosts []FavoritePostPayload `json:"favorite_posts,omitempty"`
}

// TopicPayload — тема с вложенными постами в том виде, в котором её ждёт доставка.
type TopicPayload struct {
	TopicName          string        `json:"topic_name"`
	TopicURL           string        `json:"topic_url"`
	TopicEmblemOrColor string        `json:"topic_emblem_or_color"`
	TopicCategories    []string      `json:"topic_categories"`
	TopicTags          []string      `json:"topic_tags"`
	Slug               string        `json:"slug"`
	Posts              []PostPayload `json:"posts"`
}

// PostPayload — единый формат поста внутри payload.
type PostPayload struct {
	Username  string `json:"username"`
	URL       string `json:"url"`
	Avatar    string `json:"avatar"`
	Timestamp string `json:"timestamp"`
	Raw       string `json:"raw"`
	Cooked    string `json:"cooked"`
}

// FavoritePostPayload дополняет пост заголовком родительской темы.
type FavoritePostPayload struct {
	PostPayload
	TopicTitle string `json:"topic_title"`
}
