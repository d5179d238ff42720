package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервиса рассылки дайджестов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Digest struct {
		Enabled      bool          `envconfig:"DIGEST_ENABLED" default:"true"`
		PrivateEmail bool          `envconfig:"PRIVATE_EMAIL" default:"false"`
		Endpoint     string        `envconfig:"DIGEST_ENDPOINT"`
		BaseURL      string        `envconfig:"BASE_URL"`
		Schedule     string        `envconfig:"DIGEST_SCHEDULE" default:"*/30 * * * *"`
		PacingDelay  time.Duration `envconfig:"DIGEST_PACING_DELAY" default:"3s"`
		LockValidity time.Duration `envconfig:"DIGEST_LOCK_VALIDITY" default:"180m"`
		AnchorHour   int           `envconfig:"DIGEST_ANCHOR_HOUR" default:"8"`
		AnchorTZ     string        `envconfig:"DIGEST_ANCHOR_TZ" default:"UTC"`
	} `envconfig:""`

	Eligibility struct {
		BounceScoreThreshold float64 `envconfig:"BOUNCE_SCORE_THRESHOLD" default:"4"`
		MustApproveUsers     bool    `envconfig:"MUST_APPROVE_USERS" default:"false"`
	} `envconfig:""`

	Special struct {
		PostID int64 `envconfig:"SPECIAL_POST_ID" default:"0"`
	} `envconfig:""`

	Favored struct {
		Author        string        `envconfig:"FAVORED_AUTHOR"`
		Lookback      time.Duration `envconfig:"FAVORED_LOOKBACK" default:"29h"`
		Grace         time.Duration `envconfig:"FAVORED_GRACE" default:"1h"`
		MinLikes      int           `envconfig:"FAVORED_MIN_LIKES" default:"5"`
		LikeThreshold int           `envconfig:"FAVORED_LIKE_THRESHOLD" default:"10"`
		SampleSize    int           `envconfig:"FAVORED_SAMPLE_SIZE" default:"10"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
