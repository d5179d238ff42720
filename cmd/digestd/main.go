package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"forum-digest-relay/internal/adapters/delivery"
	"forum-digest-relay/internal/adapters/repo"
	"forum-digest-relay/internal/infra/config"
	"forum-digest-relay/internal/infra/db"
	httpinfra "forum-digest-relay/internal/infra/http"
	"forum-digest-relay/internal/infra/lock"
	loginfra "forum-digest-relay/internal/infra/log"
	"forum-digest-relay/internal/infra/metrics"
	"forum-digest-relay/internal/usecase/digest"
)

func main() {
	cfg := config.Load()
	logger := loginfra.NewLogger(cfg.AppEnv)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("digestd: нет подключения к БД")
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	anchorLoc, err := time.LoadLocation(cfg.Digest.AnchorTZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.Digest.AnchorTZ).Msg("digestd: неизвестный часовой пояс якоря")
	}

	client, err := delivery.New(cfg.Digest.Endpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("digestd: не удалось создать клиент доставки")
	}

	repoAdapter := repo.NewPostgres(pool)
	service := digest.NewService(
		repoAdapter,
		repoAdapter,
		digest.NewBuilder(repoAdapter, cfg.Digest.BaseURL),
		digest.NewPicker(repoAdapter, digest.PickerConfig{
			SpecialPostID: cfg.Special.PostID,
			Author:        cfg.Favored.Author,
			Lookback:      cfg.Favored.Lookback,
			Grace:         cfg.Favored.Grace,
			MinLikes:      cfg.Favored.MinLikes,
			LikeThreshold: cfg.Favored.LikeThreshold,
			SampleSize:    cfg.Favored.SampleSize,
		}),
		client,
		lock.NewRedisRunLock(rdb),
		digest.NewIntervalPacer(cfg.Digest.PacingDelay),
		logger,
		digest.Config{
			Enabled:              cfg.Digest.Enabled,
			PrivateEmail:         cfg.Digest.PrivateEmail,
			BounceScoreThreshold: cfg.Eligibility.BounceScoreThreshold,
			MustApproveUsers:     cfg.Eligibility.MustApproveUsers,
			LockValidity:         cfg.Digest.LockValidity,
			AnchorHour:           cfg.Digest.AnchorHour,
			AnchorLocation:       anchorLoc,
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Все запуски проходят через runs, чтобы при остановке дождаться снятия
	// блокировки текущим запуском, а не бросать аренду до истечения TTL.
	var runs sync.WaitGroup
	runDigest := func(runCtx context.Context) error {
		runs.Add(1)
		defer runs.Done()
		return service.RunOnce(runCtx)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Digest.Schedule, func() {
		if err := runDigest(ctx); err != nil {
			logger.Error().Err(err).Msg("digestd: запуск рассылки завершился ошибкой")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.Digest.Schedule).Msg("digestd: некорректное расписание")
	}
	scheduler.Start()

	srv := httpinfra.NewServer(ctx, logger, runDigest)
	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("digestd: HTTP сервер остановлен")
		}
	}()

	logger.Info().Str("schedule", cfg.Digest.Schedule).Msg("digestd: сервис запущен")
	<-ctx.Done()
	logger.Info().Msg("digestd: завершение по сигналу")
	// Отмена ctx останавливает запуск после текущего получателя; ждём, пока
	// cron и ручные запуски доработают и снимут блокировку.
	<-scheduler.Stop().Done()
	runs.Wait()
	logger.Info().Msg("digestd: сервис остановлен")
}
