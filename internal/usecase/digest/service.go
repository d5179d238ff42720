package digest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"forum-digest-relay/internal/domain"
	"forum-digest-relay/internal/infra/metrics"
)

// runLockKey — общее имя аренды запуска: не более одного активного запуска
// на всю инсталляцию.
const runLockKey = "forum_digest_run"

// Config задаёт параметры координатора запусков.
type Config struct {
	Enabled              bool
	PrivateEmail         bool
	BounceScoreThreshold float64
	MustApproveUsers     bool
	LockValidity         time.Duration
	AnchorHour           int
	AnchorLocation       *time.Location
}

// Service координирует полный цикл рассылки: блокировка, отбор получателей,
// выбор дополнительных постов, последовательная отправка с паузами,
// запись состояния, снятие блокировки.
type Service struct {
	recipients domain.RecipientRepo
	states     domain.DeliveryStateRepo
	builder    *Builder
	picker     *Picker
	client     domain.DeliveryClient
	lock       domain.RunLock
	pacer      domain.Pacer
	log        zerolog.Logger
	cfg        Config
	now        func() time.Time
}

// NewService создаёт координатор.
func NewService(recipients domain.RecipientRepo, states domain.DeliveryStateRepo, builder *Builder, picker *Picker, client domain.DeliveryClient, lock domain.RunLock, pacer domain.Pacer, logger zerolog.Logger, cfg Config) *Service {
	if cfg.AnchorLocation == nil {
		cfg.AnchorLocation = time.UTC
	}
	return &Service{
		recipients: recipients,
		states:     states,
		builder:    builder,
		picker:     picker,
		client:     client,
		lock:       lock,
		pacer:      pacer,
		log:        logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// RunOnce выполняет один запуск рассылки. Занятая блокировка и пустая
// когорта — штатные no-op исходы, не ошибки.
func (s *Service) RunOnce(ctx context.Context) error {
	if !s.cfg.Enabled || s.cfg.PrivateEmail {
		s.log.Debug().Msg("рассылка выключена настройками, запуск пропущен")
		return nil
	}

	logger := s.log.With().Str("run_id", uuid.NewString()).Logger()

	lease, ok, err := s.lock.TryAcquire(ctx, runLockKey, s.cfg.LockValidity)
	if err != nil {
		return fmt.Errorf("захват блокировки запуска: %w", err)
	}
	if !ok {
		metrics.IncRunLockContention()
		logger.Info().Msg("другой запуск уже активен, выходим")
		return nil
	}

	// Снимаем блокировку при любом исходе, в том числе после ошибки или
	// истечения дедлайна запуска: следующий запуск не должен ждать конца аренды.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.lock.Release(releaseCtx, lease); err != nil {
			logger.Error().Err(err).Msg("снятие блокировки запуска не удалось")
		}
	}()

	// Дедлайн всего запуска равен сроку аренды: зависший получатель не может
	// держать блокировку дольше её потолка.
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.LockValidity)
	defer cancel()

	metrics.IncRun()
	started := time.Now()
	defer func() { metrics.ObserveRunDuration(time.Since(started)) }()

	recipients, err := s.selectRecipients(runCtx)
	if err != nil {
		return fmt.Errorf("отбор получателей: %w", err)
	}
	if len(recipients) == 0 {
		logger.Info().Msg("нет получателей к рассылке")
		return nil
	}

	// Дополнительные посты выбираются один раз и замораживаются на весь
	// запуск: состояние контента после этой точки на выбор не влияет.
	pickedAt := s.now()
	special := s.picker.PickSpecial(runCtx, logger)
	favored := s.picker.PickFavored(runCtx, pickedAt, logger)

	logger.Info().
		Int("recipients", len(recipients)).
		Bool("special", special != nil).
		Bool("favored", favored != nil).
		Msg("запуск рассылки начат")

	for i := range recipients {
		if err := runCtx.Err(); err != nil {
			logger.Error().Err(err).Int("delivered", i).Msg("запуск прерван по дедлайну")
			return err
		}
		if i > 0 {
			if err := s.pacer.Wait(runCtx); err != nil {
				logger.Error().Err(err).Int("delivered", i).Msg("пауза между получателями прервана")
				return err
			}
		}
		dispatchCtx, cancelDispatch := dispatchContext(runCtx)
		s.dispatch(dispatchCtx, logger, recipients[i], special, favored)
		cancelDispatch()
	}

	logger.Info().Int("recipients", len(recipients)).Msg("запуск рассылки завершён")
	return nil
}

// dispatchContext отвязывает обработку одного получателя от отмены запуска,
// сохраняя его дедлайн: при остановке сервиса текущий получатель
// дорабатывается и его состояние записывается, новые получатели не начинаются.
func dispatchContext(runCtx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(runCtx)
	if deadline, ok := runCtx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return context.WithCancel(detached)
}

// selectRecipients отбирает когорту запуска в устойчивом порядке по id.
func (s *Service) selectRecipients(ctx context.Context) ([]domain.Recipient, error) {
	candidates, err := s.recipients.ListDigestCandidates(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	eligible := make([]domain.Recipient, 0, len(candidates))
	for _, c := range candidates {
		if c.EligibleAt(now, s.cfg.BounceScoreThreshold, s.cfg.MustApproveUsers) {
			eligible = append(eligible, c)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	metrics.SetRecipientsSelected(len(eligible))
	return eligible, nil
}

// dispatch обрабатывает одного получателя. Любой сбой локален: рассылка
// продолжается, а состояние получателя остаётся нетронутым, чтобы следующий
// запуск повторил попытку по обычной частоте.
func (s *Service) dispatch(ctx context.Context, logger zerolog.Logger, r domain.Recipient, special, favored *domain.Post) {
	state, err := s.states.GetDeliveryState(ctx, r.ID)
	if err != nil {
		logger.Error().Err(err).Int64("recipient", r.ID).Msg("чтение состояния доставки не удалось")
		metrics.IncDispatch("error")
		return
	}

	var attachSpecial, attachFavored *domain.Post
	if special != nil && (state.LastSpecialPostID == nil || *state.LastSpecialPostID != special.ID) {
		attachSpecial = special
	}
	if favored != nil && (state.LastFavoredPostID == nil || *state.LastFavoredPostID != favored.ID) {
		attachFavored = favored
	}

	now := s.now()
	payload, err := s.builder.Build(ctx, r, SinceFor(r, now), attachSpecial, attachFavored)
	if err != nil {
		logger.Error().Err(err).Int64("recipient", r.ID).Msg("сборка дайджеста не удалась")
		metrics.IncDispatch("error")
		return
	}

	if err := s.client.Send(ctx, payload); err != nil {
		logger.Error().Err(err).Int64("recipient", r.ID).Msg("отправка дайджеста не удалась")
		metrics.IncDispatch("error")
		return
	}
	metrics.IncDispatch("success")
	if attachSpecial != nil {
		metrics.IncSupplementalAttached("special")
	}
	if attachFavored != nil {
		metrics.IncSupplementalAttached("favored")
	}

	if err := s.recipients.UpdateLastDigestAt(ctx, r.ID, s.alignLastDigestAt(now, r)); err != nil {
		logger.Error().Err(err).Int64("recipient", r.ID).Msg("обновление last_digest_at не удалось")
	}

	if attachSpecial != nil || attachFavored != nil {
		state.RecipientID = r.ID
		if attachSpecial != nil {
			id := attachSpecial.ID
			state.LastSpecialPostID = &id
		}
		if attachFavored != nil {
			id := attachFavored.ID
			state.LastFavoredPostID = &id
		}
		if err := s.states.SaveDeliveryState(ctx, state); err != nil {
			logger.Error().Err(err).Int64("recipient", r.ID).Msg("сохранение состояния доставки не удалось")
		}
	}
}

// alignLastDigestAt выравнивает отметку по якорному часу для частот от суток
// и реже: первая рассылка может прийтись на нестандартное время, последующие
// сходятся к якорю.
func (s *Service) alignLastDigestAt(now time.Time, r domain.Recipient) time.Time {
	if r.CadenceMinutes < 1440 {
		return now
	}
	local := now.In(s.cfg.AnchorLocation)
	return time.Date(local.Year(), local.Month(), local.Day(), s.cfg.AnchorHour, 0, 0, 0, s.cfg.AnchorLocation)
}
