package http

import (
	"context"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RunFunc запускает один цикл рассылки.
type RunFunc func(ctx context.Context) error

// Server оборачивает chi.Router с базовыми middlewares.
type Server struct {
	Router chi.Router
	log    zerolog.Logger
}

// NewServer создаёт HTTP сервер с эндпоинтами /healthz, /metrics и ручным запуском POST /run.
// Контекст ctx ограничивает жизнь ручных запусков временем жизни процесса.
func NewServer(ctx context.Context, logger zerolog.Logger, run RunFunc) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/run", func(w http.ResponseWriter, r *http.Request) {
		// Запуск уходит в фон: цикл может длиться дольше любого разумного HTTP-таймаута.
		// Однофлайтовость обеспечивает блокировка внутри RunOnce, остановку — ctx процесса.
		go func() {
			if err := run(ctx); err != nil {
				logger.Error().Err(err).Msg("ручной запуск рассылки завершился ошибкой")
			}
		}()
		w.WriteHeader(http.StatusAccepted)
	})
	return &Server{Router: r, log: logger}
}

// Start запускает http.Server.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("HTTP сервер запущен")
	return srv.ListenAndServe()
}
