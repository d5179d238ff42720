package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHealthz(t *testing.T) {
	srv := NewServer(context.Background(), zerolog.Nop(), func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
}

func TestManualRunBoundToProcessContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan context.Context, 1)
	srv := NewServer(ctx, zerolog.Nop(), func(runCtx context.Context) error {
		started <- runCtx
		return nil
	})

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("ручной запуск должен отвечать 202, получили %d", rec.Code)
	}

	var runCtx context.Context
	select {
	case runCtx = <-started:
	case <-time.After(time.Second):
		t.Fatalf("ручной запуск не стартовал")
	}
	if runCtx.Err() != nil {
		t.Fatalf("контекст запуска не должен быть отменён заранее: %v", runCtx.Err())
	}

	cancel()
	select {
	case <-runCtx.Done():
	case <-time.After(time.Second):
		t.Fatalf("остановка процесса должна отменять ручной запуск")
	}
}
