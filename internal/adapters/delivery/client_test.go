package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"forum-digest-relay/internal/domain"
)

func TestSendPostsJSON(t *testing.T) {
	var (
		gotMethod      string
		gotContentType string
		gotBody        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("создание клиента: %v", err)
	}

	payload := domain.DigestPayload{Username: "alice", Email: "alice@example.com", Frequency: 1440, BaseURL: "https://forum.example.com"}
	if err := client.Send(context.Background(), payload); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Fatalf("ожидали POST, получили %s", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Fatalf("ожидали application/json, получили %q", gotContentType)
	}
	var decoded domain.DigestPayload
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("тело не является корректным JSON: %v", err)
	}
	if decoded.Username != "alice" || decoded.Frequency != 1440 {
		t.Fatalf("тело не совпало: %+v", decoded)
	}
}

func TestSendRejectsUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("создание клиента: %v", err)
	}

	err = client.Send(context.Background(), domain.DigestPayload{})
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("ожидали ErrUnexpectedStatus, получили %v", err)
	}
}

func TestSendAcceptedStatusesOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := New(srv.URL, WithAcceptedStatuses(http.StatusAccepted))
	if err != nil {
		t.Fatalf("создание клиента: %v", err)
	}

	if err := client.Send(context.Background(), domain.DigestPayload{}); err != nil {
		t.Fatalf("202 должен быть допустимым: %v", err)
	}
}
