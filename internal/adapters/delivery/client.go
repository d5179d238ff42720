package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"forum-digest-relay/internal/domain"
	"forum-digest-relay/internal/infra/metrics"
)

// ErrUnexpectedStatus возвращается при статусе вне списка допустимых.
var ErrUnexpectedStatus = errors.New("сервис доставки вернул недопустимый статус")

// Client отправляет дайджесты внешнему сервису доставки по HTTP.
// Один экземпляр переиспользует соединения на весь запуск.
type Client struct {
	endpoint   *url.URL
	httpClient *http.Client
	accepted   map[int]struct{}
}

var _ domain.DeliveryClient = (*Client)(nil)

// Option настраивает клиент.
type Option func(*Client)

// WithHTTPClient подменяет http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout задаёт таймаут на один запрос.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithAcceptedStatuses переопределяет список успешных статусов.
func WithAcceptedStatuses(statuses ...int) Option {
	return func(c *Client) {
		c.accepted = make(map[int]struct{}, len(statuses))
		for _, s := range statuses {
			c.accepted[s] = struct{}{}
		}
	}
}

// New создаёт клиент для указанного эндпоинта.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}
	client := &Client{
		endpoint:   parsed,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		accepted:   map[int]struct{}{http.StatusOK: {}, http.StatusCreated: {}},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Send выполняет один POST с JSON-телом дайджеста.
func (c *Client) Send(ctx context.Context, payload domain.DigestPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveNetworkRequest("delivery", "digest_post", "digest", start, err)
	if err != nil {
		return fmt.Errorf("отправка дайджеста: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if _, ok := c.accepted[resp.StatusCode]; !ok {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}
