// Package rest implements the platform data API over HTTP.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"callbridge/internal/core/domain"
	"callbridge/pkg/circuitbreaker"
	apperrors "callbridge/pkg/errors"
	"callbridge/pkg/tracing"
	"callbridge/pkg/utils"
	"callbridge/pkg/validation"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const (
	actionsPath  = "/api/actions"
	objectsPath  = "/api/objects/"
	commitSuffix = "/commit"

	tokenIssuer  = "callbridge"
	tokenSubject = "call-agent"
	tokenLeeway  = 30 * time.Second

	maxErrorBody    = 4 << 10
	maxErrorMessage = 256
)

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	JWTSecret string
	TokenTTL  time.Duration
	Breaker   circuitbreaker.Config
}

// RequestObserver receives the outcome and duration of every request.
type RequestObserver interface {
	RecordPlatformRequest(operation, result string, duration time.Duration)
}

// Client implements ports.Platform. Every call runs on its own goroutine and
// resolves through exactly one of its callbacks.
type Client struct {
	cfg      Config
	base     *url.URL
	http     *http.Client
	breaker  *circuitbreaker.CircuitBreaker
	observer RequestObserver
	logger   *zap.SugaredLogger

	tokenMu  sync.Mutex
	token    string
	tokenExp time.Time

	wg  sync.WaitGroup
	now func() time.Time
}

func New(cfg Config, observer RequestObserver, logger *zap.SugaredLogger) (*Client, error) {
	if err := validation.ValidateURL(cfg.BaseURL, "http", "https"); err != nil {
		return nil, fmt.Errorf("platform base url: %w", err)
	}
	base, _ := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 5 * time.Minute
	}

	breaker := circuitbreaker.New("platform", cfg.Breaker)
	breaker.OnStateChange(func(name string, from, to circuitbreaker.State) {
		logger.Warnw("Platform circuit breaker state changed", "from", from.String(), "to", to.String())
	})

	return &Client{
		cfg:      cfg,
		base:     base,
		http:     &http.Client{Timeout: cfg.Timeout},
		breaker:  breaker,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Close waits for in-flight requests to resolve.
func (c *Client) Close() {
	c.wg.Wait()
}

func (c *Client) Action(ctx context.Context, req domain.ActionRequest, onSuccess func(any), onError func(error)) {
	c.async(func() {
		var response any
		_, err := c.do(ctx, "action", http.MethodPost, actionsPath, req, &response,
			tracing.ActionNameKey.String(req.ActionName),
			tracing.EntityGUIDKey.StringSlice(req.GUIDs),
		)
		if err != nil {
			onError(err)
			return
		}
		onSuccess(response)
	})
}

func (c *Client) Get(ctx context.Context, guid string, onSuccess func(*domain.Entity), onError func(error)) {
	c.async(func() {
		if err := validation.ValidateGUID(guid); err != nil {
			onError(apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, "invalid guid", http.StatusBadRequest))
			return
		}

		var entity domain.Entity
		status, err := c.do(ctx, "get", http.MethodGet, objectsPath+url.PathEscape(guid), nil, &entity,
			tracing.EntityGUIDKey.String(guid))
		if err != nil {
			onError(err)
			return
		}
		if status == http.StatusNotFound {
			onSuccess(nil)
			return
		}
		if entity.GUID == "" {
			entity.GUID = guid
		}
		if entity.Attributes == nil {
			entity.Attributes = make(map[string]any)
		}
		onSuccess(&entity)
	})
}

type commitRequest struct {
	Attributes map[string]any `json:"attributes"`
}

func (c *Client) Commit(ctx context.Context, entity *domain.Entity, onSuccess func(), onError func(error)) {
	c.async(func() {
		if entity == nil {
			onError(apperrors.NewInvalidInputError("entity is required"))
			return
		}
		if err := validation.ValidateGUID(entity.GUID); err != nil {
			onError(apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, "invalid guid", http.StatusBadRequest))
			return
		}

		path := objectsPath + url.PathEscape(entity.GUID) + commitSuffix
		status, err := c.do(ctx, "commit", http.MethodPost, path, commitRequest{Attributes: entity.Attributes}, nil,
			tracing.EntityGUIDKey.String(entity.GUID))
		if err != nil {
			onError(err)
			return
		}
		if status == http.StatusNotFound {
			onError(domain.ErrObjectNotFound)
			return
		}
		onSuccess()
	})
}

func (c *Client) async(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// do sends one request through the circuit breaker. A 404 is returned as a
// status, not an error, and does not count against the breaker.
func (c *Client) do(ctx context.Context, operation, method, path string, body, out any, attrs ...attribute.KeyValue) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	ctx, span := tracing.TracePlatformCall(ctx, operation, method, path)
	defer span.End()
	tracing.AddSpanAttributes(ctx, attrs...)
	start := time.Now()

	var status int
	err := c.breaker.Execute(func() error {
		var err error
		status, err = c.send(ctx, method, path, body, out)
		return err
	})

	result := "success"
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		result = "rejected"
		err = apperrors.WrapError(err, apperrors.ErrCodeUnavailable, "platform temporarily unavailable", http.StatusServiceUnavailable)
	case err != nil:
		result = "error"
	case status == http.StatusNotFound:
		result = "not_found"
	}

	tracing.MeasureDuration(ctx, start)
	tracing.RecordError(ctx, err)
	if c.observer != nil {
		c.observer.RecordPlatformRequest(operation, result, time.Since(start))
	}
	if err != nil {
		c.logger.Warnw("Platform request failed", "operation", operation, "path", path, "error", err)
	}
	return status, err
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.JWTSecret != "" {
		token, err := c.bearerToken()
		if err != nil {
			return 0, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, nil
	case resp.StatusCode >= http.StatusBadRequest:
		return resp.StatusCode, apperrors.NewPlatformError(resp.StatusCode, readErrorMessage(resp))
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// bearerToken returns a cached HS256 service token, minting a new one shortly
// before the cached token expires.
func (c *Client) bearerToken() (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	now := c.now()
	if c.token != "" && now.Add(tokenLeeway).Before(c.tokenExp) {
		return c.token, nil
	}

	exp := now.Add(c.cfg.TokenTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign platform token: %w", err)
	}
	c.token, c.tokenExp = signed, exp
	return signed, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func readErrorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return utils.Truncate(msg, maxErrorMessage)
	}
	return http.StatusText(resp.StatusCode)
}
