// Package directory resolves a reporter's numeric user id from their email.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the directory has no user for the email.
var ErrNotFound = errors.New("user not found in directory")

// Resolver maps an email to a directory user id.
type Resolver interface {
	ResolveID(ctx context.Context, email string) (int64, error)
}

type bearerKey struct{}

// WithBearerToken stores the caller's token so lookups can forward it.
func WithBearerToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerToken returns the token stored by WithBearerToken.
func BearerToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerKey{}).(string)
	return token, ok && token != ""
}

// HTTPResolver queries a directory endpoint: GET <url>?email=<email>.
type HTTPResolver struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	logger   *zap.Logger
}

// NewHTTPResolver builds a resolver. The timeout bounds the whole lookup including retries.
func NewHTTPResolver(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPResolver{
		endpoint: endpoint,
		client:   &http.Client{},
		timeout:  timeout,
		logger:   logger,
	}
}

// WithHTTPClient replaces the underlying client.
func (r *HTTPResolver) WithHTTPClient(client *http.Client) *HTTPResolver {
	r.client = client
	return r
}

// lookupReply accepts both {"data":{"user_id":N}} and {"success":true,"userId":N}.
type lookupReply struct {
	Data *struct {
		UserID int64 `json:"user_id"`
	} `json:"data"`
	Success *bool  `json:"success"`
	UserID  *int64 `json:"userId"`
}

func (l lookupReply) id() (int64, bool) {
	if l.Data != nil && l.Data.UserID != 0 {
		return l.Data.UserID, true
	}
	if l.UserID != nil && (l.Success == nil || *l.Success) {
		return *l.UserID, true
	}
	return 0, false
}

func (r *HTTPResolver) ResolveID(ctx context.Context, email string) (int64, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return 0, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = r.timeout

	var id int64
	err := backoff.Retry(func() error {
		found, err := r.lookup(ctx, email)
		if err != nil {
			return err
		}
		id = found
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *HTTPResolver) lookup(ctx context.Context, email string) (int64, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("directory url: %w", err))
	}
	q := u.Query()
	q.Set("email", email)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if token, ok := BearerToken(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("directory lookup attempt failed", zap.Error(err))
		return 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return 0, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, backoff.Permanent(ErrNotFound)
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("directory returned %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return 0, backoff.Permanent(fmt.Errorf("directory returned %d", resp.StatusCode))
	}

	var reply lookupReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return 0, backoff.Permanent(fmt.Errorf("decode directory reply: %w", err))
	}
	id, ok := reply.id()
	if !ok {
		return 0, backoff.Permanent(ErrNotFound)
	}
	return id, nil
}
