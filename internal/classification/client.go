// Package classification talks to the external AI priority service.
package classification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/config"
	"github.com/interfix/helpdesk/internal/directory"
	"github.com/interfix/helpdesk/internal/domain"
	"github.com/interfix/helpdesk/internal/observability"
)

var (
	// ErrCommitRejected covers every failed commit: transport, status code, body or rejection status.
	ErrCommitRejected = errors.New("classification service rejected the ticket")
	// ErrIncompleteDraft is returned when analyze is asked for before the collection stages exist.
	ErrIncompleteDraft = errors.New("draft is missing collection stages")
)

// Mode selects the service operation through the "piece" field.
type Mode int

const (
	ModeAnalyze Mode = 1
	ModeCommit  Mode = 2
)

// Request is the body posted to the classification service.
type Request struct {
	ReporterID         *int64 `json:"reporterId"`
	Title              string `json:"title"`
	EmployeeName       string `json:"employeeName"`
	Email              string `json:"email"`
	Category           string `json:"category"`
	Description        string `json:"description"`
	AffectedPeople     string `json:"affectedPeople"`
	BlocksWork         string `json:"blocksWork"`
	UserPriority       string `json:"userPriority"`
	UserPriorityReason string `json:"userPriorityReason"`
	Piece              Mode   `json:"piece"`
}

func blocksWorkLabel(fully bool) string {
	if fully {
		return "Sim"
	}
	return "Não"
}

// Client calls the classification service.
type Client struct {
	endpoint   string
	http       *http.Client
	timeout    time.Duration
	resolver   directory.Resolver
	rejections map[string]struct{}
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewClient builds a client from configuration.
func NewClient(cfg config.ClassificationConfig, resolver directory.Resolver, logger *zap.Logger, metrics *observability.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	rejections := make(map[string]struct{}, len(cfg.RejectionStatuses))
	for _, s := range cfg.RejectionStatuses {
		rejections[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return &Client{
		endpoint:   cfg.URL,
		http:       &http.Client{},
		timeout:    cfg.Timeout(),
		resolver:   resolver,
		rejections: rejections,
		logger:     logger.Named("classification"),
		metrics:    metrics,
		now:        time.Now,
	}
}

// WithHTTPClient replaces the underlying client.
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.http = client
	return c
}

// WithClock replaces the clock used to stamp suggestions.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Fallback is the degraded suggestion used when the service cannot be reached.
func Fallback(at time.Time) domain.AIResponse {
	return domain.AIResponse{
		Priority:      domain.TicketPriorityMedium,
		Justification: fallbackJustification,
		ReceivedAt:    at,
		Degraded:      true,
	}
}

// Analyze asks for a priority suggestion. Transport failures, timeouts and
// non-2xx replies produce the degraded fallback instead of an error.
func (c *Client) Analyze(ctx context.Context, d domain.Draft) (domain.AIResponse, error) {
	if !d.Collected() {
		return domain.AIResponse{}, ErrIncompleteDraft
	}
	req := Request{
		ReporterID:     c.resolve(ctx, d.BasicInfo.ReporterEmail),
		Title:          d.BasicInfo.Title,
		EmployeeName:   d.BasicInfo.ReporterName,
		Email:          d.BasicInfo.ReporterEmail,
		Category:       d.BasicInfo.Category,
		Description:    d.BasicInfo.Description,
		AffectedPeople: d.AffectedScope.AffectedParty,
		BlocksWork:     blocksWorkLabel(d.BlockingImpact.FullyBlocking),
		Piece:          ModeAnalyze,
	}

	ctx, span := observability.StartSpan(ctx, "classification.analyze",
		attribute.Int("classification.piece", int(ModeAnalyze)),
		attribute.Bool("classification.identity_resolved", req.ReporterID != nil))
	body, status, err := c.post(ctx, req)
	if err != nil || status < 200 || status > 299 {
		if errors.Is(ctx.Err(), context.Canceled) {
			observability.EndSpan(span, ctx.Err())
			return domain.AIResponse{}, ctx.Err()
		}
		c.metrics.Inc("classification.analyze.degraded")
		c.logger.Warn("classification unavailable, using fallback suggestion",
			zap.Int("status", status), zap.Error(err))
		span.SetAttributes(attribute.Bool("classification.degraded", true))
		observability.EndSpan(span, nil)
		return Fallback(c.now()), nil
	}

	reply, err := Normalize(body)
	if err != nil {
		c.metrics.Inc("classification.analyze.malformed")
		c.logger.Error("classification reply malformed", zap.Int("body_len", len(body)), zap.Error(err))
		observability.EndSpan(span, err)
		return domain.AIResponse{}, err
	}

	priority, known := reply.Priority()
	if !known {
		c.logger.Warn("classification reply carried no recognizable priority; using medium",
			zap.Int("raw_priority_len", len(reply.RawPriority)))
	}
	justification := reply.Justification
	if justification == "" {
		justification = defaultJustification
	}
	c.metrics.Inc("classification.analyze.ok")
	c.logger.Info("classification suggestion received",
		zap.String("shape", reply.Shape.String()),
		zap.String("priority", string(priority)))
	span.SetAttributes(attribute.String("classification.priority", string(priority)))
	observability.EndSpan(span, nil)

	return domain.AIResponse{
		Priority:      priority,
		Justification: justification,
		ReceivedAt:    c.now(),
	}, nil
}

// Commit submits the negotiated ticket. Every failure wraps ErrCommitRejected.
func (c *Client) Commit(ctx context.Context, s domain.Submission) error {
	req := Request{
		ReporterID:         c.resolve(ctx, s.ReporterEmail),
		Title:              s.Title,
		EmployeeName:       s.ReporterName,
		Email:              s.ReporterEmail,
		Category:           s.Category,
		Description:        s.Description,
		AffectedPeople:     s.AffectedParty,
		BlocksWork:         blocksWorkLabel(s.BlocksWorkFully),
		UserPriority:       s.Priority.Label(),
		UserPriorityReason: s.Justification,
		Piece:              ModeCommit,
	}

	ctx, span := observability.StartSpan(ctx, "classification.commit",
		attribute.Int("classification.piece", int(ModeCommit)),
		attribute.Bool("classification.contested", s.Contested))
	err := c.commit(ctx, req)
	if err != nil {
		c.metrics.Inc("classification.commit.rejected")
		c.logger.Warn("classification commit failed", zap.Error(err))
	} else {
		c.metrics.Inc("classification.commit.ok")
	}
	observability.EndSpan(span, err)
	return err
}

func (c *Client) commit(ctx context.Context, req Request) error {
	body, status, err := c.post(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitRejected, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: status code %d", ErrCommitRejected, status)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	reply, err := Normalize(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitRejected, err)
	}
	if _, rejected := c.rejections[strings.ToLower(reply.Status)]; rejected && reply.Status != "" {
		return fmt.Errorf("%w: status %q", ErrCommitRejected, reply.Status)
	}
	return nil
}

func (c *Client) resolve(ctx context.Context, email string) *int64 {
	if c.resolver == nil {
		return nil
	}
	id, err := c.resolver.ResolveID(ctx, email)
	if err != nil {
		c.metrics.Inc("directory.lookup.failed")
		c.logger.Warn("reporter identity unresolved; sending null reporterId", zap.Error(err))
		return nil
	}
	return &id
}

func (c *Client) post(ctx context.Context, payload Request) ([]byte, int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	c.logger.Debug("classification call finished",
		zap.Int("piece", int(payload.Piece)),
		zap.Int("status", resp.StatusCode),
		zap.Int("title_len", len(payload.Title)),
		zap.Int("description_len", len(payload.Description)),
		zap.Duration("latency", time.Since(started)))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
