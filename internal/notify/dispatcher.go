package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/momen-meetup/meetup/internal/config"
	"github.com/momen-meetup/meetup/internal/contact"
	"github.com/momen-meetup/meetup/internal/settings"
	log "github.com/sirupsen/logrus"
)

// Status is the outcome of a single notification attempt.
type Status int

const (
	// StatusSkipped means no provider credential is configured.
	StatusSkipped Status = iota
	// StatusDelivered means the provider accepted the message.
	StatusDelivered
	// StatusFailed means the attempt was made and did not succeed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Result describes a dispatch attempt. Err is set only for StatusFailed.
type Result struct {
	Status   Status
	Err      error
	Duration time.Duration
}

// Dispatcher sends a best-effort notification for a submission. It never
// returns an error; failures are reported through Result.
type Dispatcher interface {
	Dispatch(ctx context.Context, sub contact.Submission) Result
}

const maxErrorBody = 2048

// ResendDispatcher posts contact notifications to a Resend-compatible email API.
type ResendDispatcher struct {
	apiKey   string
	endpoint string
	from     string
	to       string
	timeout  time.Duration
	client   *http.Client
}

// NewResendDispatcher constructs a dispatcher from mail config. A nil client
// uses http.DefaultClient; the per-attempt timeout comes from cfg.Timeout.
func NewResendDispatcher(cfg config.MailConfig, client *http.Client) *ResendDispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	d := &ResendDispatcher{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		endpoint: strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		from:     strings.TrimSpace(cfg.From),
		to:       strings.TrimSpace(cfg.To),
		timeout:  cfg.Timeout,
		client:   client,
	}
	if d.endpoint == "" {
		d.endpoint = settings.DefaultMailEndpoint
	}
	if d.from == "" {
		d.from = settings.DefaultMailFrom
	}
	if d.to == "" {
		d.to = settings.DefaultMailTo
	}
	if d.timeout <= 0 {
		d.timeout = settings.DefaultMailTimeout
	}
	return d
}

// Configured reports whether a credential is present.
func (d *ResendDispatcher) Configured() bool {
	return d != nil && d.apiKey != ""
}

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// Dispatch makes exactly one delivery attempt, bounded by the configured timeout.
func (d *ResendDispatcher) Dispatch(ctx context.Context, sub contact.Submission) Result {
	if !d.Configured() {
		log.Info("contact: no mail api key configured, skipping notification")
		return Result{Status: StatusSkipped}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	errSend := d.send(ctx, sub)
	elapsed := time.Since(start)
	if errSend != nil {
		log.WithError(errSend).WithField("duration", elapsed).Error("contact: notification failed")
		return Result{Status: StatusFailed, Err: errSend, Duration: elapsed}
	}
	return Result{Status: StatusDelivered, Duration: elapsed}
}

func (d *ResendDispatcher) send(ctx context.Context, sub contact.Submission) error {
	html, errBody := HTMLBody(sub)
	if errBody != nil {
		return fmt.Errorf("render body: %w", errBody)
	}
	payload, errMarshal := json.Marshal(emailRequest{
		From:    d.from,
		To:      []string{d.to},
		Subject: Subject(sub),
		HTML:    html,
		ReplyTo: sub.Email,
	})
	if errMarshal != nil {
		return fmt.Errorf("encode request: %w", errMarshal)
	}

	ctxSend, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, errReq := http.NewRequestWithContext(ctxSend, http.MethodPost, d.endpoint+"/emails", bytes.NewReader(payload))
	if errReq != nil {
		return fmt.Errorf("build request: %w", errReq)
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := d.client.Do(req)
	if errDo != nil {
		return fmt.Errorf("send request: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
