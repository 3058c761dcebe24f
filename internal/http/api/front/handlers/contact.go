package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/momen-meetup/meetup/internal/contact"
	"github.com/momen-meetup/meetup/internal/metrics"
	"github.com/momen-meetup/meetup/internal/notify"
	"github.com/momen-meetup/meetup/internal/ratelimit"
	log "github.com/sirupsen/logrus"
)

const (
	defaultMaxContactBody = 64 << 10

	msgTooManyRequests = "Too many requests. Please try again later."
	msgValidation      = "Validation failed"
	msgInternal        = "Internal server error"
)

// RateLimiter checks a key against a policy.
type RateLimiter interface {
	Allow(ctx context.Context, key string, policy ratelimit.Policy) (ratelimit.Result, error)
}

// ContactOptions wires the contact gate.
type ContactOptions struct {
	Limiter    RateLimiter
	Policy     ratelimit.Policy
	Dispatcher notify.Dispatcher
	Metrics    *metrics.Collector
	// TrustForwardedFor keys callers by the first X-Forwarded-For entry
	// instead of the connection address.
	TrustForwardedFor bool
	MaxBodyBytes      int64
	Now               func() time.Time
}

// ContactHandler accepts contact form submissions.
type ContactHandler struct {
	limiter        RateLimiter
	policy         ratelimit.Policy
	dispatcher     notify.Dispatcher
	metrics        *metrics.Collector
	trustForwarded bool
	maxBody        int64
	now            func() time.Time
}

// NewContactHandler constructs a ContactHandler.
func NewContactHandler(opts ContactOptions) *ContactHandler {
	h := &ContactHandler{
		limiter:        opts.Limiter,
		policy:         opts.Policy,
		dispatcher:     opts.Dispatcher,
		metrics:        opts.Metrics,
		trustForwarded: opts.TrustForwardedFor,
		maxBody:        opts.MaxBodyBytes,
		now:            opts.Now,
	}
	if h.maxBody <= 0 {
		h.maxBody = defaultMaxContactBody
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Submit runs rate limiting, validation and notification for one submission.
func (h *ContactHandler) Submit(c *gin.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			h.fail(c, fmt.Errorf("panic: %v", rec))
		}
	}()

	ctx := c.Request.Context()
	origin := h.origin(c)
	if h.limiter != nil {
		result, errAllow := h.limiter.Allow(ctx, ratelimit.ContactKey(origin), h.policy)
		if errAllow != nil {
			h.fail(c, fmt.Errorf("rate limit: %w", errAllow))
			return
		}
		if !result.Allowed {
			h.metrics.RecordSubmission(metrics.OutcomeRateLimited)
			c.Header("Retry-After", strconv.Itoa(h.retryAfterSeconds(result)))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": msgTooManyRequests})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	}

	raw, errRead := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody))
	if errRead != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(errRead, &tooLarge) {
			h.metrics.RecordSubmission(metrics.OutcomeInvalid)
			c.JSON(http.StatusBadRequest, gin.H{"error": msgValidation, "details": contact.BodyTooLarge()})
			return
		}
		h.fail(c, fmt.Errorf("read body: %w", errRead))
		return
	}

	sub, fieldErrs := contact.Validate(raw)
	if len(fieldErrs) > 0 {
		h.metrics.RecordSubmission(metrics.OutcomeInvalid)
		c.JSON(http.StatusBadRequest, gin.H{"error": msgValidation, "details": fieldErrs})
		return
	}

	id := uuid.NewString()
	dispatch := notify.Result{Status: notify.StatusSkipped}
	if h.dispatcher != nil {
		dispatch = h.dispatcher.Dispatch(ctx, sub)
	}
	h.metrics.RecordDispatch(dispatch.Status.String(), dispatch.Duration)

	entry := log.WithFields(log.Fields{
		"submission_id": id,
		"origin":        origin,
		"name":          sub.Name,
		"email":         sub.Email,
		"service":       sub.Service,
		"notification":  dispatch.Status.String(),
	})
	if dispatch.Err != nil {
		entry = entry.WithError(dispatch.Err)
	}
	entry.Info("contact: submission received")

	h.metrics.RecordSubmission(metrics.OutcomeAccepted)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ContactHandler) origin(c *gin.Context) string {
	if h.trustForwarded {
		return ratelimit.ClientOrigin(c.GetHeader("X-Forwarded-For"))
	}
	if ip := c.RemoteIP(); ip != "" {
		return ip
	}
	return ratelimit.UnknownOrigin
}

func (h *ContactHandler) retryAfterSeconds(result ratelimit.Result) int {
	wait := h.policy.RefillInterval
	if !result.Reset.IsZero() {
		wait = result.Reset.Sub(h.now())
	}
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func (h *ContactHandler) fail(c *gin.Context, err error) {
	log.WithError(err).Error("contact: submission failed")
	h.metrics.RecordSubmission(metrics.OutcomeError)
	if c.Writer.Written() {
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
}
