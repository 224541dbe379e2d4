package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"course-entitlement-platform/internal/domain"
	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/infra/logging"
	"course-entitlement-platform/internal/infra/metrics"
	"course-entitlement-platform/internal/usecase"
)

const (
	signatureHeader    = "Processor-Signature"
	signatureTolerance = 5 * time.Minute
	maxEventBytes      = 1 << 20 // 1 MiB
)

// WebhookHandler terminates the processor event feed. Response codes carry
// retry semantics: 400 means the delivery is unprocessable and must not be
// retried, 200 acknowledges, 500 asks the sender to redeliver.
type WebhookHandler struct {
	uc     usecase.WebhookUseCase
	secret []byte
	now    func() time.Time
	log    *zerolog.Logger
}

func NewWebhookHandler(uc usecase.WebhookUseCase, secret string, logger *zerolog.Logger) *WebhookHandler {
	l := logger.With().Str("component", "WebhookHandler").Logger()
	return &WebhookHandler{uc: uc, secret: []byte(secret), now: time.Now, log: &l}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		metrics.IncWebhookRejected("body_read")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := h.verifySignature(r.Header.Get(signatureHeader), body); err != nil {
		metrics.IncWebhookRejected("signature")
		h.log.Warn().Err(err).Msg("webhook signature rejected")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ev, err := model.DecodeEvent(body)
	if err != nil {
		// Malformed payloads never become processable; tell the sender to
		// stop redelivering.
		metrics.IncWebhookRejected("malformed")
		h.log.Warn().Err(err).Msg("webhook payload rejected")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// Per-event outcomes are counted in the use case; the transport only
	// counts deliveries it rejects before dispatch.
	ctx := logging.WithEventID(r.Context(), ev.ID)
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		ctx = logging.WithTraceID(ctx, reqID)
	}
	if err := h.uc.HandleEvent(ctx, ev); err != nil {
		logging.With(ctx, h.log).Error().Err(err).Str("event_type", string(ev.Type)).Msg("event processing failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// verifySignature checks the "t=<unix>,v1=<hex>" header: an HMAC-SHA256 of
// "<t>.<body>" under the shared secret, with a bounded timestamp skew.
func (h *WebhookHandler) verifySignature(header string, body []byte) error {
	if len(h.secret) == 0 {
		return errors.New("webhook secret not configured")
	}
	var ts string
	var sigs [][]byte
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sig, err := hex.DecodeString(v)
			if err == nil {
				sigs = append(sigs, sig)
			}
		}
	}
	if ts == "" || len(sigs) == 0 {
		return errors.New("missing signature elements")
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return errors.New("bad timestamp")
	}
	if d := h.now().Sub(time.Unix(unix, 0)); d > signatureTolerance || d < -signatureTolerance {
		return fmt.Errorf("timestamp outside tolerance: %w", domain.ErrInvalidArgument)
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	want := mac.Sum(nil)
	for _, sig := range sigs {
		if hmac.Equal(sig, want) {
			return nil
		}
	}
	return errors.New("no matching signature")
}
