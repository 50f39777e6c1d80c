package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/aiagenz/billing/internal/domain"
	"github.com/aiagenz/billing/pkg/payment"
)

// WebhookEventRecorder keeps the audit trail of webhook deliveries.
type WebhookEventRecorder interface {
	Record(ctx context.Context, ev *domain.WebhookEvent) (bool, error)
	MarkProcessed(ctx context.Context, id int64, processErr string) error
}

// PaymentHandler receives gateway callbacks.
type PaymentHandler struct {
	svc     SubscriptionManager
	gateway payment.Gateway
	events  WebhookEventRecorder
	log     *slog.Logger
}

func NewPaymentHandler(svc SubscriptionManager, gateway payment.Gateway, events WebhookEventRecorder, log *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		svc:     svc,
		gateway: gateway,
		events:  events,
		log:     log.With(slog.String("component", "webhook")),
	}
}

// Webhook handles POST /api/payment/webhook.
//
// Any non-2xx response makes the gateway redeliver, so only a processing
// failure or a rejected delivery gets one. Unknown orders are acknowledged.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		JSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}

	var payload payment.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		JSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if err := Validate(payload); err != nil {
		msg := "invalid webhook payload"
		if appErr, ok := domain.AsAppError(err); ok {
			msg = appErr.Message
		}
		JSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	ip := ClientIP(r)
	valid := h.gateway.VerifyWebhook(payload.Data, payload.Signature)
	ev := &domain.WebhookEvent{
		Provider:       h.gateway.Name(),
		OrderCode:      payload.Data.OrderCode,
		PayloadHash:    domain.HashPayload(body),
		PayloadJSON:    auditPayload(body, valid),
		SignatureValid: valid,
		RemoteAddr:     ip,
	}
	created, err := h.events.Record(ctx, ev)
	if err != nil {
		h.log.ErrorContext(ctx, "failed to record webhook event", slog.Int64("order_code", ev.OrderCode), slog.Any("error", err))
		JSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record webhook"})
		return
	}
	log := h.log.With(slog.Int64("event_id", ev.ID), slog.Int64("order_code", ev.OrderCode))

	if !valid {
		log.WarnContext(ctx, "webhook signature rejected",
			slog.String("remote_ip", ip),
			slog.String("status", payload.Data.Status),
			slog.Bool("repeat", !created),
		)
		h.markProcessed(ctx, log, ev.ID, payment.ErrInvalidSignature.Error())
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	// Repeated bodies are processed again; the state change is idempotent and
	// an earlier attempt may have failed.
	found, err := h.svc.HandleWebhook(ctx, payload.Data)
	if err != nil {
		h.markProcessed(ctx, log, ev.ID, err.Error())
		Error(w, r, err)
		return
	}
	h.markProcessed(ctx, log, ev.ID, "")

	JSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"found":     found,
		"duplicate": !created,
	})
}

// rejectedPayloadBytes caps how much of an unverified body is stored.
const rejectedPayloadBytes = 1 << 10

// auditPayload returns the body to store with an event. Unverified bodies are
// cut to rejectedPayloadBytes on a rune boundary; the hash still covers all of it.
func auditPayload(body []byte, valid bool) string {
	if valid || len(body) <= rejectedPayloadBytes {
		return string(body)
	}
	cut := rejectedPayloadBytes
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut])
}

func (h *PaymentHandler) markProcessed(ctx context.Context, log *slog.Logger, id int64, processErr string) {
	if err := h.events.MarkProcessed(ctx, id, processErr); err != nil {
		log.ErrorContext(ctx, "failed to mark webhook event", slog.Any("error", err))
	}
}

// ClientIP returns the client IP, preferring proxy headers if available.
func ClientIP(r *http.Request) string {
	// Check X-Real-IP first (set by Nginx)
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	// Check X-Forwarded-For (first entry is the original client)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		return strings.TrimSpace(parts[0])
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
