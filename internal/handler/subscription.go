package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/aiagenz/billing/internal/domain"
	"github.com/aiagenz/billing/pkg/payment"
	"github.com/aiagenz/billing/pkg/qrcode"
	"github.com/go-chi/chi/v5"
)

// SubscriptionManager is the lifecycle surface the HTTP layer drives.
type SubscriptionManager interface {
	CreateSubscription(ctx context.Context, userID string, req domain.CreateSubscriptionRequest) (*domain.CheckoutResponse, error)
	HandleWebhook(ctx context.Context, data payment.WebhookData) (bool, error)
	GetCurrentSubscription(ctx context.Context, userID string) (*domain.SubscriptionView, error)
	ListSubscriptions(ctx context.Context, userID string) ([]*domain.SubscriptionView, error)
	GetSubscription(ctx context.Context, userID, id string) (*domain.SubscriptionView, error)
}

type SubscriptionHandler struct {
	svc SubscriptionManager
}

func NewSubscriptionHandler(svc SubscriptionManager) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

// Create handles POST /api/subscriptions.
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req domain.CreateSubscriptionRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := Validate(req); err != nil {
		Error(w, r, err)
		return
	}

	resp, err := h.svc.CreateSubscription(r.Context(), uid, req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, resp)
}

// Current handles GET /api/subscriptions/current.
func (h *SubscriptionHandler) Current(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	view, err := h.svc.GetCurrentSubscription(r.Context(), uid)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"subscription": view})
}

// List handles GET /api/subscriptions.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	views, err := h.svc.ListSubscriptions(r.Context(), uid)
	if err != nil {
		Error(w, r, err)
		return
	}
	if views == nil {
		views = []*domain.SubscriptionView{}
	}
	JSON(w, http.StatusOK, views)
}

// Get handles GET /api/subscriptions/{id}.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	view, err := h.svc.GetSubscription(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

// QR handles GET /api/subscriptions/{id}/qr and renders the gateway QR
// payload of a pending subscription as a PNG.
func (h *SubscriptionHandler) QR(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	view, err := h.svc.GetSubscription(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		Error(w, r, err)
		return
	}
	if view.Status != domain.StatusPending || view.QRCode == "" {
		Error(w, r, domain.ErrNotFound("no payment QR for this subscription", nil))
		return
	}

	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	png, err := qrcode.PNG(view.QRCode, size)
	if err != nil {
		Error(w, r, domain.ErrInternal("failed to render QR code", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
