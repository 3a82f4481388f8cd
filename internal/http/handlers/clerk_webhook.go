package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	svix "github.com/svix/svix-webhooks/go"

	"github.com/jmylchreest/codecredit-api/internal/service"
)

const maxWebhookBodySize = 65536 // 64KB

// ClerkWebhookHandler creates accounts from Clerk user events.
type ClerkWebhookHandler struct {
	secret string
	subSvc *service.SubscriptionService
	logger *slog.Logger
}

// NewClerkWebhookHandler creates a new Clerk webhook handler.
func NewClerkWebhookHandler(secret string, subSvc *service.SubscriptionService, logger *slog.Logger) *ClerkWebhookHandler {
	return &ClerkWebhookHandler{
		secret: secret,
		subSvc: subSvc,
		logger: logger,
	}
}

// ClerkWebhookEvent represents a Clerk webhook event.
type ClerkWebhookEvent struct {
	Type   string          `json:"type"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

// ClerkUserData is the subset of a Clerk user object we use.
type ClerkUserData struct {
	ID                    string `json:"id"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	PrimaryEmailAddressID string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

// PrimaryEmail returns the primary address, or the first one listed.
func (u *ClerkUserData) PrimaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

// DisplayName joins first and last name.
func (u *ClerkUserData) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HandleWebhook processes incoming Clerk webhooks.
func (h *ClerkWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	wh, err := svix.NewWebhook(h.secret)
	if err != nil {
		h.logger.Error("failed to create webhook verifier", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	headers := http.Header{}
	headers.Set("svix-id", r.Header.Get("svix-id"))
	headers.Set("svix-timestamp", r.Header.Get("svix-timestamp"))
	headers.Set("svix-signature", r.Header.Get("svix-signature"))
	if err := wh.Verify(payload, headers); err != nil {
		h.logger.Warn("failed to verify webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event ClerkWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("failed to parse webhook event", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.handleEvent(r.Context(), event); err != nil {
		// Retrying will not fix a business rule failure.
		h.logger.Error("failed to handle webhook event", "type", event.Type, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *ClerkWebhookHandler) handleEvent(ctx context.Context, event ClerkWebhookEvent) error {
	h.logger.Info("received Clerk webhook", "type", event.Type)

	switch event.Type {
	case "user.created":
		var data ClerkUserData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("failed to parse user data: %w", err)
		}
		if data.ID == "" {
			return fmt.Errorf("user event without id")
		}
		if _, err := h.subSvc.Register(ctx, data.ID, data.PrimaryEmail(), data.DisplayName()); err != nil {
			return fmt.Errorf("failed to register user: %w", err)
		}
		h.logger.Info("registered user from Clerk", "user_id", data.ID)
	default:
		h.logger.Debug("ignoring Clerk webhook", "type", event.Type)
	}
	return nil
}
