package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/jmylchreest/codecredit-api/internal/service"
)

// MetadataUserID is the checkout session metadata key carrying our user ID.
const MetadataUserID = "user_id"

// StripeWebhookHandler turns Stripe payments into wallet deposits.
type StripeWebhookHandler struct {
	secret    string
	walletSvc *service.WalletService
	logger    *slog.Logger
}

// NewStripeWebhookHandler creates a new Stripe webhook handler.
func NewStripeWebhookHandler(secret string, walletSvc *service.WalletService, logger *slog.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		secret:    secret,
		walletSvc: walletSvc,
		logger:    logger,
	}
}

// HandleWebhook processes incoming Stripe webhooks.
// This is a raw HTTP handler since the signature covers the exact body bytes.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.Warn("failed to verify webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	if err := h.handleEvent(r.Context(), event); err != nil {
		h.logger.Error("failed to handle webhook event", "type", event.Type, "id", event.ID, "error", err)
		// Deposits are idempotent on the payment ID, so storage failures are
		// safe to retry. Bad payloads are not.
		if errors.Is(err, service.ErrInvalidInput) || errors.Is(err, service.ErrNotFound) {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *StripeWebhookHandler) handleEvent(ctx context.Context, event stripe.Event) error {
	h.logger.Info("received Stripe webhook", "type", event.Type, "id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutComplete(ctx, event)
	case "charge.refunded":
		return h.handleChargeRefunded(ctx, event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		return nil
	}
}

// paymentRef identifies a payment across checkout and refund events.
func paymentRef(pi *stripe.PaymentIntent, fallback string) string {
	if pi != nil && pi.ID != "" {
		return pi.ID
	}
	return fallback
}

func (h *StripeWebhookHandler) handleCheckoutComplete(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}
	if session.PaymentStatus != "" && session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		h.logger.Info("checkout session not paid", "session_id", session.ID, "payment_status", session.PaymentStatus)
		return nil
	}

	userID := session.Metadata[MetadataUserID]
	if userID == "" {
		userID = session.ClientReferenceID
	}
	if userID == "" {
		h.logger.Warn("checkout session missing user ID", "session_id", session.ID)
		return nil
	}

	ref := paymentRef(session.PaymentIntent, session.ID)
	tx, err := h.walletSvc.Deposit(ctx, userID, session.AmountTotal, ref)
	if err != nil {
		return fmt.Errorf("failed to record deposit: %w", err)
	}

	h.logger.Info("recorded wallet deposit",
		"user_id", userID,
		"transaction_id", tx.ID,
		"amount_paisa", session.AmountTotal,
		"payment_id", ref,
	)
	return nil
}

func (h *StripeWebhookHandler) handleChargeRefunded(ctx context.Context, event stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return fmt.Errorf("failed to unmarshal charge: %w", err)
	}
	if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
		h.logger.Warn("refunded charge missing payment intent", "charge_id", charge.ID)
		return nil
	}

	tx, err := h.walletSvc.ReverseDeposit(ctx, charge.PaymentIntent.ID, charge.AmountRefunded)
	if err != nil {
		return fmt.Errorf("failed to reverse deposit: %w", err)
	}

	h.logger.Info("processed refund",
		"user_id", tx.UserID,
		"charge_id", charge.ID,
		"amount_paisa", -tx.AmountPaisa,
	)
	return nil
}
