package handlers

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/service"
)

// WalletHandler exposes credit purchases and the transaction log.
type WalletHandler struct {
	svc    *service.WalletService
	logger *slog.Logger
}

// NewWalletHandler creates a new wallet handler.
func NewWalletHandler(svc *service.WalletService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{svc: svc, logger: logger}
}

// PurchaseCreditsInput is a credit purchase request.
type PurchaseCreditsInput struct {
	Body struct {
		Credits int `json:"credits" minimum:"1" doc:"Number of credits to buy from the wallet"`
	}
}

// TransactionOutput is one ledger entry.
type TransactionOutput struct {
	Body *models.Transaction
}

// PurchaseCredits converts wallet balance into purchased credits.
func (h *WalletHandler) PurchaseCredits(ctx context.Context, input *PurchaseCreditsInput) (*TransactionOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := h.svc.PurchaseCredits(ctx, claims.UserID, input.Body.Credits)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "purchase credits", err)
	}
	return &TransactionOutput{Body: tx}, nil
}

// ListTransactionsOutput is a page of ledger entries.
type ListTransactionsOutput struct {
	Body struct {
		Transactions []*models.Transaction `json:"transactions"`
		Limit        int                   `json:"limit"`
		Offset       int                   `json:"offset"`
	}
}

func transactionsPage(txs []*models.Transaction, page *PageInput) *ListTransactionsOutput {
	out := &ListTransactionsOutput{}
	out.Body.Transactions = txs
	out.Body.Limit = page.Limit
	out.Body.Offset = page.Offset
	return out
}

// Transactions returns the caller's ledger, newest first.
func (h *WalletHandler) Transactions(ctx context.Context, input *PageInput) (*ListTransactionsOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := h.svc.Transactions(ctx, claims.UserID, input.Limit, input.Offset)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "list transactions", err)
	}
	return transactionsPage(txs, input), nil
}
