package models

import "time"

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TxDeposit                  TransactionType = "deposit"
	TxDepositRefund            TransactionType = "deposit_refund"
	TxCreditPurchase           TransactionType = "credit_purchase"
	TxSubscriptionPayment      TransactionType = "subscription_payment"
	TxSubscriptionUpgrade      TransactionType = "subscription_upgrade"
	TxSubscriptionDowngrade    TransactionType = "subscription_downgrade"
	TxSubscriptionCancellation TransactionType = "subscription_cancellation"
	TxSubscriptionActivation   TransactionType = "subscription_activation"
	TxSubscriptionRenewal      TransactionType = "subscription_renewal"
	TxSubscriptionExpiry       TransactionType = "subscription_expiry"
	TxSubscriptionRefund       TransactionType = "subscription_refund"
	TxAdminGrant               TransactionType = "admin_grant"
)

// TransactionStatus is the settlement status of a ledger entry.
type TransactionStatus string

const (
	TxStatusCompleted TransactionStatus = "completed"
	TxStatusPending   TransactionStatus = "pending"
	TxStatusFailed    TransactionStatus = "failed"
)

// Transaction is an append-only money or credit movement.
// AmountPaisa is signed from the wallet's point of view: deposits and
// refunds are positive, payments are negative.
type Transaction struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	Type           TransactionType   `json:"type"`
	AmountPaisa    int64             `json:"amount_paisa"`
	Credits        int               `json:"credits"`
	Description    string            `json:"description"`
	Status         TransactionStatus `json:"status"`
	SubscriptionID *string           `json:"subscription_id,omitempty"`
	ExternalRef    *string           `json:"external_ref,omitempty"` // payment provider ID, unique per type
	CreatedAt      time.Time         `json:"created_at"`
}
