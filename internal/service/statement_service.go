package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jmylchreest/codecredit-api/internal/config"
	"github.com/jmylchreest/codecredit-api/internal/logging"
	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/repository"
)

// ObjectPutter is the subset of the S3 client used to write statements.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Statement is one user's ledger for a calendar month.
type Statement struct {
	UserID       string                `json:"user_id"`
	Period       string                `json:"period"` // yyyy-mm
	From         time.Time             `json:"from"`
	To           time.Time             `json:"to"`
	Transactions []*models.Transaction `json:"transactions"`
	NetPaisa     int64                 `json:"net_paisa"`
	GeneratedAt  time.Time             `json:"generated_at"`
}

// StatementService exports monthly transaction statements to object storage.
type StatementService struct {
	store   *repository.Store
	billing *config.BillingConfig
	client  ObjectPutter
	bucket  string
	now     Clock
	logger  *slog.Logger
}

// NewStatementService creates a new statement service. A nil client
// disables exports.
func NewStatementService(store *repository.Store, billing *config.BillingConfig, client ObjectPutter, bucket string, now Clock, logger *slog.Logger) *StatementService {
	return &StatementService{
		store:   store,
		billing: billing,
		client:  client,
		bucket:  bucket,
		now:     now,
		logger:  logger.With("component", "statement"),
	}
}

// IsEnabled returns whether storage is configured.
func (s *StatementService) IsEnabled() bool {
	return s.client != nil
}

// StatementKey returns the object key for a user's monthly statement.
func StatementKey(userID string, year int, month time.Month) string {
	return fmt.Sprintf("statements/%s/%04d-%02d.json", userID, year, int(month))
}

// Build assembles the statement without writing it.
func (s *StatementService) Build(ctx context.Context, userID string, year int, month time.Month) (*Statement, error) {
	if month < time.January || month > time.December {
		return nil, invalidInput("month must be 1-12, got %d", month)
	}
	user, err := s.store.User.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", userID)
	}

	loc := s.billing.Location
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 1, 0)

	txs, err := s.store.Transaction.ListByUserBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	st := &Statement{
		UserID:       userID,
		Period:       fmt.Sprintf("%04d-%02d", year, int(month)),
		From:         from,
		To:           to,
		Transactions: txs,
		GeneratedAt:  s.now(),
	}
	if st.Transactions == nil {
		st.Transactions = []*models.Transaction{}
	}
	for _, tx := range txs {
		st.NetPaisa += tx.AmountPaisa
	}
	return st, nil
}

// Export writes the month's statement and returns its object key.
func (s *StatementService) Export(ctx context.Context, userID string, year int, month time.Month) (string, error) {
	if !s.IsEnabled() {
		return "", ErrStorageDisabled
	}
	st, err := s.Build(ctx, userID, year, month)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("failed to marshal statement: %w", err)
	}

	key := StatementKey(userID, year, month)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload statement: %w", err)
	}

	logging.FromContext(ctx, s.logger).Info("statement exported",
		"user_id", userID, "key", key, "transactions", len(st.Transactions))
	return key, nil
}
