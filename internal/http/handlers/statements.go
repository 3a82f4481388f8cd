package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/service"
)

// StatementHandler builds and exports monthly statements.
type StatementHandler struct {
	svc    *service.StatementService
	logger *slog.Logger
}

// NewStatementHandler creates a new statement handler.
func NewStatementHandler(svc *service.StatementService, logger *slog.Logger) *StatementHandler {
	return &StatementHandler{svc: svc, logger: logger}
}

// StatementPeriodInput selects a calendar month.
type StatementPeriodInput struct {
	Year  int `path:"year" minimum:"2000" maximum:"9999" doc:"Statement year"`
	Month int `path:"month" minimum:"1" maximum:"12" doc:"Statement month (1-12)"`
}

// StatementOutput is a monthly statement.
type StatementOutput struct {
	Body *service.Statement
}

// Get returns the caller's statement for a month.
func (h *StatementHandler) Get(ctx context.Context, input *StatementPeriodInput) (*StatementOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	st, err := h.svc.Build(ctx, claims.UserID, input.Year, time.Month(input.Month))
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "build statement", err)
	}
	return &StatementOutput{Body: st}, nil
}

// ExportStatementOutput is the stored object location.
type ExportStatementOutput struct {
	Body struct {
		Key string `json:"key" doc:"Object key of the exported statement"`
	}
}

// Export writes the caller's statement for a month to object storage.
func (h *StatementHandler) Export(ctx context.Context, input *StatementPeriodInput) (*ExportStatementOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	key, err := h.svc.Export(ctx, claims.UserID, input.Year, time.Month(input.Month))
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "export statement", err)
	}
	out := &ExportStatementOutput{}
	out.Body.Key = key
	return out, nil
}
