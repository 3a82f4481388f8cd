package handlers

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/codecredit-api/internal/executor"
	"github.com/jmylchreest/codecredit-api/internal/models"
	"github.com/jmylchreest/codecredit-api/internal/service"
)

// ExecutionHandler runs code and reports execution history.
type ExecutionHandler struct {
	svc    *service.ExecutionService
	logger *slog.Logger
}

// NewExecutionHandler creates a new execution handler.
func NewExecutionHandler(svc *service.ExecutionService, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{svc: svc, logger: logger}
}

// ExecuteInput is a code execution request.
type ExecuteInput struct {
	Body struct {
		Language string `json:"language" minLength:"1" doc:"Runtime to use" example:"python"`
		Code     string `json:"code" minLength:"1" doc:"Source code to run"`
		Input    string `json:"input,omitempty" doc:"Standard input passed to the program"`
	}
}

// ExecuteOutput is the execution result.
type ExecuteOutput struct {
	Body *service.ExecutionResult
}

// Execute consumes one credit and runs the submitted code.
func (h *ExecutionHandler) Execute(ctx context.Context, input *ExecuteInput) (*ExecuteOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	res, err := h.svc.Execute(ctx, claims.UserID, service.ExecuteInput{
		Language: input.Body.Language,
		Code:     input.Body.Code,
		Input:    input.Body.Input,
	})
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "execute code", err)
	}
	return &ExecuteOutput{Body: res}, nil
}

// ListExecutionsOutput is a page of executions.
type ListExecutionsOutput struct {
	Body struct {
		Executions []*models.Execution `json:"executions"`
		Limit      int                 `json:"limit"`
		Offset     int                 `json:"offset"`
	}
}

// List returns the caller's executions, newest first.
func (h *ExecutionHandler) List(ctx context.Context, input *PageInput) (*ListExecutionsOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	execs, err := h.svc.List(ctx, claims.UserID, input.Limit, input.Offset)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "list executions", err)
	}
	out := &ListExecutionsOutput{}
	out.Body.Executions = execs
	out.Body.Limit = input.Limit
	out.Body.Offset = input.Offset
	return out, nil
}

// UsageOutput is per-language usage.
type UsageOutput struct {
	Body struct {
		Usage []models.LanguageUsage `json:"usage"`
	}
}

// Usage returns the caller's per-language execution counts.
func (h *ExecutionHandler) Usage(ctx context.Context, _ *struct{}) (*UsageOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	usage, err := h.svc.UsageByLanguage(ctx, claims.UserID)
	if err != nil {
		return nil, toHTTPError(ctx, h.logger, "get usage", err)
	}
	out := &UsageOutput{}
	out.Body.Usage = usage
	return out, nil
}

// LanguagesOutput lists supported runtimes.
type LanguagesOutput struct {
	Body struct {
		Languages []string `json:"languages"`
	}
}

// ListLanguages returns the runtimes the executor accepts.
func ListLanguages(_ context.Context, _ *struct{}) (*LanguagesOutput, error) {
	out := &LanguagesOutput{}
	out.Body.Languages = executor.Languages()
	return out, nil
}
