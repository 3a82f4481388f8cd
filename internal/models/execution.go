package models

import "time"

// ExecutionStatus is the outcome of one execution attempt.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

// Execution is the immutable record of one code execution attempt.
// Daily free and subscription usage is counted from these records.
type Execution struct {
	ID                 string           `json:"id"`
	UserID             string           `json:"user_id"`
	CreditSource       CreditSourceKind `json:"credit_source"`
	PromotionalEntryID *string          `json:"promotional_entry_id,omitempty"`
	Language           string           `json:"language"`
	Code               string           `json:"code"` // plaintext in memory, encrypted at rest
	Input              string           `json:"input,omitempty"`
	Output             string           `json:"output,omitempty"`
	Error              string           `json:"error,omitempty"`
	Status             ExecutionStatus  `json:"status"`
	ExecutionTimeMs    int64            `json:"execution_time_ms"`
	CreditsUsed        int              `json:"credits_used"`
	PlanAtTime         string           `json:"plan_at_time"`
	CreatedAt          time.Time        `json:"created_at"`
}

// LanguageUsage summarises executions for one language.
type LanguageUsage struct {
	Language   string `json:"language"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	Credits    int    `json:"credits"`
}
