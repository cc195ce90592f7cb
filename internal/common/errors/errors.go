// Package errors provides standardized error handling for ledger operations and their BPMN jobs.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Ledger business errors
const (
	ErrCodeNotFound              ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists         ErrorCode = "ALREADY_EXISTS"
	ErrCodeInsufficientBalance   ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeInvalidStatus         ErrorCode = "INVALID_STATUS"
	ErrCodeInvalidInput          ErrorCode = "INVALID_INPUT"
	ErrCodeSupplyExceeded        ErrorCode = "SUPPLY_EXCEEDED"
	ErrCodeFundingTargetExceeded ErrorCode = "FUNDING_TARGET_EXCEEDED"
)

// Technical errors
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeTransactionFailed        ErrorCode = "TRANSACTION_FAILED"
	ErrCodeCacheFailed              ErrorCode = "CACHE_FAILED"
	ErrCodeSettlementFailed         ErrorCode = "SETTLEMENT_FAILED"
	ErrCodeSearchIndexFailed        ErrorCode = "SEARCH_INDEX_FAILED"
	ErrCodePublishFailed            ErrorCode = "PUBLISH_FAILED"
	ErrCodeWorkflowEngineFailed     ErrorCode = "WORKFLOW_ENGINE_FAILED"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. A *StandardError unwraps to the sentinel of its code.
var (
	ErrNotFound              = errors.New(string(ErrCodeNotFound))
	ErrAlreadyExists         = errors.New(string(ErrCodeAlreadyExists))
	ErrInsufficientBalance   = errors.New(string(ErrCodeInsufficientBalance))
	ErrInvalidStatus         = errors.New(string(ErrCodeInvalidStatus))
	ErrInvalidInput          = errors.New(string(ErrCodeInvalidInput))
	ErrSupplyExceeded        = errors.New(string(ErrCodeSupplyExceeded))
	ErrFundingTargetExceeded = errors.New(string(ErrCodeFundingTargetExceeded))
	ErrDatabase              = errors.New(string(ErrCodeQueryExecutionFailed))
	ErrSettlement            = errors.New(string(ErrCodeSettlementFailed))
)

var sentinels = map[ErrorCode]error{
	ErrCodeNotFound:                 ErrNotFound,
	ErrCodeAlreadyExists:            ErrAlreadyExists,
	ErrCodeInsufficientBalance:      ErrInsufficientBalance,
	ErrCodeInvalidStatus:            ErrInvalidStatus,
	ErrCodeInvalidInput:             ErrInvalidInput,
	ErrCodeSupplyExceeded:           ErrSupplyExceeded,
	ErrCodeFundingTargetExceeded:    ErrFundingTargetExceeded,
	ErrCodeDatabaseConnectionFailed: ErrDatabase,
	ErrCodeQueryExecutionFailed:     ErrDatabase,
	ErrCodeTransactionFailed:        ErrDatabase,
	ErrCodeSettlementFailed:         ErrSettlement,
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes both the code sentinel and the underlying cause.
func (e *StandardError) Unwrap() []error {
	out := make([]error, 0, 2)
	if s, ok := sentinels[e.Code]; ok {
		out = append(out, s)
	}
	if e.cause != nil {
		out = append(out, e.cause)
	}
	return out
}

// WithMetadata attaches a key to the error metadata and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewNotFoundError reports an absent franchise, token, wallet, holding or record.
func NewNotFoundError(entity, ref string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   ref,
		Metadata:  map[string]interface{}{"entity": entity},
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyExistsError reports a duplicate creation attempt.
func NewAlreadyExistsError(entity, ref string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadyExists,
		Message:   fmt.Sprintf("%s already exists", entity),
		Details:   ref,
		Metadata:  map[string]interface{}{"entity": entity},
		Timestamp: time.Now().UTC(),
	}
}

// NewInsufficientBalanceError reports a burn or outflow larger than the available balance.
func NewInsufficientBalanceError(requested, available string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInsufficientBalance,
		Message:   "Insufficient balance",
		Details:   fmt.Sprintf("requested %s, available %s", requested, available),
		Metadata:  map[string]interface{}{"requested": requested, "available": available},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStatusError reports an operation attempted in an ineligible lifecycle state.
func NewInvalidStatusError(entity, current, attempted string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidStatus,
		Message:   fmt.Sprintf("%s status does not allow this operation", entity),
		Details:   fmt.Sprintf("current status %q, attempted %q", current, attempted),
		Metadata:  map[string]interface{}{"entity": entity, "status": current},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError reports a request that failed validation.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

func NewSupplyExceededError(requested, remaining string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSupplyExceeded,
		Message:   "Mint exceeds remaining token supply",
		Details:   fmt.Sprintf("requested %s, remaining %s", requested, remaining),
		Timestamp: time.Now().UTC(),
	}
}

func NewFundingTargetExceededError(projected, target string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFundingTargetExceeded,
		Message:   "Purchase would exceed the fundraising target",
		Details:   fmt.Sprintf("projected %s, target %s", projected, target),
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseError creates a retryable storage error.
func NewDatabaseError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTransactionFailedError creates a retryable error for a failed begin/commit.
func NewTransactionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransactionFailed,
		Message:   "Database transaction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewSettlementFailedError(ledgerID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSettlementFailed,
		Message:   "Settlement submission failed",
		Details:   fmt.Sprintf("ledgerId: %s, error: %s", ledgerID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewExternalServiceError(code ErrorCode, service string, err error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeTransactionFailed,
		ErrCodeSettlementFailed,
		ErrCodeSearchIndexFailed,
		ErrCodePublishFailed,
		ErrCodeWorkflowEngineFailed:
		return 3

	case ErrCodeCacheFailed:
		return 1

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"errorCategory":     GetErrorCategory(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// Normalize turns any error into a StandardError, keeping the original as cause.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// CodeOf returns the error code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	return Normalize(err).Code
}

// ==========================
// 5. Utility Functions
// ==========================

// IsKnownCode reports whether code is one of the codes defined above.
func IsKnownCode(code ErrorCode) bool {
	switch code {
	case ErrCodeNotFound, ErrCodeAlreadyExists, ErrCodeInsufficientBalance, ErrCodeInvalidStatus,
		ErrCodeInvalidInput, ErrCodeSupplyExceeded, ErrCodeFundingTargetExceeded,
		ErrCodeDatabaseConnectionFailed, ErrCodeQueryExecutionFailed, ErrCodeTransactionFailed,
		ErrCodeCacheFailed, ErrCodeSettlementFailed, ErrCodeSearchIndexFailed, ErrCodePublishFailed,
		ErrCodeWorkflowEngineFailed, ErrCodeInternal:
		return true
	}
	return false
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "TRANSACTION"):
		return "DATABASE"
	case strings.Contains(codeStr, "SETTLEMENT") || strings.Contains(codeStr, "PUBLISH") || strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "WORKFLOW"):
		return "INTEGRATION"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case code == ErrCodeNotFound || code == ErrCodeAlreadyExists:
		return "REGISTRY"
	case strings.Contains(codeStr, "BALANCE") || strings.Contains(codeStr, "SUPPLY") || strings.Contains(codeStr, "FUNDING"):
		return "LEDGER"
	default:
		return "OTHER"
	}
}
