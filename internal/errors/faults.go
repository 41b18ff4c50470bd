package errors

import (
	"errors"
	"fmt"
)

// FaultCategory classifies the failures the trading core can observe
type FaultCategory string

const (
	// Recoverable per-tick faults
	FaultCategoryStrategy  FaultCategory = "STRATEGY"  // one strategy failed; excluded from reconciliation
	FaultCategoryExecution FaultCategory = "EXECUTION" // order executor timed out or rejected
	FaultCategoryFeed      FaultCategory = "FEED"      // market data unavailable for a symbol

	// Deliberate decisions surfaced as errors for logging only
	FaultCategoryRiskVeto FaultCategory = "RISK_VETO"

	// Faults that change orchestrator state or prevent startup
	FaultCategoryCritical FaultCategory = "CRITICAL" // drawdown or daily-loss breach
	FaultCategoryConfig   FaultCategory = "CONFIG"
)

// TradeFault is a categorized error with component context
type TradeFault struct {
	Category   FaultCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
}

// Error implements the error interface
func (f *TradeFault) Error() string {
	if f.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", f.Category, f.Component, f.Operation, f.Message, f.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", f.Category, f.Component, f.Operation, f.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (f *TradeFault) Unwrap() error {
	return f.Underlying
}

// IsRetryable reports whether the operation that produced this fault may be retried
func (f *TradeFault) IsRetryable() bool {
	switch f.Category {
	case FaultCategoryExecution, FaultCategoryFeed:
		return true
	default:
		return false
	}
}

// IsCritical reports whether this fault must force the orchestrator into EmergencyHalted
func (f *TradeFault) IsCritical() bool {
	return f.Category == FaultCategoryCritical
}

// NewFault creates a new categorized fault
func NewFault(category FaultCategory, component, operation, message string) *TradeFault {
	return &TradeFault{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// WrapFault wraps an existing error with fault context
func WrapFault(err error, category FaultCategory, component, operation string) *TradeFault {
	if err == nil {
		return nil
	}
	return &TradeFault{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
	}
}

// CategoryOf extracts the fault category from an error chain, or "" if none
func CategoryOf(err error) FaultCategory {
	var f *TradeFault
	if errors.As(err, &f) {
		return f.Category
	}
	return ""
}

// Common constructors

func NewStrategyFault(strategy string, err error) *TradeFault {
	return WrapFault(err, FaultCategoryStrategy, strategy, "analyze")
}

func NewExecutionFault(operation string, err error) *TradeFault {
	return WrapFault(err, FaultCategoryExecution, "executor", operation)
}

func NewFeedFault(symbol string, err error) *TradeFault {
	return WrapFault(err, FaultCategoryFeed, "feed", symbol)
}

func NewCriticalBreach(message string) *TradeFault {
	return NewFault(FaultCategoryCritical, "risk", "limits", message)
}

func NewConfigFault(operation, message string) *TradeFault {
	return NewFault(FaultCategoryConfig, "config", operation, message)
}
