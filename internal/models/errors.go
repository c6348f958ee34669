package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures
type ErrorKind string

const (
	KindInsufficientData         ErrorKind = "InsufficientData"
	KindInvalidPriceData         ErrorKind = "InvalidPriceData"
	KindInvalidVolatility        ErrorKind = "InvalidVolatility"
	KindExpiredContract          ErrorKind = "ExpiredContract"
	KindNoPricingData            ErrorKind = "NoPricingData"
	KindMissingUnderlyingMetrics ErrorKind = "MissingUnderlyingMetrics"
	KindInvalidConfig            ErrorKind = "InvalidConfig"
)

// Sentinels for errors.Is matching. Every EngineError matches the sentinel of its kind.
var (
	ErrInsufficientData         = errors.New("insufficient price data")
	ErrInvalidPriceData         = errors.New("invalid price data")
	ErrInvalidVolatility        = errors.New("invalid volatility")
	ErrExpiredContract          = errors.New("contract expired")
	ErrNoPricingData            = errors.New("no pricing data")
	ErrMissingUnderlyingMetrics = errors.New("missing underlying metrics")
	ErrInvalidConfig            = errors.New("invalid configuration")
)

var kindSentinels = map[ErrorKind]error{
	KindInsufficientData:         ErrInsufficientData,
	KindInvalidPriceData:         ErrInvalidPriceData,
	KindInvalidVolatility:        ErrInvalidVolatility,
	KindExpiredContract:          ErrExpiredContract,
	KindNoPricingData:            ErrNoPricingData,
	KindMissingUnderlyingMetrics: ErrMissingUnderlyingMetrics,
	KindInvalidConfig:            ErrInvalidConfig,
}

// EngineError is a structured engine failure scoped to a symbol or contract
type EngineError struct {
	Kind   ErrorKind
	Symbol string
	Detail string
	Err    error
}

// NewEngineError creates an EngineError of the given kind
func NewEngineError(kind ErrorKind, symbol, detail string) *EngineError {
	return &EngineError{Kind: kind, Symbol: symbol, Detail: detail}
}

// Error returns the error message string.
func (e *EngineError) Error() string {
	msg := string(e.Kind)
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		msg = sentinel.Error()
	}
	if e.Symbol != "" {
		msg = e.Symbol + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the sentinel error of the kind
func (e *EngineError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from an error chain, or "" when the error is not an engine error
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}

// InvalidConfigf creates an InvalidConfig error with a formatted detail
func InvalidConfigf(format string, args ...interface{}) *EngineError {
	return &EngineError{Kind: KindInvalidConfig, Detail: fmt.Sprintf(format, args...)}
}

// SymbolError reports a per-symbol failure in an aggregate response
type SymbolError struct {
	Symbol string    `json:"symbol"`
	Kind   ErrorKind `json:"kind,omitempty"`
	Error  string    `json:"error"`
}

// NewSymbolError builds a SymbolError from any error
func NewSymbolError(symbol string, err error) SymbolError {
	return SymbolError{Symbol: symbol, Kind: KindOf(err), Error: err.Error()}
}

// WithSymbol attaches a symbol to an engine error without mutating the original
func WithSymbol(err error, symbol string) error {
	var ee *EngineError
	if !errors.As(err, &ee) {
		return err
	}
	scoped := *ee
	scoped.Symbol = symbol
	return &scoped
}
