package validator

import (
	"encoding/json"
	"fmt"
)

// Error is the validator's error type, grounded on the teacher's
// {Code, Type, Message, Details, Cause} shape
// (dan-strohschein-syndrdb-drivers/client/errors.go) generalized with a
// QueryID field per spec §7's propagation rule that every surfaced error
// carries the originating query id.
type Error struct {
	Code    string
	Type    string
	Message string
	QueryID string
	Risk    Risk
	Details map[string]interface{}
	Cause   error
}

func (e *Error) Error() string {
	data := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
		"risk":    e.Risk.String(),
	}
	if e.QueryID != "" {
		data["query_id"] = e.QueryID
	}
	if len(e.Details) > 0 {
		data["details"] = e.Details
	}
	if e.Cause != nil {
		data["cause"] = e.Cause.Error()
	}
	b, _ := json.Marshal(data)
	return string(b)
}

// FormatError renders the error either tersely (production) or with full
// detail (debug mode), mirroring the teacher's FormatError(debugMode bool).
func (e *Error) FormatError(debugMode bool) string {
	if !debugMode {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(code, msg string, risk Risk, details map[string]interface{}) *Error {
	return &Error{Code: code, Type: "ValidationError", Message: msg, Risk: risk, Details: details}
}

// InjectionError is a specialized Error with critical risk, always rejected,
// and always flagged for audit per spec §7.
type InjectionError struct {
	Error
	Pattern string
}

func newInjectionError(pattern, matched string) *InjectionError {
	return &InjectionError{
		Error: Error{
			Code:    "E_INJECTION_DETECTED",
			Type:    "InjectionDetected",
			Message: "query matched a forbidden security pattern",
			Risk:    RiskCritical,
			Details: map[string]interface{}{"pattern": pattern, "matched": matched},
		},
		Pattern: pattern,
	}
}
