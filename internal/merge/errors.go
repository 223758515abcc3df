package merge

import "fmt"

// ValidationError reports a candidate record failing a specific rule. The
// whole batch (strict) or the record (lenient) is rejected; the dataset file
// is never touched by the failing record.
type ValidationError struct {
	RecordID string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validate %s: %s", e.RecordID, e.Reason)
	}
	return fmt.Sprintf("validate %s [%s]: %s", e.RecordID, e.Field, e.Reason)
}

// DanglingReferenceError is a ValidationError for a broken foreign-key
// reference (unknown parent event or indicator code).
type DanglingReferenceError struct {
	ValidationError
	Ref string
}

// Unwrap exposes the embedded ValidationError so errors.As matches both
// types.
func (e *DanglingReferenceError) Unwrap() error {
	return &e.ValidationError
}

func invalid(recordID, field, format string, args ...any) *ValidationError {
	return &ValidationError{RecordID: recordID, Field: field, Reason: fmt.Sprintf(format, args...)}
}

func dangling(recordID, field, ref, format string, args ...any) *DanglingReferenceError {
	return &DanglingReferenceError{
		ValidationError: ValidationError{RecordID: recordID, Field: field, Reason: fmt.Sprintf(format, args...)},
		Ref:             ref,
	}
}
