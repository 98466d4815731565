package errors

import (
	stderrors "errors"
)

type ErrorCode string

const (
	CodeInvalidStatus        ErrorCode = "invalid_status"
	CodeNotFound             ErrorCode = "not_found"
	CodeReferentialViolation ErrorCode = "referential_violation"
	CodeStorageFailure       ErrorCode = "storage_failure"
	CodeMalformedInput       ErrorCode = "malformed_input"
)

// Sentinels match any ServiceError carrying the same code, so callers can
// write errors.Is(err, ErrNotFound) regardless of the message.
var (
	ErrInvalidStatus        = ServiceError{Code: CodeInvalidStatus, Message: "invalid status"}
	ErrNotFound             = ServiceError{Code: CodeNotFound, Message: "not found"}
	ErrReferentialViolation = ServiceError{Code: CodeReferentialViolation, Message: "referenced batch does not exist"}
	ErrStorageFailure       = ServiceError{Code: CodeStorageFailure, Message: "storage failure"}
	ErrMalformedInput       = ServiceError{Code: CodeMalformedInput, Message: "malformed input"}
)

type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func New(code ErrorCode, message string, err error) ServiceError {
	return ServiceError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func (se ServiceError) Error() string {
	if se.Err != nil {
		return se.Message + ": " + se.Err.Error()
	}
	return se.Message
}

func (se ServiceError) Unwrap() error {
	return se.Err
}

func (se ServiceError) Is(target error) bool {
	var t ServiceError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == se.Code
}

// CodeOf returns the code of the first ServiceError in the chain or an empty
// code when err carries none.
func CodeOf(err error) ErrorCode {
	var se ServiceError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

func InvalidStatus(message string) ServiceError {
	return New(CodeInvalidStatus, message, nil)
}

func NotFound(message string) ServiceError {
	return New(CodeNotFound, message, nil)
}

func ReferentialViolation(message string) ServiceError {
	return New(CodeReferentialViolation, message, nil)
}

func MalformedInput(message string) ServiceError {
	return New(CodeMalformedInput, message, nil)
}

// StorageFailure wraps an error coming from the persistence layer.
func StorageFailure(message string, err error) ServiceError {
	return New(CodeStorageFailure, message, err)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}
