package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeIntegrationMissing Code = "INTEGRATION_NOT_FOUND"
	CodeCredentialMissing  Code = "MISSING_CREDENTIAL"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeRateLimitExhausted Code = "RATE_LIMIT_EXHAUSTED"
	CodeUpstreamAPI        Code = "UPSTREAM_API_ERROR"
	CodePersistence        Code = "PERSISTENCE_ERROR"
	CodeDependency         Code = "DEPENDENCY_ERROR"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// Metadata describes how callers should treat a classified error.
type Metadata struct {
	// Retryable means a later rerun of the whole job may succeed. It never
	// implies the failing operation should be retried inside the run.
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		Retryable:      false,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeIntegrationMissing: {
		Retryable:      false,
		PublicMessage:  "integration not found",
		DetailsAllowed: false,
	},
	CodeCredentialMissing: {
		Retryable:      false,
		PublicMessage:  "integration credential missing",
		DetailsAllowed: false,
	},
	CodeRateLimited: {
		Retryable:      true,
		PublicMessage:  "platform rate limit hit",
		DetailsAllowed: true,
	},
	CodeRateLimitExhausted: {
		Retryable:      true,
		PublicMessage:  "platform rate limit backoff exhausted",
		DetailsAllowed: true,
	},
	CodeUpstreamAPI: {
		Retryable:      false,
		PublicMessage:  "platform API request failed",
		DetailsAllowed: true,
	},
	CodePersistence: {
		Retryable:      true,
		PublicMessage:  "persistence failed",
		DetailsAllowed: true,
	},
	CodeDependency: {
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
	CodeInternal: {
		Retryable:      true,
		PublicMessage:  "internal error",
		DetailsAllowed: false,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf classifies an arbitrary error, defaulting to CodeInternal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}
