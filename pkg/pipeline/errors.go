package pipeline

import (
	"errors"
	"net/http"

	"github.com/hayden74/cogira-frontend/pkg/api"
	"github.com/hayden74/cogira-frontend/pkg/domain"
)

const (
	msgInternal      = "Internal Server Error"
	msgMalformedJSON = "Malformed JSON"
	msgUnreadable    = "Unreadable request body"
)

// Failure is the client-facing translation of an error.
type Failure struct {
	Status int
	Code   string
	Body   ErrorBody
	// Internal is set when the error was not recognized; its detail must stay in logs.
	Internal bool
}

// ErrorBody is the uniform error envelope.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Classify translates err. AppErrors keep their status, code and details. Body
// parse failures become 400. Anything else becomes an opaque 500.
func Classify(err error) Failure {
	if appErr, ok := domain.AsAppError(err); ok {
		return Failure{
			Status: appErr.Status,
			Code:   appErr.Code,
			Body:   ErrorBody{Message: appErr.Message, Code: appErr.Code, Details: appErr.Details},
		}
	}
	if errors.Is(err, api.ErrUnreadableBody) {
		return Failure{
			Status: http.StatusBadRequest,
			Code:   domain.CodeBadRequest,
			Body:   ErrorBody{Message: msgUnreadable, Code: domain.CodeBadRequest},
		}
	}
	if errors.Is(err, api.ErrMalformedBody) {
		return Failure{
			Status: http.StatusBadRequest,
			Code:   domain.CodeBadRequest,
			Body:   ErrorBody{Message: msgMalformedJSON},
		}
	}
	return Failure{
		Status:   http.StatusInternalServerError,
		Code:     domain.CodeInternal,
		Body:     ErrorBody{Message: msgInternal},
		Internal: true,
	}
}
