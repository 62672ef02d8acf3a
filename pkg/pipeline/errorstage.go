package pipeline

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hayden74/cogira-frontend/pkg/api"
)

// ErrorTranslationStage is the terminal error translator.
type ErrorTranslationStage struct{}

// NewErrorTranslationStage returns the error translation stage.
func NewErrorTranslationStage() ErrorTranslationStage { return ErrorTranslationStage{} }

func (ErrorTranslationStage) Name() string { return "error_translation" }

// OnError serializes err into the uniform envelope. Unrecognized errors are
// logged in full and answered with a generic 500.
func (ErrorTranslationStage) OnError(ctx context.Context, inv *Invocation, err error) *api.Response {
	f := Classify(err)
	logger := inv.Logger()

	switch {
	case f.Internal:
		logger.ErrorContext(ctx, "Unhandled error", slog.String("error", err.Error()))
	case f.Body.Code == "":
		logger.ErrorContext(ctx, "Malformed JSON", slog.String("error", err.Error()))
	default:
		logger.ErrorContext(ctx, "Handled error",
			slog.String("code", f.Code),
			slog.Int("status", f.Status),
			slog.String("error", err.Error()),
		)
	}

	res, mErr := api.JSON(f.Status, f.Body)
	if mErr != nil {
		logger.ErrorContext(ctx, "Failed to serialize error response", slog.String("error", mErr.Error()))
		return api.MustJSON(http.StatusInternalServerError, ErrorBody{Message: msgInternal})
	}
	return res
}
