package gateway

import (
	"log/slog"

	"github.com/hayden74/cogira-frontend/pkg/logging"
)

func discardLogger() *slog.Logger {
	return logging.Discard()
}
