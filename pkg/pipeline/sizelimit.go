package pipeline

import (
	"context"
	"strconv"
	"strings"

	"github.com/hayden74/cogira-frontend/pkg/domain"
)

// DefaultMaxBodyBytes is the request body ceiling used when none is configured.
const DefaultMaxBodyBytes int64 = 10 << 20

// SizeLimitStage rejects requests whose body exceeds a byte ceiling.
type SizeLimitStage struct {
	maxBytes int64
}

// NewSizeLimitStage returns a size limit stage. A non-positive ceiling selects DefaultMaxBodyBytes.
func NewSizeLimitStage(maxBytes int64) SizeLimitStage {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return SizeLimitStage{maxBytes: maxBytes}
}

func (s SizeLimitStage) Name() string { return "size_limit" }

// MaxBytes returns the configured ceiling.
func (s SizeLimitStage) MaxBytes() int64 { return s.maxBytes }

// Before checks the declared content length and the actual body size.
func (s SizeLimitStage) Before(_ context.Context, inv *Invocation) error {
	if declared, ok := inv.Event.Header("Content-Length"); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(declared), 10, 64); err == nil && n > s.maxBytes {
			return domain.PayloadTooLarge("", map[string]int64{"maxBytes": s.maxBytes})
		}
	}

	if bodySize(inv) > s.maxBytes {
		return domain.PayloadTooLarge("", map[string]int64{"maxBytes": s.maxBytes})
	}
	return nil
}

// bodySize is the byte length of the body as the handler will see it.
func bodySize(inv *Invocation) int64 {
	if !inv.Event.IsBase64Encoded {
		return int64(len(inv.Event.Body))
	}
	raw, err := inv.Event.BodyBytes()
	if err != nil {
		return int64(len(inv.Event.Body))
	}
	return int64(len(raw))
}
