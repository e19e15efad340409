package utils

import (
	"context"
	"errors"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrNotFound        = errors.New("element not found")              // Internal; lookups return nil instead of surfacing this
	ErrInvalidSelector = errors.New("invalid CSS selector")           // Wraps the cascadia parse error
	ErrInvalidInput    = errors.New("invalid lookup input")           // Empty/blank discriminator or unsupported container type
	ErrWaitTimeout     = errors.New("timed out waiting for elements") // Carries the discriminators that never resolved
	ErrRequiredMissing = errors.New("required elements missing")      // Raised only by the Require wrapper
	ErrDestroyed       = errors.New("engine destroyed")               // Informational; lookups degrade rather than return this
)

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return "Lookup_NotFound"
	case errors.Is(err, ErrInvalidSelector):
		return "Input_InvalidSelector"
	case errors.Is(err, ErrInvalidInput):
		return "Input_Invalid"
	case errors.Is(err, ErrWaitTimeout):
		return "Wait_Timeout"
	case errors.Is(err, ErrRequiredMissing):
		return "Lookup_RequiredMissing"
	case errors.Is(err, ErrDestroyed):
		return "Lifecycle_Destroyed"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	// cascadia parse errors that escaped wrapping
	if strings.Contains(strings.ToLower(err.Error()), "selector") {
		return "Input_InvalidSelector"
	}

	return "Unknown"
}
