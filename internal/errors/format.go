package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FormatForCLI formats an error for terminal output.
// Plain errors are wrapped as internal errors so every failure prints a code.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ae := asAmanError(err)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ae.Message)
	if ae.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", ae.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", ae.Code)
	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error, used by --json output.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	ae := asAmanError(err)
	je := jsonError{
		Code:       ae.Code,
		Message:    ae.Message,
		Category:   string(ae.Category),
		Severity:   string(ae.Severity),
		Details:    ae.Details,
		Suggestion: ae.Suggestion,
		Retryable:  ae.Retryable,
	}
	if ae.Cause != nil {
		je.Cause = ae.Cause.Error()
	}
	return json.Marshal(je)
}

// LogAttrs returns slog attributes describing err.
// Details are emitted in key order so log lines are stable.
func LogAttrs(err error) []slog.Attr {
	if err == nil {
		return nil
	}

	var ae *AmanError
	if !errors.As(err, &ae) {
		return []slog.Attr{slog.String("error", err.Error())}
	}

	attrs := []slog.Attr{
		slog.String("error_code", ae.Code),
		slog.String("error", ae.Message),
		slog.String("category", string(ae.Category)),
	}
	if ae.Cause != nil {
		attrs = append(attrs, slog.String("cause", ae.Cause.Error()))
	}

	keys := make([]string, 0, len(ae.Details))
	for k := range ae.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String("detail_"+k, ae.Details[k]))
	}
	return attrs
}

// LogArgs is LogAttrs as variadic slog arguments.
func LogArgs(err error) []any {
	attrs := LogAttrs(err)
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return args
}

func asAmanError(err error) *AmanError {
	var ae *AmanError
	if errors.As(err, &ae) {
		return ae
	}
	return Wrap(ErrCodeInternal, err)
}
