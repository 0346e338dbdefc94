package resilience

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"
)

// retryInfoType tags the structured detail entry carrying a
// provider-suggested retry delay.
const retryInfoType = "type.googleapis.com/google.rpc.RetryInfo"

// TransientError wraps an error that carries an HTTP status from a call site
// outside the Gemini SDK (e.g. the raw file download).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error with an HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

var retryablePatterns = []string{
	"quota",
	"too many requests",
	"rate limit",
}

// IsRetryable reports whether a failed call is worth retrying: the extracted
// status is 429 or 503, or the message text indicates a quota or rate-limit
// condition. It tolerates error values of any shape.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if status, ok := StatusOf(err); ok && (status == 429 || status == 503) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// StatusOf extracts an HTTP-like status code from an error. It tries, in
// order: the Gemini SDK's structured APIError, a TransientError wrapper, and
// a {"error":{"code":...}} JSON payload embedded in the message text (the
// code may be a number or a numeric string).
func StatusOf(err error) (int, bool) {
	if err == nil {
		return 0, false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return apiErr.Code, true
	}

	var te *TransientError
	if errors.As(err, &te) && te.StatusCode != 0 {
		return te.StatusCode, true
	}

	if body := embeddedErrorBody(err.Error()); body != nil {
		if code, ok := toStatusCode(body.Code); ok && code != 0 {
			return code, true
		}
	}
	return 0, false
}

// DetailsOf extracts the structured detail entries from an error, or nil.
func DetailsOf(err error) []map[string]any {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && len(apiErr.Details) > 0 {
		return apiErr.Details
	}

	if body := embeddedErrorBody(err.Error()); body != nil {
		return body.Details
	}
	return nil
}

var retryDelayRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)s$`)

// SuggestedDelay finds a RetryInfo detail entry and parses its retryDelay
// value (a seconds-suffixed string like "13.5s") into a duration with whole
// millisecond precision, rounded and clamped to zero. Absence of a parseable
// value yields ok=false so the caller falls back to exponential delay.
func SuggestedDelay(details []map[string]any) (time.Duration, bool) {
	for _, detail := range details {
		typ, _ := detail["@type"].(string)
		if typ != retryInfoType {
			continue
		}
		raw, _ := detail["retryDelay"].(string)
		m := retryDelayRe.FindStringSubmatch(strings.TrimSpace(raw))
		if m == nil {
			continue
		}
		seconds, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		ms := math.Round(seconds * 1000)
		if ms < 0 {
			ms = 0
		}
		return time.Duration(ms) * time.Millisecond, true
	}
	return 0, false
}

// errorBody is the JSON error envelope some provider messages embed verbatim.
type errorBody struct {
	Code    any              `json:"code"`
	Message string           `json:"message"`
	Details []map[string]any `json:"details"`
}

func embeddedErrorBody(msg string) *errorBody {
	start := strings.Index(msg, "{")
	if start < 0 {
		return nil
	}
	var envelope struct {
		Error *errorBody `json:"error"`
	}
	if err := json.Unmarshal([]byte(msg[start:]), &envelope); err != nil {
		return nil
	}
	return envelope.Error
}

func toStatusCode(v any) (int, bool) {
	switch code := v.(type) {
	case float64:
		return int(code), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(code))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
