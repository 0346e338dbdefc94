package resilience

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/genai"
)

func TestIsRetryable_StatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429 transient", NewTransientError(errors.New("boom"), 429), true},
		{"503 transient", NewTransientError(errors.New("boom"), 503), true},
		{"500 transient", NewTransientError(errors.New("boom"), 500), false},
		{"400 transient", NewTransientError(errors.New("boom"), 400), false},
		{"plain error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsRetryable_MessagePatterns(t *testing.T) {
	for _, msg := range []string{
		"Quota exceeded for model",
		"received Too Many Requests from upstream",
		"Rate Limit reached, slow down",
	} {
		if !IsRetryable(errors.New(msg)) {
			t.Errorf("expected %q to be retryable", msg)
		}
	}
	if IsRetryable(errors.New("invalid argument")) {
		t.Error("expected plain permanent error to be non-retryable")
	}
}

func TestStatusOf_APIError(t *testing.T) {
	err := genai.APIError{Code: 429, Message: "resource exhausted", Status: "RESOURCE_EXHAUSTED"}

	status, ok := StatusOf(err)
	if !ok || status != 429 {
		t.Errorf("expected (429, true), got (%d, %v)", status, ok)
	}
	if !IsRetryable(err) {
		t.Error("429 APIError must be retryable")
	}
}

func TestStatusOf_WrappedAPIError(t *testing.T) {
	err := fmt.Errorf("generate image: %w", genai.APIError{Code: 503, Message: "unavailable"})

	status, ok := StatusOf(err)
	if !ok || status != 503 {
		t.Errorf("expected (503, true), got (%d, %v)", status, ok)
	}
}

func TestStatusOf_EmbeddedJSONBody(t *testing.T) {
	numeric := errors.New(`call failed: {"error":{"code":429,"message":"quota exceeded"}}`)
	status, ok := StatusOf(numeric)
	if !ok || status != 429 {
		t.Errorf("numeric code: expected (429, true), got (%d, %v)", status, ok)
	}

	numericString := errors.New(`call failed: {"error":{"code":"503","message":"unavailable"}}`)
	status, ok = StatusOf(numericString)
	if !ok || status != 503 {
		t.Errorf("numeric-string code: expected (503, true), got (%d, %v)", status, ok)
	}
}

func TestStatusOf_Absent(t *testing.T) {
	for _, err := range []error{
		errors.New("no payload here"),
		errors.New(`broken json {"error":{"code":`),
		errors.New(`{"error":{"code":"not-a-number"}}`),
	} {
		if status, ok := StatusOf(err); ok {
			t.Errorf("%v: expected absent status, got %d", err, status)
		}
	}
}

func TestDetailsOf_APIError(t *testing.T) {
	err := genai.APIError{
		Code: 429,
		Details: []map[string]any{
			{"@type": retryInfoType, "retryDelay": "4s"},
		},
	}

	details := DetailsOf(err)
	if len(details) != 1 {
		t.Fatalf("expected 1 detail entry, got %d", len(details))
	}
	if details[0]["retryDelay"] != "4s" {
		t.Errorf("unexpected detail: %v", details[0])
	}
}

func TestSuggestedDelay(t *testing.T) {
	tests := []struct {
		name    string
		details []map[string]any
		want    time.Duration
		ok      bool
	}{
		{
			"fractional seconds",
			[]map[string]any{{"@type": retryInfoType, "retryDelay": "13.5s"}},
			13500 * time.Millisecond,
			true,
		},
		{
			"whole seconds",
			[]map[string]any{{"@type": retryInfoType, "retryDelay": "7s"}},
			7 * time.Second,
			true,
		},
		{
			"retry info after other details",
			[]map[string]any{
				{"@type": "type.googleapis.com/google.rpc.ErrorInfo", "reason": "RATE_LIMIT_EXCEEDED"},
				{"@type": retryInfoType, "retryDelay": "2s"},
			},
			2 * time.Second,
			true,
		},
		{"nil details", nil, 0, false},
		{"no retry info", []map[string]any{{"@type": "other"}}, 0, false},
		{"unparseable delay", []map[string]any{{"@type": retryInfoType, "retryDelay": "soon"}}, 0, false},
		{"missing delay", []map[string]any{{"@type": retryInfoType}}, 0, false},
	}

	for _, tt := range tests {
		got, ok := SuggestedDelay(tt.details)
		if ok != tt.ok || got != tt.want {
			t.Errorf("%s: SuggestedDelay = (%v, %v), want (%v, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}
