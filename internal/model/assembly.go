package model

import (
	"regexp"
	"strings"
)

// AssemblyPart is a single highlighted part within an assembly step. Color is
// always a 6-hex-digit value like "#f97316"; it is assigned during
// normalization and stays stable for a given part identity across the run.
type AssemblyPart struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color"`
}

// AssemblyStep is one assembly instruction unit. StepIndex is the 1-based
// position in the normalized step sequence, not whatever numbering the model
// used. ImageBase64 holds a data URI when an illustration was generated.
type AssemblyStep struct {
	ID          string         `json:"id,omitempty"`
	ChatID      string         `json:"chatId,omitempty"`
	StepIndex   int            `json:"stepIndex"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Parts       []AssemblyPart `json:"parts"`
	ImageBase64 string         `json:"imageBase64,omitempty"`
}

// ExtractionResult is the normalized outcome of one document analysis call.
type ExtractionResult struct {
	Summary string         `json:"summary"`
	Steps   []AssemblyStep `json:"steps"`
}

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidHexColor reports whether s is a "#rrggbb" color value.
func ValidHexColor(s string) bool {
	return hexColorRe.MatchString(s)
}

// PartIdentity returns the normalized key used for consistent color
// assignment: the part name lowercased and trimmed. Returns "" when the name
// is blank; callers substitute a positional fallback key in that case.
func PartIdentity(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
