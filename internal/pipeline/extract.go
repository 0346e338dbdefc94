package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/assembly-cli/internal/model"
)

// colorPalette is the fixed palette drawn from when the model supplies no
// usable color for a part identity. Cycles modulo its length.
var colorPalette = []string{
	"#f97316",
	"#0ea5e9",
	"#8b5cf6",
	"#22c55e",
	"#ef4444",
	"#14b8a6",
	"#eab308",
	"#ec4899",
	"#6366f1",
	"#10b981",
}

// defaultStepDescription fills in when a step carries no usable
// summary/description/instructions text at all.
const defaultStepDescription = "Follow the manual's instructions to complete this step."

// rawExtraction mirrors the JSON shape requested from the analysis prompt.
// Every field is optional; normalization owns all validation.
type rawExtraction struct {
	Summary string    `json:"summary"`
	Steps   []rawStep `json:"steps"`
}

type rawStep struct {
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Description  string    `json:"description"`
	Instructions string    `json:"instructions"`
	Parts        []rawPart `json:"parts"`
}

type rawPart struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// colorAssigner maps part identities to colors for the duration of one
// extraction run. The first explicit valid color seen for an identity wins;
// otherwise the next palette entry is drawn. The cursor advances for every
// new identity.
type colorAssigner struct {
	byIdentity map[string]string
	cursor     int
}

func newColorAssigner() *colorAssigner {
	return &colorAssigner{byIdentity: make(map[string]string)}
}

func (a *colorAssigner) assign(identity, explicit string) string {
	if color, ok := a.byIdentity[identity]; ok {
		return color
	}
	color := explicit
	if !model.ValidHexColor(color) {
		color = colorPalette[a.cursor%len(colorPalette)]
	}
	a.byIdentity[identity] = color
	a.cursor++
	return color
}

// Normalize parses the analysis response text into a validated, de-duplicated,
// color-annotated step list. It never fails: unparsable input degrades to an
// empty result.
func Normalize(raw string) model.ExtractionResult {
	var parsed rawExtraction
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &parsed); err != nil {
		zap.L().Warn("extract: no parsable JSON in model response", zap.Error(err))
		return model.ExtractionResult{}
	}

	colors := newColorAssigner()
	var steps []model.AssemblyStep
	dropped := 0

	for _, rs := range parsed.Steps {
		title := strings.TrimSpace(rs.Title)
		if title == "" {
			dropped++
			continue
		}

		index := len(steps) // position in the surviving sequence
		parts := make([]model.AssemblyPart, 0, len(rs.Parts))
		for partIndex, rp := range rs.Parts {
			identity := model.PartIdentity(rp.Name)
			if identity == "" {
				identity = fmt.Sprintf("part-%d-%d", index, partIndex)
			}

			name := strings.TrimSpace(rp.Name)
			if name == "" {
				name = fmt.Sprintf("Part %d-%d", index+1, partIndex+1)
			}

			parts = append(parts, model.AssemblyPart{
				Name:        name,
				Description: strings.TrimSpace(rp.Description),
				Color:       colors.assign(identity, rp.Color),
			})
		}

		steps = append(steps, model.AssemblyStep{
			StepIndex:   index + 1,
			Title:       title,
			Description: synthesizeDescription(rs),
			Parts:       parts,
		})
	}

	if dropped > 0 {
		zap.L().Warn("extract: dropped untitled steps", zap.Int("dropped", dropped))
	}

	summary := strings.TrimSpace(parsed.Summary)
	if summary == "" && len(steps) > 0 {
		summary = fmt.Sprintf("%d steps detected", len(steps))
	}

	return model.ExtractionResult{Summary: summary, Steps: steps}
}

// synthesizeDescription joins the step's summary, description, and
// instructions fields, in that priority order, skipping blanks.
func synthesizeDescription(rs rawStep) string {
	var fields []string
	for _, v := range []string{rs.Summary, rs.Description, rs.Instructions} {
		if v = strings.TrimSpace(v); v != "" {
			fields = append(fields, v)
		}
	}
	if len(fields) == 0 {
		return defaultStepDescription
	}
	return strings.Join(fields, " ")
}

// cleanJSON strips markdown code fences and trims the text to the outermost
// {...} span so responses wrapped in prose still parse.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
