package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/assembly-cli/internal/model"
)

// analysisPrompt asks the text model for strict JSON describing the assembly
// steps of the uploaded manual.
const analysisPrompt = `You are an expert furniture assembly engineer.
Analyse the supplied PDF and output JSON in this exact format:
{
  "summary": "short summary of the manual",
  "steps": [
    {
      "title": "step heading (required)",
      "description": "detailed description of this step (required)",
      "instructions": "additional advice for the user (optional)",
      "parts": [
        {
          "name": "part name (required)",
          "description": "caveats or usage notes (optional)",
          "color": "6-digit HEX like #FF0000 (optional)"
        }
      ]
    }
  ]
}

Constraints:
- Return nothing but JSON.
- List only the parts handled in that step under parts.
- Omit any step missing a title or description.
`

// BuildImagePrompt renders the image-generation prompt for one normalized
// step. Pure and deterministic: identical input yields byte-identical output.
func BuildImagePrompt(step model.AssemblyStep) string {
	var parts string
	if len(step.Parts) > 0 {
		lines := make([]string, len(step.Parts))
		for i, part := range step.Parts {
			line := fmt.Sprintf("Part %d: %s — use a solid fill of EXACTLY %s", i+1, part.Name, part.Color)
			if part.Description != "" {
				line += fmt.Sprintf(" (%s)", part.Description)
			}
			lines[i] = line
		}
		parts = strings.Join(lines, "\n")
	} else {
		parts = "No specific parts supplied. Focus on the overall action."
	}

	return fmt.Sprintf(`Create a high-resolution instruction-style illustration for Step %d: %q.
- Background must be pure white (#FFFFFF) with crisp line art.
- Highlight ONLY the listed parts using the specified HEX colours. The colours must match EXACTLY and be fully saturated.
- Any surrounding structures should be light grey outlines (#D1D5DB) for context, without additional shading.
- Avoid black fills or gradients unless explicitly specified.

Step description:
%s

Parts to highlight:
%s
`, step.StepIndex, step.Title, step.Description, parts)
}
