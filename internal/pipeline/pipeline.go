package pipeline

import (
	"context"
	"encoding/base64"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/assembly-cli/internal/model"
	"github.com/sells-group/assembly-cli/internal/resilience"
	"github.com/sells-group/assembly-cli/internal/store"
	"github.com/sells-group/assembly-cli/pkg/gemini"
)

// runState labels the linear stages of one pipeline run.
type runState string

const (
	stateAnalyzing     runState = "analyzing"
	stateExtracted     runState = "extracted"
	stateImagesPending runState = "images_pending"
	stateCommitting    runState = "committing"
	stateDone          runState = "done"
)

const (
	// summaryMaxChars bounds the document summary at persistence time.
	summaryMaxChars = 1200

	// emptySummaryPlaceholder substitutes when the extraction yielded no
	// usable summary text.
	emptySummaryPlaceholder = "No assembly summary could be generated."

	analysisTemperature = 0.2
)

// Config tunes a Pipeline.
type Config struct {
	Backoff resilience.BackoffConfig
}

// AnalyzeInput is one upload to run through the pipeline.
type AnalyzeInput struct {
	UserID   string
	Title    string
	FileName string
	PDF      []byte
}

// Pipeline turns an uploaded PDF manual into a persisted chat with
// illustrated assembly steps. Each Run is fully isolated; the store
// transaction is the only shared state.
type Pipeline struct {
	gemini  gemini.Client
	store   store.Store
	backoff resilience.BackoffConfig
}

// New creates a Pipeline.
func New(gem gemini.Client, st store.Store, cfg Config) *Pipeline {
	backoff := cfg.Backoff
	if backoff.MaxRetries == 0 && backoff.BaseDelay == 0 {
		backoff = resilience.DefaultBackoffConfig()
	}
	return &Pipeline{gemini: gem, store: st, backoff: backoff}
}

// Run executes analysis → extraction → per-step image generation →
// transactional persistence. On failure it returns a *Error carrying the
// HTTP-style status; nothing is persisted unless every stage succeeded.
func (p *Pipeline) Run(ctx context.Context, in AnalyzeInput) (*model.ChatRecord, error) {
	log := zap.L().With(zap.String("file", in.FileName), zap.String("user", in.UserID))

	// ANALYZING
	log.Info("pipeline: analyzing document", zap.String("state", string(stateAnalyzing)))
	temp := analysisTemperature
	analysis, err := resilience.Execute(ctx, p.callBackoff("analyze"), func(ctx context.Context) (*gemini.TextResponse, error) {
		return p.gemini.GenerateDocument(ctx, gemini.DocumentRequest{
			PDF:         in.PDF,
			Prompt:      analysisPrompt,
			Temperature: &temp,
		})
	})
	if err != nil {
		status := http.StatusInternalServerError
		if s, ok := resilience.StatusOf(err); ok && s >= 400 && s <= 599 {
			status = s
		}
		log.Error("pipeline: analysis failed", zap.Int("status", status), zap.Error(err))
		return nil, failf(status, err, "failed to analyze PDF")
	}

	// EXTRACTED
	result := Normalize(analysis.Text)
	log.Info("pipeline: extraction normalized",
		zap.String("state", string(stateExtracted)),
		zap.Int("steps", len(result.Steps)),
	)
	if result.Summary == "" {
		result.Summary = emptySummaryPlaceholder
	}

	// IMAGES_PENDING
	log.Info("pipeline: generating step images", zap.String("state", string(stateImagesPending)))
	for i := range result.Steps {
		step := &result.Steps[i]
		if len(step.Parts) == 0 {
			continue
		}
		image, imgErr := p.generateStepImage(ctx, *step)
		if imgErr != nil {
			if resilience.IsRetryable(imgErr) {
				log.Error("pipeline: image generation quota exhausted",
					zap.Int("step", step.StepIndex), zap.Error(imgErr))
				return nil, failf(http.StatusTooManyRequests, imgErr,
					"image generation quota exceeded at step %d", step.StepIndex)
			}
			log.Error("pipeline: image generation failed",
				zap.Int("step", step.StepIndex), zap.Error(imgErr))
			return nil, failf(http.StatusInternalServerError, imgErr,
				"image generation failed at step %d", step.StepIndex)
		}
		step.ImageBase64 = image
	}

	// COMMITTING
	log.Info("pipeline: committing", zap.String("state", string(stateCommitting)))
	record, err := p.store.CreateChatGraph(ctx,
		model.Document{
			UserID:  in.UserID,
			Name:    in.FileName,
			Summary: truncateSummary(result.Summary),
		},
		model.Chat{Title: in.Title},
		result.Steps,
	)
	if err != nil {
		log.Error("pipeline: commit failed", zap.Error(err))
		return nil, failf(http.StatusInternalServerError, err, "failed to persist analysis result")
	}

	log.Info("pipeline: done",
		zap.String("state", string(stateDone)),
		zap.String("chat_id", record.ChatID),
		zap.Int("steps", len(record.AssemblySteps)),
	)
	return record, nil
}

// generateStepImage runs one image call and resolves its output to a data
// URI. A response with neither inline bytes nor a downloadable file, or a
// failed download, degrades to "" rather than failing the step.
func (p *Pipeline) generateStepImage(ctx context.Context, step model.AssemblyStep) (string, error) {
	prompt := BuildImagePrompt(step)

	resp, err := resilience.Execute(ctx, p.callBackoff("generate_image"), func(ctx context.Context) (*gemini.ImageResponse, error) {
		return p.gemini.GenerateImage(ctx, prompt)
	})
	if err != nil {
		return "", err
	}

	for _, part := range resp.Parts {
		if part.Inline != nil {
			return dataURI(part.Inline.MIMEType, part.Inline.Data), nil
		}
		if part.FileRef != nil {
			data, dlErr := p.gemini.DownloadFile(ctx, part.FileRef.URI)
			if dlErr != nil {
				zap.L().Warn("pipeline: failed to download generated image",
					zap.Int("step", step.StepIndex), zap.Error(dlErr))
				continue
			}
			return dataURI(part.FileRef.MIMEType, data), nil
		}
	}

	zap.L().Warn("pipeline: image call produced no inline or downloadable data",
		zap.Int("step", step.StepIndex))
	return "", nil
}

func (p *Pipeline) callBackoff(operation string) resilience.BackoffConfig {
	cfg := p.backoff
	cfg.OnRetry = resilience.RetryLogger("gemini", operation)
	return cfg
}

func dataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// truncateSummary bounds the summary to summaryMaxChars characters, marking
// truncation with an ellipsis.
func truncateSummary(summary string) string {
	runes := []rune(summary)
	if len(runes) <= summaryMaxChars {
		return summary
	}
	return string(runes[:summaryMaxChars]) + "..."
}
