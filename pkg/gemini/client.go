package gemini

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/sells-group/assembly-cli/internal/resilience"
)

// Client defines the Gemini operations used by the analysis pipeline.
type Client interface {
	// GenerateDocument submits a PDF plus an analysis prompt to the text
	// model and returns the raw response text.
	GenerateDocument(ctx context.Context, req DocumentRequest) (*TextResponse, error)

	// GenerateImage submits a natural-language prompt to the image model.
	// The response may contain inline image bytes, a downloadable file
	// reference, or neither.
	GenerateImage(ctx context.Context, prompt string) (*ImageResponse, error)

	// DownloadFile fetches the raw bytes behind a file reference returned
	// by GenerateImage.
	DownloadFile(ctx context.Context, uri string) ([]byte, error)

	// GenerateText runs a plain prompt through the text model.
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// DocumentRequest is our own request type for GenerateDocument.
type DocumentRequest struct {
	PDF         []byte
	Prompt      string
	Temperature *float64
}

// TextResponse is our own response type for text generation.
type TextResponse struct {
	Text  string
	Usage TokenUsage
}

// TokenUsage tracks token consumption for a single call.
type TokenUsage struct {
	PromptTokens   int32
	ResponseTokens int32
	TotalTokens    int32
}

// Log emits token usage with structured zap fields.
func (u TokenUsage) Log(model, phase string) {
	zap.L().Info("token usage",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int32("prompt_tokens", u.PromptTokens),
		zap.Int32("response_tokens", u.ResponseTokens),
		zap.Int32("total_tokens", u.TotalTokens),
	)
}

// ImageResponse holds the candidate parts of an image generation call, in
// response order.
type ImageResponse struct {
	Parts []ImagePart
	Usage TokenUsage
}

// ImagePart is one part of an image response: inline bytes, a file
// reference, or neither (text parts are dropped).
type ImagePart struct {
	Inline  *ImageBlob
	FileRef *FileRef
}

// ImageBlob is inline image data with its MIME type.
type ImageBlob struct {
	MIMEType string
	Data     []byte
}

// FileRef points to a generated file requiring a separate download call.
type FileRef struct {
	URI      string
	MIMEType string
}

// Config holds Gemini client settings.
type Config struct {
	APIKey     string
	TextModel  string
	ImageModel string
}

// sdkClient implements Client using google.golang.org/genai.
type sdkClient struct {
	client *genai.Client
	cfg    Config
	http   *http.Client
}

// NewClient creates a Gemini client backed by the SDK.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{
		client: c,
		cfg:    cfg,
		http:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *sdkClient) GenerateDocument(ctx context.Context, req DocumentRequest) (*TextResponse, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.PDF, "application/pdf"),
			genai.NewPartFromText(req.Prompt),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.TextModel, contents, config)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate document")
	}

	usage := usageFrom(resp)
	usage.Log(c.cfg.TextModel, "analysis")

	return &TextResponse{Text: resp.Text(), Usage: usage}, nil
}

func (c *sdkClient) GenerateImage(ctx context.Context, prompt string) (*ImageResponse, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.ImageModel, genai.Text(prompt), nil)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate image")
	}

	out := &ImageResponse{Usage: usageFrom(resp)}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				out.Parts = append(out.Parts, ImagePart{Inline: &ImageBlob{
					MIMEType: part.InlineData.MIMEType,
					Data:     part.InlineData.Data,
				}})
				continue
			}
			if part.FileData != nil && part.FileData.FileURI != "" {
				out.Parts = append(out.Parts, ImagePart{FileRef: &FileRef{
					URI:      part.FileData.FileURI,
					MIMEType: part.FileData.MIMEType,
				}})
			}
		}
	}

	out.Usage.Log(c.cfg.ImageModel, "image")
	return out, nil
}

// DownloadFile fetches generated file bytes through the media endpoint. The
// SDK returns full https URIs for generated files; bare names are resolved
// against the file metadata endpoint first.
func (c *sdkClient) DownloadFile(ctx context.Context, uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, "https://") {
		file, err := c.client.Files.Get(ctx, uri, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "gemini: resolve file %s", uri)
		}
		if file.DownloadURI == "" {
			return nil, eris.Errorf("gemini: file %s has no download uri", uri)
		}
		uri = file.DownloadURI
	}

	target, err := url.Parse(uri)
	if err != nil {
		return nil, eris.Wrapf(err, "gemini: parse file uri %s", uri)
	}
	q := target.Query()
	q.Set("alt", "media")
	target.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: build download request")
	}
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: download file")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("gemini: download file: status %d", resp.StatusCode)
		return nil, resilience.NewTransientError(err, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: read file body")
	}
	return data, nil
}

func (c *sdkClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.TextModel, genai.Text(prompt), nil)
	if err != nil {
		return "", eris.Wrap(err, "gemini: generate text")
	}
	return resp.Text(), nil
}

func usageFrom(resp *genai.GenerateContentResponse) TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return TokenUsage{}
	}
	return TokenUsage{
		PromptTokens:   resp.UsageMetadata.PromptTokenCount,
		ResponseTokens: resp.UsageMetadata.CandidatesTokenCount,
		TotalTokens:    resp.UsageMetadata.TotalTokenCount,
	}
}
