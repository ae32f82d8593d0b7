package analysis

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"

	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/telemetry"
)

const (
	// DefaultModel is the Gemini model used when none is configured.
	DefaultModel = "gemini-2.5-flash"
	// DefaultTimeout bounds one analysis call.
	DefaultTimeout = 5 * time.Minute
	// DefaultInlineLimit is the largest media sent inline with the request.
	// Larger media goes through the Files API.
	DefaultInlineLimit int64 = 20 << 20

	backendGemini   = "gemini"
	backendVertexAI = "vertexai"
)

// GoogleConfig selects and authenticates the Gemini backend.
type GoogleConfig struct {
	Backend  string `mapstructure:"backend"`
	APIKey   string `mapstructure:"api_key"`
	Project  string `mapstructure:"project"`
	Location string `mapstructure:"location"`
}

// Config configures a GoogleGateway.
type Config struct {
	Model       string
	Google      GoogleConfig
	Timeout     time.Duration
	InlineLimit int64
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type fileService interface {
	Upload(ctx context.Context, r io.Reader, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
	Delete(ctx context.Context, name string, config *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error)
}

// GoogleGateway generates packages with Gemini structured output.
type GoogleGateway struct {
	models       contentGenerator
	files        fileService
	model        string
	backend      string
	timeout      time.Duration
	inlineLimit  int64
	pollInterval time.Duration
}

var _ Generator = (*GoogleGateway)(nil)

// NewGoogleGateway creates a gateway backed by the Gemini API or Vertex AI.
func NewGoogleGateway(ctx context.Context, cfg Config) (*GoogleGateway, error) {
	backend := detectBackend(cfg.Google)

	clientConfig := &genai.ClientConfig{}
	switch backend {
	case backendVertexAI:
		clientConfig.Backend = genai.BackendVertexAI
		clientConfig.Project = cfg.Google.Project
		clientConfig.Location = cfg.Google.Location
	default:
		clientConfig.Backend = genai.BackendGeminiAPI
		clientConfig.APIKey = cfg.Google.APIKey
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Google GenAI client")
	}

	var files fileService
	// The Files API is only offered by the Gemini API backend.
	if backend == backendGemini {
		files = client.Files
	}

	g := newGateway(client.Models, files, cfg)
	g.backend = backend
	return g, nil
}

func newGateway(models contentGenerator, files fileService, cfg Config) *GoogleGateway {
	g := &GoogleGateway{
		models:       models,
		files:        files,
		model:        cfg.Model,
		backend:      backendGemini,
		timeout:      cfg.Timeout,
		inlineLimit:  cfg.InlineLimit,
		pollInterval: 2 * time.Second,
	}
	if g.model == "" {
		g.model = DefaultModel
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	if g.inlineLimit <= 0 {
		g.inlineLimit = DefaultInlineLimit
	}
	return g
}

// Model returns the model name used for generation.
func (g *GoogleGateway) Model() string { return g.model }

// Generate sends the media and notes to Gemini and decodes the structured
// response. The call is not retried.
func (g *GoogleGateway) Generate(ctx context.Context, data []byte, mimeType, notes string) (*Result, error) {
	var result *Result
	err := telemetry.WithSpan(ctx, "analysis.generate", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		log := logger.G(ctx).WithField("model", g.model).WithField("mime_type", mimeType).WithField("size", len(data))

		media, release, err := g.mediaPart(ctx, data, mimeType)
		if err != nil {
			return newError(KindService, err)
		}
		defer release()

		contents := []*genai.Content{
			genai.NewContentFromParts([]*genai.Part{media, genai.NewPartFromText(buildPrompt(notes))}, genai.RoleUser),
		}
		resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   responseSchema(),
		})
		if err != nil {
			log.WithError(err).Warn("analysis call failed")
			return newError(KindService, errors.Wrap(err, "generate content"))
		}

		raw := responseText(resp)
		pkg, err := Decode(raw)
		if err != nil {
			log.WithField("kind", KindOf(err)).WithField("finish_reason", finishReason(resp)).WithError(err).Warn("analysis response rejected")
			return err
		}

		log.WithField("slug", pkg.Slug).WithField("files", pkg.FileCount()).Info("analysis succeeded")
		result = &Result{Package: pkg, Raw: raw}
		return nil
	},
		attribute.String("analysis.model", g.model),
		attribute.String("analysis.mime_type", mimeType),
		attribute.Int("analysis.size", len(data)),
	)
	return result, err
}

// mediaPart returns the request part carrying the media, uploading it first
// when it is too large to inline. release deletes any uploaded file.
func (g *GoogleGateway) mediaPart(ctx context.Context, data []byte, mimeType string) (*genai.Part, func(), error) {
	if g.files == nil || int64(len(data)) <= g.inlineLimit {
		return genai.NewPartFromBytes(data, mimeType), func() {}, nil
	}

	file, err := g.files.Upload(ctx, bytes.NewReader(data), &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: "skillforge-media",
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to upload media")
	}
	release := func() {
		if _, err := g.files.Delete(context.Background(), file.Name, nil); err != nil {
			logger.G(ctx).WithError(err).WithField("file", file.Name).Debug("failed to delete uploaded media")
		}
	}

	for file.State != genai.FileStateActive {
		if file.State == genai.FileStateFailed {
			release()
			return nil, nil, errors.Errorf("uploaded media %s failed processing", file.Name)
		}
		select {
		case <-ctx.Done():
			release()
			return nil, nil, errors.Wrap(ctx.Err(), "waiting for uploaded media")
		case <-time.After(g.pollInterval):
		}
		if file, err = g.files.Get(ctx, file.Name, nil); err != nil {
			release()
			return nil, nil, errors.Wrap(err, "failed to poll uploaded media")
		}
	}

	logger.G(ctx).WithField("file", file.Name).Debug("media uploaded through the Files API")
	return genai.NewPartFromURI(file.URI, mimeType), release, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	return resp.Text()
}

func finishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return ""
	}
	return string(resp.Candidates[0].FinishReason)
}

func detectBackend(cfg GoogleConfig) string {
	if cfg.Backend != "" {
		return strings.ToLower(cfg.Backend)
	}

	if env := os.Getenv("GOOGLE_GENAI_USE_VERTEXAI"); env != "" {
		if strings.EqualFold(env, "true") || env == "1" {
			return backendVertexAI
		}
		return backendGemini
	}

	// An explicit API key is the user's choice even when project settings exist.
	if cfg.APIKey != "" {
		return backendGemini
	}
	if cfg.Project != "" || cfg.Location != "" {
		return backendVertexAI
	}
	if os.Getenv("GOOGLE_CLOUD_PROJECT") != "" ||
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" ||
		os.Getenv("GCLOUD_PROJECT") != "" {
		return backendVertexAI
	}
	return backendGemini
}
