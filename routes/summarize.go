package routes

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"multi-model-summarizer/internal/ai"
	"multi-model-summarizer/internal/extractor"
	"multi-model-summarizer/middleware"
	"multi-model-summarizer/models"
	"multi-model-summarizer/services"
	"multi-model-summarizer/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

//go:embed templates/*.html
var templateFS embed.FS

var errInvalidRequest = errors.New("invalid request")

// Templates parses the embedded HTML pages.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}

// SummarizeHandler serves the upload form and the JSON API.
type SummarizeHandler struct {
	summarizer *services.SummarizationService
	extractor  *extractor.Extractor
	registry   *services.ModelRegistry
	uploads    *services.UploadStore
	log        *slog.Logger
}

func NewSummarizeHandler(
	summarizer *services.SummarizationService,
	ext *extractor.Extractor,
	registry *services.ModelRegistry,
	uploads *services.UploadStore,
	log *slog.Logger,
) *SummarizeHandler {
	return &SummarizeHandler{
		summarizer: summarizer,
		extractor:  ext,
		registry:   registry,
		uploads:    uploads,
		log:        log,
	}
}

func SetupSummarizeRoutes(router *gin.Engine, h *SummarizeHandler) {
	router.SetHTMLTemplate(Templates())

	router.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", h.page(models.SummaryPage{}))
	})

	// Form submit re-renders the page with the summary or the error
	router.POST("/summarize", func(c *gin.Context) {
		req, result, upload, err := h.summarizeUpload(c)
		page := models.SummaryPage{
			Selected:  req.Model,
			MaxLength: req.MaxLength,
			MinLength: req.MinLength,
			Submitted: true,
		}
		if err != nil {
			status, _ := classifyError(err)
			page.Error = displayError(err)
			c.HTML(status, "index.html", h.page(page))
			return
		}

		page.Summary = result.Summary
		page.Filename = upload.OriginalName
		c.HTML(http.StatusOK, "index.html", h.page(page))
	})

	api := router.Group("/api/v1")

	api.GET("/models", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"models": h.modelInfos()})
	})

	api.POST("/summarize", func(c *gin.Context) {
		_, result, upload, err := h.summarizeUpload(c)
		if err != nil {
			h.respondWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.SummaryResponse{
			Summary:    result.Summary,
			Model:      result.Model,
			ModelID:    result.ModelID,
			Strategy:   string(result.Strategy),
			Device:     result.Device,
			Chunks:     result.Chunks,
			Characters: result.Characters,
			Cached:     result.Cached,
			Filename:   upload.OriginalName,
			DurationMS: float64(result.Duration) / float64(time.Millisecond),
		})
	})

	api.POST("/extract", func(c *gin.Context) {
		upload, err := h.saveUpload(c)
		if err != nil {
			h.respondWithError(c, err)
			return
		}
		defer h.uploads.Remove(upload.Path)

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		doc, err := h.extractor.ExtractDocument(ctx, upload.Path)
		if err != nil {
			h.respondWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.ExtractResponse{
			Filename:   upload.OriginalName,
			Format:     string(doc.Format),
			Units:      len(doc.Units),
			Characters: len(doc.Text),
			Text:       doc.Text,
		})
	})
}

// summarizeUpload binds and validates the form, stores the file for the
// duration of the request and runs extraction plus generation. The bound
// request is returned with defaults applied even when err is set so the form
// can be re-rendered with the submitted values.
func (h *SummarizeHandler) summarizeUpload(c *gin.Context) (models.SummaryRequest, *services.SummarizationResult, *services.StoredUpload, error) {
	var req models.SummaryRequest
	bindErr := c.ShouldBind(&req)
	req.ApplyDefaults()
	if bindErr != nil {
		if bodyTooLarge(bindErr) {
			return req, nil, nil, services.ErrFileTooLarge
		}
		return req, nil, nil, fmt.Errorf("%w: %s", errInvalidRequest, bindingMessage(bindErr))
	}
	if err := services.ValidateBounds(req.MaxLength, req.MinLength); err != nil {
		return req, nil, nil, err
	}
	if _, err := h.registry.Lookup(req.Model); err != nil {
		return req, nil, nil, err
	}

	trace.SpanFromContext(c.Request.Context()).SetAttributes(
		attribute.String("summarizer.requested_model", req.Model),
		attribute.Int("summarizer.max_length", req.MaxLength),
		attribute.Int("summarizer.min_length", req.MinLength),
	)

	upload, err := h.saveUpload(c)
	if err != nil {
		return req, nil, nil, err
	}
	defer h.uploads.Remove(upload.Path)

	ctx, cancel := utils.WithLongTimeout(c.Request.Context())
	defer cancel()

	h.log.InfoContext(ctx, "summarize request",
		"request_id", middleware.GetRequestID(c),
		"model", req.Model,
		"filename", upload.OriginalName,
		"size", upload.Size,
		"max_length", req.MaxLength,
		"min_length", req.MinLength,
	)

	result, err := h.summarizer.SummarizeFile(ctx, req.Model, upload.Path, req.MaxLength, req.MinLength)
	if err != nil {
		return req, nil, upload, err
	}
	return req, result, upload, nil
}

func (h *SummarizeHandler) saveUpload(c *gin.Context) (*services.StoredUpload, error) {
	header, err := c.FormFile("file")
	if err != nil {
		if bodyTooLarge(err) {
			return nil, services.ErrFileTooLarge
		}
		return nil, fmt.Errorf("%w: no file uploaded", errInvalidRequest)
	}
	if _, err := services.ValidateFilename(header.Filename); err != nil {
		return nil, err
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	return h.uploads.Save(file, header.Filename)
}

func (h *SummarizeHandler) respondWithError(c *gin.Context, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(c.Request.Context(), "request failed",
			"request_id", middleware.GetRequestID(c),
			"path", c.FullPath(),
			"error", err,
		)
	}

	var details interface{}
	var unsupported *extractor.UnsupportedFileTypeError
	if errors.As(err, &unsupported) {
		details = gin.H{"extension": unsupported.Ext, "supported": extractor.SupportedExtensions()}
	}
	switch code {
	case "invalid_request":
		utils.RespondWithBadRequest(c, displayError(err), details)
	case "internal_error":
		utils.RespondWithInternalError(c, displayError(err), details)
	default:
		utils.RespondWithError(c, status, code, displayError(err), details)
	}
}

func (h *SummarizeHandler) page(p models.SummaryPage) models.SummaryPage {
	p.Models = h.modelInfos()
	p.Accept = strings.Join(extractor.SupportedExtensions(), ",")
	if p.Selected == "" && len(p.Models) > 0 {
		p.Selected = p.Models[0].Name
	}
	if p.MaxLength == 0 {
		p.MaxLength = models.DefaultMaxLength
	}
	if p.MinLength == 0 {
		p.MinLength = models.DefaultMinLength
	}
	p.MaxLengthLow, p.MaxLengthHigh = 50, 500
	p.MinLengthLow, p.MinLengthHigh = 10, 100
	return p
}

func (h *SummarizeHandler) modelInfos() []models.ModelInfo {
	specs := h.registry.Models()
	out := make([]models.ModelInfo, len(specs))
	for i, s := range specs {
		out[i] = models.ModelInfo{
			Name:           s.Name,
			ModelID:        s.ID,
			Strategy:       string(s.Strategy),
			MaxInputTokens: s.MaxInputTokens,
			Loaded:         h.registry.Loaded(s.Name),
		}
	}
	return out
}

// classifyError maps the error taxonomy onto HTTP status and error code.
func classifyError(err error) (int, string) {
	var loadErr *ai.ModelLoadError
	switch {
	case errors.Is(err, extractor.ErrUnsupportedFileType):
		return http.StatusBadRequest, "unsupported_file_type"
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, services.ErrInvalidBounds),
		errors.Is(err, services.ErrUnknownModel),
		errors.Is(err, services.ErrInvalidFilename):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, services.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "file_too_large"
	case errors.Is(err, extractor.ErrExtractionFailed):
		return http.StatusUnprocessableEntity, "extraction_failed"
	case ai.IsUnavailable(err):
		return http.StatusServiceUnavailable, "model_unavailable"
	case errors.As(err, &loadErr):
		return http.StatusBadGateway, "model_load_failed"
	case errors.Is(err, ai.ErrGeneration):
		return http.StatusBadGateway, "generation_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// The multipart reader does not always wrap the MaxBytesReader error.
func bodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func displayError(err error) string {
	return "Error: " + err.Error()
}

func bindingMessage(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "'Model'"):
		return "model is required"
	case strings.Contains(msg, "'MaxLength'"):
		return "max_length must be between 50 and 500"
	case strings.Contains(msg, "'MinLength'"):
		return "min_length must be between 10 and 100"
	}
	return msg
}
