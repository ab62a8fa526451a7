package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"multi-model-summarizer/internal/ai"
	"multi-model-summarizer/internal/telemetry"
	"multi-model-summarizer/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidBounds = errors.New("invalid summary length bounds")

// truncateCharsPerToken over-approximates characters per token so the local
// cut never removes text the server-side tokenizer would have kept.
const truncateCharsPerToken = 16

// TextExtractor is the part of the extractor the summarizer needs.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// SummarizationService adapts extracted text to a model's generation call.
type SummarizationService struct {
	registry    *ModelRegistry
	backend     ai.Backend
	extractor   TextExtractor
	cache       SummaryCache
	batchSize   int
	concurrency int
	metrics     *telemetry.Metrics
	log         *slog.Logger
}

// SummarizationOptions tunes batching of chunked inputs.
type SummarizationOptions struct {
	BatchSize   int
	Concurrency int
}

func NewSummarizationService(
	registry *ModelRegistry,
	backend ai.Backend,
	extractor TextExtractor,
	cache SummaryCache,
	opts SummarizationOptions,
	metrics *telemetry.Metrics,
	log *slog.Logger,
) *SummarizationService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 8
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &SummarizationService{
		registry:    registry,
		backend:     backend,
		extractor:   extractor,
		cache:       cache,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		metrics:     metrics,
		log:         log,
	}
}

// SummarizationResult represents the result of summarization
type SummarizationResult struct {
	Summary    string
	Model      string
	ModelID    string
	Strategy   Strategy
	Device     string
	Chunks     int
	Characters int
	Cached     bool
	Duration   time.Duration
}

// ValidateBounds checks the generated-length bounds.
func ValidateBounds(maxLength, minLength int) error {
	if maxLength <= 0 {
		return fmt.Errorf("%w: max_length must be positive, got %d", ErrInvalidBounds, maxLength)
	}
	if minLength < 0 {
		return fmt.Errorf("%w: min_length must not be negative, got %d", ErrInvalidBounds, minLength)
	}
	if minLength > maxLength {
		return fmt.Errorf("%w: min_length %d exceeds max_length %d", ErrInvalidBounds, minLength, maxLength)
	}
	return nil
}

// SummarizeFile extracts the document at path and summarizes its text.
func (s *SummarizationService) SummarizeFile(ctx context.Context, model, path string, maxLength, minLength int) (*SummarizationResult, error) {
	if err := ValidateBounds(maxLength, minLength); err != nil {
		return nil, err
	}
	if _, err := s.registry.Lookup(model); err != nil {
		return nil, err
	}

	text, err := s.extractor.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.Summarize(ctx, model, text, maxLength, minLength)
}

// Summarize generates a summary of text with the named model.
func (s *SummarizationService) Summarize(ctx context.Context, model, text string, maxLength, minLength int) (*SummarizationResult, error) {
	if err := ValidateBounds(maxLength, minLength); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(telemetry.ServiceName).Start(ctx, "summarizer.summarize")
	defer span.End()

	handle, err := s.registry.Get(ctx, model)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model unavailable")
		return nil, err
	}
	spec := handle.Spec
	span.SetAttributes(
		attribute.String("summarizer.model", spec.Name),
		attribute.String("summarizer.strategy", string(spec.Strategy)),
		attribute.Int("summarizer.characters", len(text)),
	)

	result := &SummarizationResult{
		Model:      spec.Name,
		ModelID:    spec.ID,
		Strategy:   spec.Strategy,
		Device:     handle.Device,
		Characters: len(text),
	}

	key := utils.CacheKey(spec.ID, string(spec.Strategy), strconv.Itoa(maxLength), strconv.Itoa(minLength), text)
	if s.cache != nil {
		if summary, ok := s.cache.Get(ctx, key); ok {
			s.metrics.RecordCacheHit(spec.Name)
			span.SetAttributes(attribute.Bool("summarizer.cached", true))
			result.Summary = summary
			result.Cached = true
			return result, nil
		}
	}

	inputs := buildInputs(spec, text)
	result.Chunks = len(inputs)

	params := ai.DefaultGenerationParams(maxLength, minLength)
	params.MaxInputTokens = spec.MaxInputTokens

	start := time.Now()
	outputs, err := s.generate(ctx, spec, inputs, params)
	result.Duration = time.Since(start)
	s.metrics.RecordGeneration(spec.Name, result.Duration.Seconds(), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		s.log.ErrorContext(ctx, "summary generation failed", "model", spec.Name, "chunks", len(inputs), "error", err)
		return nil, err
	}

	result.Summary = strings.Join(outputs, " ")
	if s.cache != nil {
		s.cache.Set(ctx, key, result.Summary)
	}

	s.log.InfoContext(ctx, "summary generated",
		"model", spec.Name,
		"strategy", spec.Strategy,
		"chunks", len(inputs),
		"characters", len(text),
		"summary_characters", len(result.Summary),
		"duration", result.Duration,
	)
	return result, nil
}

// generate sends inputs in batches. Batches run concurrently up to the
// configured limit; outputs keep input order.
func (s *SummarizationService) generate(ctx context.Context, spec ModelSpec, inputs []string, params ai.GenerationParams) ([]string, error) {
	if len(inputs) <= s.batchSize {
		return s.backend.Generate(ctx, spec.ID, inputs, params)
	}

	outputs := make([]string, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for lo := 0; lo < len(inputs); lo += s.batchSize {
		hi := min(lo+s.batchSize, len(inputs))
		batch := inputs[lo:hi]
		offset := lo
		g.Go(func() error {
			out, err := s.backend.Generate(gctx, spec.ID, batch, params)
			if err != nil {
				return err
			}
			copy(outputs[offset:], out)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// buildInputs shapes text for the model's strategy. Empty text still yields
// one (empty) input so the model's own output is returned.
func buildInputs(spec ModelSpec, text string) []string {
	switch spec.Strategy {
	case StrategyChunked:
		chunks := chunkRunes(text, spec.ChunkSize)
		if len(chunks) == 0 {
			return []string{""}
		}
		return chunks
	default:
		if spec.MaxInputTokens > 0 {
			text = truncateRunes(text, spec.MaxInputTokens*truncateCharsPerToken)
		}
		return []string{spec.Prefix + text}
	}
}

// chunkRunes splits text into consecutive pieces of size characters.
func chunkRunes(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}

	var chunks []string
	count, start := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}

func truncateRunes(text string, limit int) string {
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}
