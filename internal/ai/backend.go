package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
)

// GenerationParams mirrors the beam search settings of a seq2seq generate call.
// MaxLength and MinLength bound the generated summary in tokens.
type GenerationParams struct {
	MaxLength      int     `json:"max_length"`
	MinLength      int     `json:"min_length"`
	NumBeams       int     `json:"num_beams"`
	LengthPenalty  float64 `json:"length_penalty"`
	EarlyStopping  bool    `json:"early_stopping"`
	Truncation     bool    `json:"truncation"`
	MaxInputTokens int     `json:"max_input_tokens,omitempty"`
}

// DefaultGenerationParams returns the beam settings every model shares.
func DefaultGenerationParams(maxLength, minLength int) GenerationParams {
	return GenerationParams{
		MaxLength:     maxLength,
		MinLength:     minLength,
		NumBeams:      4,
		LengthPenalty: 2.0,
		EarlyStopping: true,
		Truncation:    true,
	}
}

// ModelInfo describes a checkpoint loaded by the backend.
type ModelInfo struct {
	ModelID string `json:"model_id"`
	Loaded  bool   `json:"loaded"`
	Device  string `json:"device"`
}

// Backend hosts pretrained checkpoints and runs generation on them.
type Backend interface {
	Load(ctx context.Context, modelID string) (*ModelInfo, error)
	Generate(ctx context.Context, modelID string, inputs []string, params GenerationParams) ([]string, error)
}

var ErrGeneration = errors.New("generation failed")

// ModelLoadError reports a checkpoint that could not be made ready.
type ModelLoadError struct {
	Model string
	Err   error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Model, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// GenerationError reports a failed generate call.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate with %s: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// IsUnavailable reports whether err came from the circuit breaker shedding load.
func IsUnavailable(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
