package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"multi-model-summarizer/internal/telemetry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// InferenceConfig configures the HTTP model server client.
type InferenceConfig struct {
	BaseURL  string
	APIToken string
	Device   string // auto, cuda, cpu
	Timeout  time.Duration
	RPS      float64
	Burst    int
}

// InferenceClient talks to a pipeline-style model server:
//
//	GET  {base}/models/{id}  loads the checkpoint, reports the device
//	POST {base}/models/{id}  runs summarization over a batch of inputs
type InferenceClient struct {
	baseURL     string
	apiToken    string
	device      string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	log         *slog.Logger
}

type generateRequest struct {
	Inputs     []string         `json:"inputs"`
	Parameters GenerationParams `json:"parameters"`
	Options    requestOptions   `json:"options"`
}

type requestOptions struct {
	Device       string `json:"device"`
	WaitForModel bool   `json:"wait_for_model"`
}

type generateOutput struct {
	SummaryText string `json:"summary_text"`
}

type errorBody struct {
	Error string `json:"error"`
}

// statusError is a non-2xx reply from the model server.
type statusError struct {
	Code    int
	Message string
}

func (e *statusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("inference server returned %d", e.Code)
	}
	return fmt.Sprintf("inference server returned %d: %s", e.Code, e.Message)
}

func NewInferenceClient(cfg InferenceConfig, log *slog.Logger, metrics *telemetry.Metrics) *InferenceClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "InferenceAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// Caller mistakes and cancellations say nothing about server health
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var se *statusError
			if errors.As(err, &se) {
				return se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
			}
			return false
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	return &InferenceClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiToken:    cfg.APIToken,
		device:      cfg.Device,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		breaker:     breaker,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		log:         log,
	}
}

// Load asks the server to make modelID ready and returns where it runs.
func (c *InferenceClient) Load(ctx context.Context, modelID string) (*ModelInfo, error) {
	ctx, span := otel.Tracer(telemetry.ServiceName).Start(ctx, "inference.load")
	defer span.End()
	span.SetAttributes(
		attribute.String("inference.model", modelID),
		attribute.String("inference.device", c.device),
	)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var info ModelInfo
		if err := c.do(ctx, http.MethodGet, modelID, nil, &info); err != nil {
			return nil, err
		}
		return &info, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("inference.error", true))
		return nil, &ModelLoadError{Model: modelID, Err: err}
	}

	info := result.(*ModelInfo)
	if info.ModelID == "" {
		info.ModelID = modelID
	}
	span.SetAttributes(attribute.String("inference.loaded_device", info.Device))
	return info, nil
}

// Generate runs one summarization per input, outputs in input order.
func (c *InferenceClient) Generate(ctx context.Context, modelID string, inputs []string, params GenerationParams) ([]string, error) {
	ctx, span := otel.Tracer(telemetry.ServiceName).Start(ctx, "inference.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("inference.model", modelID),
		attribute.Int("inference.inputs", len(inputs)),
		attribute.Int("inference.max_length", params.MaxLength),
		attribute.Int("inference.min_length", params.MinLength),
	)

	if err := c.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("inference.rate_limited", true))
		return nil, &GenerationError{Model: modelID, Err: err}
	}

	body := generateRequest{
		Inputs:     inputs,
		Parameters: params,
		Options:    requestOptions{Device: c.device, WaitForModel: true},
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var out []generateOutput
		if err := c.do(ctx, http.MethodPost, modelID, body, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			span.SetAttributes(attribute.Bool("inference.circuit_breaker_open", true))
		}
		span.SetAttributes(attribute.Bool("inference.error", true))
		return nil, &GenerationError{Model: modelID, Err: err}
	}

	out := result.([]generateOutput)
	if len(out) != len(inputs) {
		return nil, &GenerationError{
			Model: modelID,
			Err:   fmt.Errorf("expected %d summaries, got %d", len(inputs), len(out)),
		}
	}

	summaries := make([]string, len(out))
	for i, o := range out {
		summaries[i] = o.SummaryText
	}
	span.SetAttributes(attribute.Bool("inference.success", true))
	return summaries, nil
}

func (c *InferenceClient) do(ctx context.Context, method, modelID string, in, out any) error {
	endpoint := c.baseURL + "/models/" + url.PathEscape(modelID)
	// Hub ids carry an org prefix; keep the slash literal
	endpoint = strings.ReplaceAll(endpoint, "%2F", "/")

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.DebugContext(ctx, "inference request",
		"method", method,
		"model", modelID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &eb) != nil || eb.Error == "" {
			eb.Error = strings.TrimSpace(string(data))
		}
		return &statusError{Code: resp.StatusCode, Message: eb.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
