package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"multi-model-summarizer/internal/logger"
	"multi-model-summarizer/internal/telemetry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestClient(url string) *InferenceClient {
	return NewInferenceClient(InferenceConfig{
		BaseURL: url,
		Device:  "cpu",
		Timeout: 5 * time.Second,
		RPS:     1000,
		Burst:   1000,
	}, logger.Discard(), nil)
}

func TestGenerateSendsParamsAndKeepsOrder(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/models/facebook/bart-large-cnn" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		out := make([]generateOutput, len(got.Inputs))
		for i, in := range got.Inputs {
			out[i] = generateOutput{SummaryText: "sum:" + in}
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	params := DefaultGenerationParams(150, 30)
	params.MaxInputTokens = 1024
	summaries, err := newTestClient(srv.URL).Generate(context.Background(), "facebook/bart-large-cnn", []string{"a", "b"}, params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(summaries) != 2 || summaries[0] != "sum:a" || summaries[1] != "sum:b" {
		t.Fatalf("summaries = %q", summaries)
	}
	if got.Parameters.NumBeams != 4 || got.Parameters.LengthPenalty != 2.0 || !got.Parameters.EarlyStopping {
		t.Fatalf("beam settings not forwarded: %+v", got.Parameters)
	}
	if got.Parameters.MaxLength != 150 || got.Parameters.MinLength != 30 || got.Parameters.MaxInputTokens != 1024 {
		t.Fatalf("length bounds not forwarded: %+v", got.Parameters)
	}
	if got.Options.Device != "cpu" || !got.Options.WaitForModel {
		t.Fatalf("options = %+v", got.Options)
	}
}

func TestGenerateRejectsShortBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]generateOutput{{SummaryText: "only one"}})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "t5-base", []string{"a", "b"}, DefaultGenerationParams(100, 10))
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestLoadFailureNamesModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errorBody{Error: "Repository not found"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Load(context.Background(), "google/pegasus-xsum")
	var loadErr *ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected ModelLoadError, got %v", err)
	}
	if loadErr.Model != "google/pegasus-xsum" {
		t.Fatalf("model = %q", loadErr.Model)
	}
	want := "load model google/pegasus-xsum: inference server returned 404: Repository not found"
	if err.Error() != want {
		t.Fatalf("error = %q, want %q", err, want)
	}
}

func TestLoadReportsDevice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		json.NewEncoder(w).Encode(ModelInfo{Loaded: true, Device: "cuda:0"})
	}))
	defer srv.Close()

	info, err := newTestClient(srv.URL).Load(context.Background(), "t5-base")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if info.ModelID != "t5-base" || info.Device != "cuda:0" || !info.Loaded {
		t.Fatalf("info = %+v", info)
	}
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := client.Generate(context.Background(), "t5-base", []string{"x"}, DefaultGenerationParams(100, 10)); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	_, err := client.Generate(context.Background(), "t5-base", []string{"x"}, DefaultGenerationParams(100, 10))
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsUnavailable(err) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("server saw %d calls, want 3", calls.Load())
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad input"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	for i := 0; i < 5; i++ {
		_, err := client.Generate(context.Background(), "t5-base", []string{"x"}, DefaultGenerationParams(100, 10))
		if IsUnavailable(err) {
			t.Fatalf("call %d: breaker opened on client errors", i)
		}
	}
}

func TestSpansUseServiceTracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	defer otel.SetTracerProvider(prev)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]generateOutput{{SummaryText: "ok"}})
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Generate(context.Background(), "t5-base", []string{"x"}, DefaultGenerationParams(100, 10)); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) == 0 {
		t.Fatal("no spans recorded")
	}
	for _, s := range spans {
		if s.InstrumentationScope().Name != telemetry.ServiceName {
			t.Fatalf("span %q scope = %q", s.Name(), s.InstrumentationScope().Name)
		}
	}
}
