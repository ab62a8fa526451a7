package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("INFERENCE_URL", "http://inference:8000")
	t.Setenv("DEVICE", " CPU ")
	t.Setenv("REDIS_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Device != "cpu" {
		t.Fatalf("device = %q, want cpu", cfg.Device)
	}
	if cfg.ModelBARTID != "facebook/bart-large-cnn" {
		t.Fatalf("bart id = %q", cfg.ModelBARTID)
	}
	if cfg.UploadRetention != time.Hour {
		t.Fatalf("retention = %v", cfg.UploadRetention)
	}
	if cfg.RedisEnabled() {
		t.Fatalf("redis should be disabled without REDIS_URL")
	}
}

func TestLoadConfigRejectsUnknownDevice(t *testing.T) {
	t.Setenv("INFERENCE_URL", "http://inference:8000")
	t.Setenv("DEVICE", "tpu")

	if _, err := LoadConfig(); err == nil || !strings.Contains(err.Error(), "DEVICE") {
		t.Fatalf("expected DEVICE error, got %v", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := &Config{Device: "tpu", MaxFileSize: 1, UploadRetention: time.Hour, JanitorInterval: time.Minute, InferenceBatchSize: 1, InferenceConcurrency: 1, InferenceRPS: 1, InferenceBurst: 1}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"INFERENCE_URL", "DEVICE"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadConfigRejectsZeroJanitorInterval(t *testing.T) {
	t.Setenv("INFERENCE_URL", "http://inference:8000")
	t.Setenv("JANITOR_INTERVAL", "0s")
	t.Setenv("UPLOAD_RETENTION", "0s")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"JANITOR_INTERVAL", "UPLOAD_RETENTION"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}
