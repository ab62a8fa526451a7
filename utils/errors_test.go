package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func respond(t *testing.T, fn func(c *gin.Context)) (int, ErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	fn(c)

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return rec.Code, resp
}

func TestRespondWithBadRequest(t *testing.T) {
	code, resp := respond(t, func(c *gin.Context) {
		RespondWithBadRequest(c, "Error: model is required", nil)
	})
	if code != http.StatusBadRequest || resp.ErrorCode != "invalid_request" || resp.Message != "Error: model is required" {
		t.Fatalf("got %d %+v", code, resp)
	}
	if resp.Details != nil {
		t.Fatalf("details = %v", resp.Details)
	}
}

func TestRespondWithInternalError(t *testing.T) {
	code, resp := respond(t, func(c *gin.Context) {
		RespondWithInternalError(c, "Error: disk full", map[string]string{"op": "save"})
	})
	if code != http.StatusInternalServerError || resp.ErrorCode != "internal_error" {
		t.Fatalf("got %d %+v", code, resp)
	}
	details, ok := resp.Details.(map[string]interface{})
	if !ok || details["op"] != "save" {
		t.Fatalf("details = %#v", resp.Details)
	}
}
