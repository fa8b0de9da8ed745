package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, "User registered successfully", map[string]string{"email": "a@x.com"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(201), body["statusCode"])
	assert.Equal(t, "User registered successfully", body["message"])
	assert.Equal(t, map[string]interface{}{"email": "a@x.com"}, body["data"])
}

func TestError_OmitsData(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusNotFound, "User not found")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(404), body["statusCode"])
	_, ok := body["data"]
	assert.False(t, ok)
}

func TestBuildOTPHTML(t *testing.T) {
	out := BuildOTPHTML("123456", 10*time.Minute)
	assert.Contains(t, out, "123456")
	assert.Contains(t, out, "10 minutes")

	assert.Contains(t, BuildOTPHTML("<b>", time.Hour), "&lt;b&gt;")
	assert.Contains(t, BuildOTPHTML("1", time.Hour), "1 hour")
	assert.Contains(t, BuildOTPHTML("1", 90*time.Second), "1m30s")
}
