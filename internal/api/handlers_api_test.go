package api

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON_EncodeFailureIs500(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, map[string]float64{"max": math.NaN()})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Error("expected an error body")
	}
}
