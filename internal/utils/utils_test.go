package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestWriteJSON(t *testing.T) {
	t.Run("sets content-type and status", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := map[string]string{"key": "value"}
		WriteJSON(w, http.StatusOK, body)

		if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
			t.Errorf("Content-Type = %q; want application/json; charset=utf-8", got)
		}
		if w.Code != http.StatusOK {
			t.Errorf("Code = %d; want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("encodes body as JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := map[string]string{"foo": "bar"}
		WriteJSON(w, http.StatusCreated, body)

		var got map[string]string
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("body is not valid JSON: %v", err)
		}
		if got["foo"] != "bar" {
			t.Errorf("body[foo] = %q; want bar", got["foo"])
		}
	})

	t.Run("renders floats in shortest form", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteJSON(w, http.StatusOK, []float64{44.355, 176.255005, 6.2, 5.7})

		if got := strings.TrimSpace(w.Body.String()); got != "[44.355,176.255005,6.2,5.7]" {
			t.Errorf("body = %s; want [44.355,176.255005,6.2,5.7]", got)
		}
	})
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	status := http.StatusBadRequest
	msg := "invalid input"
	WriteError(w, status, msg)

	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q; want application/json; charset=utf-8", got)
	}
	if w.Code != status {
		t.Errorf("Code = %d; want %d", w.Code, status)
	}

	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if got["error"] != msg {
		t.Errorf("error = %q; want %q", got["error"], msg)
	}
	if len(got) != 1 {
		t.Errorf("body = %v; want only the error key", got)
	}
}

func TestWriteText(t *testing.T) {
	w := httptest.NewRecorder()
	WriteText(w, http.StatusNotFound, "Item not found")

	if got := w.Header().Get("Content-Type"); got != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q; want text/plain; charset=utf-8", got)
	}
	if w.Code != http.StatusNotFound {
		t.Errorf("Code = %d; want %d", w.Code, http.StatusNotFound)
	}
	if got := w.Body.String(); got != "Item not found" {
		t.Errorf("body = %q; want Item not found", got)
	}
}
