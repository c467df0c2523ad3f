package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
		wantErr  bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"DEBUG", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"  info  ", zapcore.InfoLevel, false},
		{"fatal", zapcore.InfoLevel, true},
		{"", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && level != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, level, tt.expected)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		logger, err := New(nil)
		if err != nil {
			t.Fatalf("New(nil) error = %v", err)
		}
		if logger.GetLevel() != "info" {
			t.Errorf("expected level = info, got %s", logger.GetLevel())
		}
	})

	t.Run("invalid level returns error", func(t *testing.T) {
		if _, err := New(&Config{Level: "loud"}); err == nil {
			t.Error("expected error for invalid level")
		}
	})
}

func TestForSession_AddsField(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: "info", Format: "json", Environment: "production", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ForSession(logger.Zap(), "sess-42").Info("turn handled")
	_ = logger.Sync()

	if !strings.Contains(buf.String(), `"session_id":"sess-42"`) {
		t.Errorf("expected session_id in output, got %s", buf.String())
	}
}

func TestChildrenShareLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(&Config{Level: "info", Output: &buf})
	child := logger.Named("dialogue")

	child.Debug("hidden")
	if err := logger.SetLevel("debug"); err != nil {
		t.Fatal(err)
	}
	child.Debug("visible")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug entry logged before level change")
	}
	if !strings.Contains(buf.String(), "visible") {
		t.Error("debug entry missing after level change")
	}
	if child.GetLevel() != "debug" {
		t.Errorf("child level = %s, want debug", child.GetLevel())
	}
}

func TestLogger_ServeHTTP(t *testing.T) {
	logger, _ := New(&Config{Level: "info", Output: &bytes.Buffer{}})

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		wantLevel  string
	}{
		{"get", http.MethodGet, "/admin/log-level", http.StatusOK, "info"},
		{"put query", http.MethodPut, "/admin/log-level?level=debug", http.StatusOK, "debug"},
		{"post query", http.MethodPost, "/admin/log-level?level=warn", http.StatusOK, "warn"},
		{"missing level", http.MethodPut, "/admin/log-level", http.StatusBadRequest, "warn"},
		{"invalid level", http.MethodPut, "/admin/log-level?level=nope", http.StatusBadRequest, "warn"},
		{"delete", http.MethodDelete, "/admin/log-level", http.StatusMethodNotAllowed, "warn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			logger.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if logger.GetLevel() != tt.wantLevel {
				t.Errorf("level = %s, want %s", logger.GetLevel(), tt.wantLevel)
			}
		})
	}
}
