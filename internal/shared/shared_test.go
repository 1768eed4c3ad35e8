package shared

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

func TestLogger(t *testing.T) {
	t.Run("ConfigureLogger", func(t *testing.T) {
		tc := []struct {
			name  string
			level string
			want  log.Level
		}{
			{name: "debug", level: "debug", want: log.DebugLevel},
			{name: "error", level: "error", want: log.ErrorLevel},
			{name: "empty keeps default", level: "", want: log.InfoLevel},
			{name: "unknown keeps default", level: "verbose", want: log.InfoLevel},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				logger := NewLogger(&bytes.Buffer{})
				ConfigureLogger(logger, tt.level)
				if logger.GetLevel() != tt.want {
					t.Errorf("expected level %v, got %v", tt.want, logger.GetLevel())
				}
			})
		}
	})

	t.Run("WithLogger adds fields", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := WithLogger(NewLogger(buf), "job", "abc")
		logger.Info("hello")

		if !strings.Contains(buf.String(), "job=abc") {
			t.Errorf("expected scoped field in output, got %q", buf.String())
		}
	})
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("expected valid uuid, got %q: %v", id, err)
	}
	if id == GenerateID() {
		t.Error("expected unique ids")
	}
}
