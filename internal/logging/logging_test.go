package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/dicom-viewer-api/internal/domain"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"nonsense", logrus.InfoLevel},
		{"", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger(domain.LoggingConfig{Level: tt.level, Format: "json"})
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestNewLoggerFormats(t *testing.T) {
	jsonLogger := NewLogger(domain.LoggingConfig{Level: "info", Format: "json"})
	assert.IsType(t, &logrus.JSONFormatter{}, jsonLogger.Formatter)

	textLogger := NewLogger(domain.LoggingConfig{Level: "info", Format: "text"})
	assert.IsType(t, &logrus.TextFormatter{}, textLogger.Formatter)
}
