package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/config"
	"go.uber.org/zap/zapcore"
)

func TestNewSugaredLogger(t *testing.T) {
	tests := []struct {
		name          string
		loggingConfig string
		expectedLevel zapcore.Level
		expectError   bool
	}{
		{
			name: "info level json encoding",
			loggingConfig: `
logging:
  level: info
  encoding: json
  outputPaths:
    - stdout
`,
			expectedLevel: zapcore.InfoLevel,
		},
		{
			name: "debug level console encoding in development",
			loggingConfig: `
logging:
  level: debug
  development: true
  encoding: console
`,
			expectedLevel: zapcore.DebugLevel,
		},
		{
			name: "invalid level",
			loggingConfig: `
logging:
  level: loud
`,
			expectError: true,
		},
		{
			name: "unopenable output",
			loggingConfig: `
logging:
  level: info
  outputPaths:
    - /nonexistent/dir/lpd.log
`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := config.NewYAML(config.Source(strings.NewReader(tt.loggingConfig)))
			require.NoError(t, err)

			sugared, err := NewSugaredLogger(provider)
			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			logger := NewLogger(sugared)
			assert.True(t, logger.Core().Enabled(tt.expectedLevel))
			assert.False(t, logger.Core().Enabled(tt.expectedLevel-1))
		})
	}
}

func TestNewSugaredLogger_FileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "lpd.log")
	provider, err := config.NewStaticProvider(map[string]interface{}{
		"logging": map[string]interface{}{
			"level":       "info",
			"encoding":    "json",
			"outputPaths": []string{logFile},
		},
	})
	require.NoError(t, err)

	logger, err := NewSugaredLogger(provider)
	require.NoError(t, err)
	logger.Infow("peer connected", "clientID", "abc")
	require.NoError(t, logger.Sync())

	contents, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(contents), `"clientID":"abc"`)
}
