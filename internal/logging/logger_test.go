package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"Warn", WARN, false},
		{"error", ERROR, false},
		{"FATAL", FATAL, false},
		{"verbose", -1, true},
		{"", -1, true},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestPackageLogLevels(t *testing.T) {
	err := SetPackageLogLevels(map[string]string{
		"linker":     "DEBUG",
		"ceg.*":      "WARN",
		"ceg.engine": "ERROR",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = SetPackageLogLevels(map[string]string{}) })

	assert.Equal(t, DEBUG, GetPackageLogLevel("linker"))
	// Exact match wins over the wildcard.
	assert.Equal(t, ERROR, GetPackageLogLevel("ceg.engine"))
	assert.Equal(t, WARN, GetPackageLogLevel("ceg.evidence"))
	// Wildcard does not match the bare prefix.
	assert.Equal(t, LogLevel(-1), GetPackageLogLevel("ceg"))
	assert.Equal(t, LogLevel(-1), GetPackageLogLevel("orchestrator"))
}

func TestSetPackageLogLevelsInvalid(t *testing.T) {
	err := SetPackageLogLevels(map[string]string{"linker": "noisy"})
	assert.Error(t, err)
}

func TestWithFieldImmutability(t *testing.T) {
	base := GetLogger("test")
	child := base.WithField("batch_id", "b-1")

	assert.Empty(t, base.fields)
	assert.Equal(t, "b-1", child.fields["batch_id"])

	grandchild := child.WithField("source", "rbc")
	assert.Len(t, child.fields, 1)
	assert.Len(t, grandchild.fields, 2)
}

func TestShouldLogRespectsOverride(t *testing.T) {
	require.NoError(t, SetPackageLogLevels(map[string]string{"quiet": "ERROR"}))
	t.Cleanup(func() { _ = SetPackageLogLevels(map[string]string{}) })

	logger := GetLogger("quiet")
	assert.False(t, logger.shouldLog(INFO))
	assert.True(t, logger.shouldLog(ERROR))
}

func TestFatalUsesExitFunc(t *testing.T) {
	var exitCode int
	origExit := exitFunc
	exitFunc = func(code int) { exitCode = code }
	t.Cleanup(func() { exitFunc = origExit })

	GetLogger("test").Fatal("boom")
	assert.Equal(t, 1, exitCode)
}
