package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigErrorSeverity(t *testing.T) {
	err := ConfigError("load", "unknown field foo")
	assert.Equal(t, KindConfig, err.Kind)
	assert.Equal(t, SeverityHigh, err.Severity)
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := OutputError("flush", "write failed").Wrap(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestAsAppError(t *testing.T) {
	var err error = StepError("apply", "bad tag shape")
	ae, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, KindStep, ae.Kind)
}
