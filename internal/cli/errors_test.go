package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gps-logger/backend/internal/timeprefix"
)

func TestErrorConstructors(t *testing.T) {
	cause := errors.New("disk full")

	tests := []struct {
		err  *Error
		code string
	}{
		{NewUsageError("bad"), CodeUsage},
		{NewConflictError("both"), CodeArgumentConflict},
		{NewUnsupportedError("last"), CodeUnsupportedFeature},
		{NewInvalidPrefixError("-p/--prefix", cause), CodeInvalidPrefix},
		{NewConfigError(cause), CodeConfig},
		{NewStorageError("connect", cause), CodeStorage},
		{NewExportError("write", cause), CodeExport},
		{NewPushError("push", cause), CodePush},
		{NewDeviceError("/dev/ttyACM0", cause), CodeDevice},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, ExitFailure, ExitCode(tt.err))
			assert.Contains(t, tt.err.Error(), tt.code+": ")
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	_, parseErr := timeprefix.Validate("nope")
	err := NewInvalidPrefixError("-s/--start", parseErr)

	assert.True(t, timeprefix.IsKind(err, timeprefix.InvalidFormat))
	assert.Equal(t, "argument -s/--start: "+parseErr.Error(), userMessage(err))

	wrapped := fmt.Errorf("export: %w", NewUnsupportedError("last"))
	assert.Equal(t, ExitFailure, ExitCode(wrapped))
	assert.Equal(t, "last is not implemented yet", userMessage(wrapped))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("plain")))
	assert.Equal(t, ExitFailure, ExitCode(&Error{Code: "SOMETHING_NEW"}))
}
