package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "plain error", err: errors.New("boom"), want: ExitCommandError},
		{name: "exit error", err: NewExitError(ExitFailure, "not verified"), want: ExitFailure},
		{name: "wrapped exit error", err: fmt.Errorf("outer: %w", NewExitError(ExitFailure, "x")), want: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError(t *testing.T) {
	inner := errors.New("connection refused")
	err := WrapExitError(ExitCommandError, "signing in", inner)

	assert.Equal(t, "signing in: connection refused", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "plain", NewExitError(ExitFailure, "plain").Error())
}

func TestOutputFormatter_SuccessText(t *testing.T) {
	var out bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &out}

	require.NoError(t, f.Success("ignored", func(w io.Writer) { fmt.Fprint(w, "rendered") }))
	assert.Equal(t, "rendered", out.String())

	out.Reset()
	require.NoError(t, f.Success("fallback", nil))
	assert.Equal(t, "fallback\n", out.String())
}

func TestOutputFormatter_SuccessJSON(t *testing.T) {
	var out bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out}

	require.NoError(t, f.Success(flushView{Sent: 2, Remaining: 1}, nil))

	var resp struct {
		Status string    `json:"status"`
		Data   flushView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, flushView{Sent: 2, Remaining: 1}, resp.Data)
}

func TestOutputFormatter_Fail(t *testing.T) {
	t.Run("text goes to the error writer", func(t *testing.T) {
		var out, errOut bytes.Buffer
		f := &OutputFormatter{Format: "text", Writer: &out, ErrWriter: &errOut}

		err := f.Fail(ExitFailure, ErrCodeSession, "not signed in", nil)

		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Empty(t, out.String())
		assert.Equal(t, "Error [E004]: not signed in\n", errOut.String())

		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.True(t, exitErr.reported)
	})

	t.Run("json goes to the output writer", func(t *testing.T) {
		var out bytes.Buffer
		f := &OutputFormatter{Format: "json", Writer: &out}

		err := f.Fail(ExitCommandError, ErrCodeBackend, "listing buses", errors.New("timeout"))

		assert.Equal(t, ExitCommandError, GetExitCode(err))
		var resp CLIResponse
		require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeBackend, resp.Error.Code)
		assert.Equal(t, "listing buses: timeout", resp.Error.Message)
	})
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	var out, errOut bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut}

	f.VerboseLog("hidden %d", 1)
	assert.Empty(t, errOut.String())

	f.Verbose = true
	f.VerboseLog("shown %d", 2)
	assert.Equal(t, "shown 2\n", errOut.String())
	assert.Empty(t, out.String())
}
