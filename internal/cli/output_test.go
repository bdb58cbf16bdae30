package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"result": "ok"})
	require.NoError(t, err)

	var resp Response
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONFailure(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Failure("compilation failed", map[string]string{"file": "bad.cue"})
	require.NoError(t, err)

	var resp Response
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "compilation failed", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("All scenarios passed")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "All scenarios passed")
}

func TestOutputFormatter_TextFailure(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Failure("bad workbook", "details here")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error: bad workbook")
	assert.Contains(t, buf.String(), "details here")
}

func TestExitError(t *testing.T) {
	base := errors.New("boom")
	err := WrapExitError(ExitCommandError, "open database", base)

	assert.Equal(t, "open database: boom", err.Error())
	assert.Equal(t, base, errors.Unwrap(err))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCodeDefaultsToFailure(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
