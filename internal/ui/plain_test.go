package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_UpdateProgress_PrintsFile(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: a document event arrives
	r.UpdateProgress(ProgressEvent{
		Stage:       StageScanning,
		Current:     12,
		CurrentFile: "myapp/tasks/001-login.md",
	})

	// Then: the file is printed under the stage tag
	output := buf.String()
	assert.Contains(t, output, "[SCAN]")
	assert.Contains(t, output, "myapp/tasks/001-login.md")
}

func TestPlainRenderer_UpdateProgress_PrefersMessage(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: an event carries both a message and a file
	r.UpdateProgress(ProgressEvent{
		Stage:       StageIndexing,
		Message:     "Writing 42 documents...",
		CurrentFile: "myapp/notes.md",
	})

	// Then: the message wins
	output := buf.String()
	assert.Contains(t, output, "[INDEX]")
	assert.Contains(t, output, "Writing 42 documents...")
	assert.NotContains(t, output, "notes.md")
}

func TestPlainRenderer_UpdateProgress_SilentWithoutText(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: an event has neither message nor file
	r.UpdateProgress(ProgressEvent{Stage: StageScanning, Current: 3})

	// Then: nothing is printed
	assert.Empty(t, buf.String())
}

func TestPlainRenderer_UpdateProgress_NoANSICodes(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: rendering through all stages
	for _, stage := range []Stage{StageScanning, StageIndexing, StageComplete} {
		r.UpdateProgress(ProgressEvent{Stage: stage, Message: "working..."})
	}

	// Then: output contains no ANSI escape codes
	output := buf.String()
	assert.NotContains(t, output, "\x1b[", "should not contain ANSI escape codes")
}

func TestPlainRenderer_AddError_Error(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: adding an error
	r.AddError(ErrorEvent{
		File: "myapp/broken.md",
		Err:  errors.New("file is not valid UTF-8"),
	})

	// Then: the error line names the file
	output := buf.String()
	assert.Contains(t, output, "ERROR:")
	assert.Contains(t, output, "myapp/broken.md")
	assert.Contains(t, output, "not valid UTF-8")
}

func TestPlainRenderer_AddError_Warning(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: adding a warning without a file
	r.AddError(ErrorEvent{
		Err:    errors.New("frontmatter invalid"),
		IsWarn: true,
	})

	// Then: the line is tagged WARN
	output := buf.String()
	assert.Contains(t, output, "WARN:")
	assert.Contains(t, output, "frontmatter invalid")
	assert.NotContains(t, output, "ERROR")
}

func TestPlainRenderer_Complete_Summary(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: completing with stats
	r.Complete(CompletionStats{
		Documents: 42,
		Chunks:    160,
		Warnings:  2,
		Duration:  1200 * time.Millisecond,
	})

	// Then: the summary line carries every number
	output := buf.String()
	assert.Contains(t, output, "42 documents")
	assert.Contains(t, output, "160 chunks")
	assert.Contains(t, output, "1.2s")
	assert.Contains(t, output, "2 warnings")
}

func TestPlainRenderer_Complete_OmitsZeroWarnings(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: completing a clean rebuild
	r.Complete(CompletionStats{Documents: 5, Chunks: 9, Duration: time.Second})

	// Then: no warning suffix appears
	assert.NotContains(t, buf.String(), "warnings")
}

func TestPlainRenderer_Lifecycle(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: starting and stopping
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Stop())

	// Then: lifecycle is a no-op
	assert.Empty(t, strings.TrimSpace(buf.String()))
}
