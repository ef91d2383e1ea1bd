package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCommand(t *testing.T) {
	got := SplitCommand("ffmpeg -f v4l2 -i {device} -frames:v 1 -", map[string]string{"device": "/dev/video2"})
	assert.Equal(t, []string{"ffmpeg", "-f", "v4l2", "-i", "/dev/video2", "-frames:v", "1", "-"}, got)
}

func TestSplitCommand_Empty(t *testing.T) {
	assert.Empty(t, SplitCommand("   ", nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab...(truncated)", Truncate("abc", 2))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, -1, ExitCode(nil))
	assert.Equal(t, -1, ExitCode(errors.New("not started")))
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := NewExecRunner(nil)
	_, _, err := r.Run(context.Background(), "fichas-no-such-binary")
	assert.Error(t, err)
	assert.Equal(t, -1, ExitCode(err))
}
