package ffmpeg

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner is a scripted commandRunner for testing the adapter without
// ffmpeg installed.
type fakeRunner struct {
	calls   [][]string
	respond func(call int, name string, args []string) (commandResult, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	call := len(f.calls)
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.respond != nil {
		return f.respond(call, name, args)
	}
	return commandResult{}, nil
}

func testRunner(exec commandRunner) *Runner {
	return &Runner{
		ffBin:    "ffmpeg",
		probeBin: "ffprobe",
		timeout:  time.Minute,
		exec:     exec,
	}
}

func TestProbe(t *testing.T) {
	t.Run("parses duration", func(t *testing.T) {
		fake := &fakeRunner{respond: func(int, string, []string) (commandResult, error) {
			return commandResult{Stdout: "125.300000\n"}, nil
		}}
		d, err := testRunner(fake).Probe(context.Background(), "/tmp/source.mp4")
		require.NoError(t, err)
		assert.InDelta(t, 125.3, d, 0.001)

		require.Len(t, fake.calls, 1)
		assert.Equal(t, "ffprobe", fake.calls[0][0])
		assert.Contains(t, fake.calls[0], "format=duration")
	})

	t.Run("tool failure is an error", func(t *testing.T) {
		fake := &fakeRunner{respond: func(int, string, []string) (commandResult, error) {
			return commandResult{Stderr: "No such file or directory"}, errors.New("exit status 1")
		}}
		_, err := testRunner(fake).Probe(context.Background(), "/tmp/missing.mp4")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "No such file")
	})

	t.Run("empty output is an error not zero", func(t *testing.T) {
		fake := &fakeRunner{respond: func(int, string, []string) (commandResult, error) {
			return commandResult{Stdout: ""}, nil
		}}
		_, err := testRunner(fake).Probe(context.Background(), "/tmp/source.mp4")
		assert.Error(t, err)
	})

	t.Run("negative duration is an error", func(t *testing.T) {
		fake := &fakeRunner{respond: func(int, string, []string) (commandResult, error) {
			return commandResult{Stdout: "-1.0"}, nil
		}}
		_, err := testRunner(fake).Probe(context.Background(), "/tmp/source.mp4")
		assert.Error(t, err)
	})
}

func TestCutFallback(t *testing.T) {
	t.Run("stream copy succeeds on first attempt", func(t *testing.T) {
		fake := &fakeRunner{}
		err := testRunner(fake).Cut(context.Background(), "/tmp/src.mp4", 0, 60, "/tmp/out.mp4")
		require.NoError(t, err)
		require.Len(t, fake.calls, 1)
		assert.Contains(t, fake.calls[0], "copy")
	})

	t.Run("copy failure falls back to re-encode", func(t *testing.T) {
		fake := &fakeRunner{respond: func(call int, _ string, _ []string) (commandResult, error) {
			if call == 0 {
				return commandResult{Stderr: "could not seek to keyframe"}, errors.New("exit status 1")
			}
			return commandResult{}, nil
		}}
		err := testRunner(fake).Cut(context.Background(), "/tmp/src.mp4", 60, 60, "/tmp/out.mp4")
		require.NoError(t, err)
		require.Len(t, fake.calls, 2)
		assert.Contains(t, fake.calls[1], "libx264")
		assert.Contains(t, fake.calls[1], "aac")
	})

	t.Run("both attempts failing surfaces only the re-encode error", func(t *testing.T) {
		fake := &fakeRunner{respond: func(call int, _ string, _ []string) (commandResult, error) {
			if call == 0 {
				return commandResult{Stderr: "copy error"}, errors.New("exit status 1")
			}
			return commandResult{Stderr: "encode error"}, errors.New("exit status 1")
		}}
		err := testRunner(fake).Cut(context.Background(), "/tmp/src.mp4", 0, 10, "/tmp/out.mp4")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "encode error")
		assert.NotContains(t, err.Error(), "copy error")
	})

	t.Run("non-positive duration rejected before any invocation", func(t *testing.T) {
		fake := &fakeRunner{}
		err := testRunner(fake).Cut(context.Background(), "/tmp/src.mp4", 10, 0, "/tmp/out.mp4")
		assert.Error(t, err)
		assert.Empty(t, fake.calls)
	})

	t.Run("extra args only apply to the re-encode attempt", func(t *testing.T) {
		fake := &fakeRunner{respond: func(call int, _ string, _ []string) (commandResult, error) {
			if call == 0 {
				return commandResult{}, errors.New("exit status 1")
			}
			return commandResult{}, nil
		}}
		r := testRunner(fake)
		r.extraArgs = []string{"-preset", "medium"}

		require.NoError(t, r.Cut(context.Background(), "/tmp/src.mp4", 0, 10, "/tmp/out.mp4"))
		require.Len(t, fake.calls, 2)
		assert.NotContains(t, fake.calls[0], "-preset")
		assert.Contains(t, fake.calls[1], "-preset")
	})
}

func TestConcat(t *testing.T) {
	t.Run("writes ordered escaped list file", func(t *testing.T) {
		var listContent string
		fake := &fakeRunner{respond: func(_ int, _ string, args []string) (commandResult, error) {
			// The list file path follows -i; capture it before Concat
			// removes the file.
			for i, a := range args {
				if a == "-i" && i+1 < len(args) {
					data, err := os.ReadFile(args[i+1])
					if err == nil {
						listContent = string(data)
					}
				}
			}
			return commandResult{}, nil
		}}

		err := testRunner(fake).Concat(context.Background(), []string{"/tmp/b's.mp4", "/tmp/a.mp4"}, "/tmp/joined.mp4")
		require.NoError(t, err)
		require.Len(t, fake.calls, 1)
		assert.Contains(t, fake.calls[0], "concat")

		lines := strings.Split(strings.TrimSpace(listContent), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, `file '/tmp/b'\''s.mp4'`, lines[0])
		assert.Equal(t, `file '/tmp/a.mp4'`, lines[1])
	})

	t.Run("empty input rejected", func(t *testing.T) {
		fake := &fakeRunner{}
		err := testRunner(fake).Concat(context.Background(), nil, "/tmp/out.mp4")
		assert.Error(t, err)
		assert.Empty(t, fake.calls)
	})
}
