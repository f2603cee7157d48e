package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// SplitExtraArgs securely splits the configured extra re-encode arguments
// into a slice. It prevents shell injection by not using a shell.
func SplitExtraArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	args, err := shlex.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid extra argument syntax: %w", err)
	}
	if err := validateArgs(args); err != nil {
		return nil, err
	}
	return args, nil
}

// validateArgs rejects shell-like metacharacters. exec.Command never invokes
// a shell, but configured arguments should still be plain tokens.
func validateArgs(args []string) error {
	for _, arg := range args {
		if strings.ContainsAny(arg, "|&;`$()<>") {
			return fmt.Errorf("disallowed character found in argument: %s", arg)
		}
	}
	return nil
}
