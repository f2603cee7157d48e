package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipforge/config"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout string
	Stderr string
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return commandResult{Stdout: stdout.String(), Stderr: stderr.String()}, err
}

// Runner invokes the external transcoding utility. It exposes pure
// path/time in, path out operations; policy about which failures abort a
// job belongs to callers.
type Runner struct {
	ffBin     string
	probeBin  string
	timeout   time.Duration
	extraArgs []string
	exec      commandRunner
}

func NewRunner(cfg *config.Config) (*Runner, error) {
	if _, err := exec.LookPath(cfg.FFBin); err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found or not in PATH: %s", cfg.FFBin)
	}
	if _, err := exec.LookPath(cfg.FFProbeBin); err != nil {
		return nil, fmt.Errorf("ffprobe binary not found or not in PATH: %s", cfg.FFProbeBin)
	}

	extraArgs, err := SplitExtraArgs(cfg.FFExtraArgs)
	if err != nil {
		return nil, err
	}

	return &Runner{
		ffBin:     cfg.FFBin,
		probeBin:  cfg.FFProbeBin,
		timeout:   cfg.FFTimeout,
		extraArgs: extraArgs,
		exec:      execRunner{},
	}, nil
}

// Probe returns the media duration in seconds. A missing, unparsable, or
// negative duration is an error; it is never reported as zero-and-ok.
func (r *Runner) Probe(ctx context.Context, source string) (float64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.exec.Run(ctx, r.probeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		source,
	)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w: %s", filepath.Base(source), err, firstLine(res.Stderr))
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	if err != nil {
		return 0, fmt.Errorf("parse probed duration for %s: %w", filepath.Base(source), err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("probe reported a negative duration for %s", filepath.Base(source))
	}
	return duration, nil
}

// Cut extracts [startSec, startSec+durSec) from source into outPath. It
// first attempts a stream copy; if the tool rejects it the cut is retried
// once with re-encoding. When both attempts fail only the re-encode error is
// returned.
func (r *Runner) Cut(ctx context.Context, source string, startSec, durSec float64, outPath string) error {
	if durSec <= 0 {
		return fmt.Errorf("cut duration must be positive, got %.2f", durSec)
	}

	copyArgs := r.cutArgs(source, startSec, durSec, []string{"-c", "copy"}, outPath)
	if err := r.runFF(ctx, copyArgs, outPath); err == nil {
		return nil
	} else {
		log.Printf("Stream copy failed for %s, retrying with re-encode: %v", filepath.Base(outPath), err)
	}

	encode := []string{"-c:v", "libx264", "-c:a", "aac", "-strict", "experimental"}
	encode = append(encode, r.extraArgs...)
	encodeArgs := r.cutArgs(source, startSec, durSec, encode, outPath)
	if err := r.runFF(ctx, encodeArgs, outPath); err != nil {
		return fmt.Errorf("cut %s: %w", filepath.Base(outPath), err)
	}
	return nil
}

// Concat joins the files, in the order given, into outPath. Stream copy is
// preserved; the concat list file is always removed.
func (r *Runner) Concat(ctx context.Context, paths []string, outPath string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no input files to concatenate")
	}

	listFile, err := writeConcatList(paths)
	if err != nil {
		return err
	}
	defer os.Remove(listFile)

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		"-vsync", "vfr",
		outPath,
	}
	if err := r.runFF(ctx, args, outPath); err != nil {
		return fmt.Errorf("concatenate %d files: %w", len(paths), err)
	}
	return nil
}

func (r *Runner) cutArgs(source string, startSec, durSec float64, codec []string, outPath string) []string {
	args := []string{
		"-y",
		"-ss", formatSeconds(startSec),
		"-t", formatSeconds(durSec),
		"-i", source,
	}
	args = append(args, codec...)
	args = append(args, "-avoid_negative_ts", "1", outPath)
	return args
}

// runFF executes one ffmpeg invocation and removes the (likely partial)
// output file on failure.
func (r *Runner) runFF(ctx context.Context, args []string, outPath string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.exec.Run(ctx, r.ffBin, args...)
	if err != nil {
		os.Remove(outPath)
		return fmt.Errorf("ffmpeg execution failed: %w: %s", err, firstLine(res.Stderr))
	}
	return nil
}

func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// writeConcatList produces a concat-demuxer list file of absolute,
// single-quote-escaped paths.
func writeConcatList(paths []string) (string, error) {
	tmp, err := os.CreateTemp("", "concat_*.txt")
	if err != nil {
		return "", fmt.Errorf("create concat list: %w", err)
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", fmt.Errorf("resolve path %s: %w", p, err)
		}
		escaped := strings.ReplaceAll(abs, "'", `'\''`)
		if _, err := fmt.Fprintf(tmp, "file '%s'\n", escaped); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", fmt.Errorf("write concat list: %w", err)
		}
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
