package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"
)

// stderrTailBytes bounds how much tool output is kept on a ToolError.
const stderrTailBytes = 2048

// ---------------------------------------------------------------------------
// Runner: the seam between the pipeline and the process table
// ---------------------------------------------------------------------------

// Runner executes an external binary. The default implementation shells out
// with os/exec; tests substitute a fake that writes output files directly.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// ToolError is returned when an external tool invocation fails.
type ToolError struct {
	Op       string
	Tool     string
	ExitCode int
	TimedOut bool
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", e.Tool, e.Op)
	switch {
	case e.TimedOut:
		sb.WriteString(" timed out")
	case e.ExitCode > 0:
		fmt.Fprintf(&sb, " exited with code %d", e.ExitCode)
	default:
		sb.WriteString(" failed")
	}
	if e.Err != nil && !e.TimedOut && e.ExitCode <= 0 {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&sb, ": %s", lastLine(e.Stderr))
	}
	return sb.String()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// ToolResult holds the captured output of a successful invocation.
type ToolResult struct {
	Stdout string
	Stderr string
}

// ---------------------------------------------------------------------------
// FFmpegService
// ---------------------------------------------------------------------------

type FFmpegService struct {
	ffmpegPath  string
	ffprobePath string
	runner      Runner
}

func NewFFmpegService(ffmpegPath, ffprobePath string) *FFmpegService {
	return NewFFmpegServiceWithRunner(ffmpegPath, ffprobePath, execRunner{})
}

// NewFFmpegServiceWithRunner builds a service around a custom Runner.
func NewFFmpegServiceWithRunner(ffmpegPath, ffprobePath string, runner Runner) *FFmpegService {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	if runner == nil {
		runner = execRunner{}
	}
	return &FFmpegService{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
	}
}

// Run invokes ffmpeg with the given arguments under a hard timeout.
// "-hide_banner -nostdin -y" is always prepended.
func (s *FFmpegService) Run(ctx context.Context, op string, timeout time.Duration, args ...string) (*ToolResult, error) {
	full := append([]string{"-hide_banner", "-nostdin", "-y"}, args...)
	return s.invoke(ctx, s.ffmpegPath, op, timeout, full)
}

func (s *FFmpegService) invoke(ctx context.Context, binary, op string, timeout time.Duration, args []string) (*ToolResult, error) {
	runCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	var stdout, stderr bytes.Buffer
	start := time.Now()
	err := s.runner.Run(runCtx, binary, args, &stdout, &stderr)
	if err == nil {
		log.Printf("[FFmpeg] %s finished in %s", op, time.Since(start).Round(time.Millisecond))
		return &ToolResult{Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}

	toolErr := &ToolError{
		Op:       op,
		Tool:     toolName(binary),
		ExitCode: -1,
		Stderr:   tail(stderr.String(), stderrTailBytes),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		toolErr.ExitCode = exitErr.ExitCode()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		toolErr.TimedOut = true
	}
	log.Printf("[FFmpeg] %s failed after %s: %v", op, time.Since(start).Round(time.Millisecond), toolErr)
	return nil, toolErr
}

// ProbeDuration returns the container duration of a media file in seconds.
func (s *FFmpegService) ProbeDuration(ctx context.Context, path string, timeout time.Duration) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	result, err := s.invoke(ctx, s.ffprobePath, "probe duration", timeout, args)
	if err != nil {
		return 0, err
	}

	var durationSec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(result.Stdout), "%f", &durationSec); err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", strings.TrimSpace(result.Stdout), err)
	}
	if durationSec <= 0 {
		return 0, fmt.Errorf("non-positive duration %.3f", durationSec)
	}

	return durationSec, nil
}

// fileSize returns the size of path, or 0 when it does not exist.
func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func toolName(binary string) string {
	base := binary
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	return base
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
