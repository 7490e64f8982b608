package testsupport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultLoudnormJSON mimics the block loudnorm prints with print_format=json.
const DefaultLoudnormJSON = `[Parsed_loudnorm_0 @ 0x5581]
{
	"input_i" : "-23.54",
	"input_tp" : "-7.12",
	"input_lra" : "5.60",
	"input_thresh" : "-34.11",
	"output_i" : "-16.02",
	"output_tp" : "-1.50",
	"output_lra" : "4.90",
	"output_thresh" : "-26.50",
	"normalization_type" : "dynamic",
	"target_offset" : "0.02"
}
`

// Call is one recorded tool invocation.
type Call struct {
	Name string
	Args []string
}

// Contains reports whether any argument contains substr.
func (c Call) Contains(substr string) bool {
	for _, arg := range c.Args {
		if strings.Contains(arg, substr) {
			return true
		}
	}
	return false
}

// Output is the last argument, which is the output path for every ffmpeg
// invocation the pipeline makes.
func (c Call) Output() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}

// IsProbe reports whether the call went to ffprobe.
func (c Call) IsProbe() bool {
	return strings.Contains(filepath.Base(c.Name), "ffprobe")
}

// FakeRunner stands in for ffmpeg/ffprobe. Successful ffmpeg calls write a
// file of OutputSize bytes to the output path; ffprobe calls print Duration.
type FakeRunner struct {
	OutputSize   int64
	Duration     string
	LoudnormJSON string
	// FailWhen makes matching calls exit non-zero without writing output.
	FailWhen func(Call) bool
	// SizeFor overrides OutputSize per call when it returns a value >= 0.
	SizeFor func(Call) int64

	mu    sync.Mutex
	calls []Call
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		OutputSize:   64 * 1024,
		Duration:     "12.500000",
		LoudnormJSON: DefaultLoudnormJSON,
	}
}

func (f *FakeRunner) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	call := Call{Name: name, Args: append([]string(nil), args...)}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.FailWhen != nil && f.FailWhen(call) {
		fmt.Fprintln(stderr, "Error while processing: simulated failure")
		return errors.New("exit status 1")
	}

	if call.IsProbe() {
		fmt.Fprintln(stdout, f.Duration)
		return nil
	}

	if call.Contains("print_format=json") {
		fmt.Fprint(stderr, f.LoudnormJSON)
		return nil
	}

	out := call.Output()
	if out == "" || out == "-" {
		return nil
	}
	size := f.OutputSize
	if f.SizeFor != nil {
		if s := f.SizeFor(call); s >= 0 {
			size = s
		}
	}
	if size == 0 {
		return nil
	}
	return writeSized(out, size)
}

// Calls returns a copy of every recorded invocation.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Count returns how many recorded calls contain substr in any argument.
func (f *FakeRunner) Count(substr string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Contains(substr) {
			n++
		}
	}
	return n
}
