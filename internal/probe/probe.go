package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Runner executes an external tool and returns its stdout.
// ffmpeg.ExecRunner and ffmpeg.Pool both satisfy it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Result is the subset of ffprobe output the pipeline relies on
type Result struct {
	DurationSeconds int    // floored to whole seconds
	FrameRate       string // e.g. "30/1"
	SizeBytes       int64
}

// Error reports a failed probe. Op is one of "stat", "exec" or "parse".
type Error struct {
	Path string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("probe %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var errNoDuration = errors.New("no duration in ffprobe output")

// Prober inspects local media files with ffprobe
type Prober struct {
	runner Runner
	binary string
}

// New creates a Prober. binary defaults to "ffprobe".
func New(runner Runner, binary string) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{runner: runner, binary: binary}
}

// Probe runs a single ffprobe JSON call against path
func (p *Prober) Probe(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Path: path, Op: "stat", Err: err}
	}

	out, err := p.runner.Run(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	if err != nil {
		return nil, &Error{Path: path, Op: "exec", Err: err}
	}

	res, err := ParseJSON(out)
	if err != nil {
		return nil, &Error{Path: path, Op: "parse", Err: err}
	}
	if res.SizeBytes == 0 {
		res.SizeBytes = info.Size()
	}
	return res, nil
}

// ParseJSON converts raw ffprobe JSON output into a Result.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*Result, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	if raw.Format.Duration == "" {
		return nil, errNoDuration
	}
	dur, err := strconv.ParseFloat(raw.Format.Duration, 64)
	if err != nil || dur < 0 {
		return nil, fmt.Errorf("invalid duration %q", raw.Format.Duration)
	}

	res := &Result{
		DurationSeconds: int(math.Floor(dur)),
		FrameRate:       selectFrameRate(raw.Streams),
	}
	if raw.Format.Size != "" {
		res.SizeBytes, _ = strconv.ParseInt(raw.Format.Size, 10, 64)
	}
	return res, nil
}

// selectFrameRate returns the first stream rate that is not degenerate.
// ffprobe reports "0/0" for audio and data streams.
func selectFrameRate(streams []ffprobeStream) string {
	for _, s := range streams {
		if validRate(s.RFrameRate) {
			return s.RFrameRate
		}
	}
	return ""
}

func validRate(rate string) bool {
	num, den, ok := strings.Cut(rate, "/")
	if !ok {
		return false
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n == 0 {
		return false
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return false
	}
	return true
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
}

type ffprobeStream struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codec_type"`
	RFrameRate string `json:"r_frame_rate"`
}
