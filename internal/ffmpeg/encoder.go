package ffmpeg

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Sprite sheet geometry
const (
	SpriteIntervalSeconds = 5
	SpriteColumns         = 10
	SpriteCellHeight      = 120
)

// Thumbnail bounds
const (
	ThumbnailMaxWidth  = 1280
	ThumbnailMaxHeight = 720
)

// Preview window
const (
	PreviewOffset   = 20 * time.Second
	PreviewDuration = 10 * time.Second
)

// Encoder builds and runs ffmpeg/ffprobe commands for each derivative kind
type Encoder struct {
	runner      Runner
	ffmpegPath  string
	ffprobePath string
}

// NewEncoder creates an Encoder. Empty paths default to binaries on $PATH.
func NewEncoder(runner Runner, ffmpegPath, ffprobePath string) *Encoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Encoder{runner: runner, ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// ExtractThumbnails captures len(names) frames at evenly spaced marks and
// writes them into dir. Frames are scaled to fit within maxW x maxH.
// Returns the written paths in order.
func (e *Encoder) ExtractThumbnails(ctx context.Context, src, dir string, names []string, maxW, maxH int) ([]string, error) {
	duration, err := e.duration(ctx, src)
	if err != nil {
		return nil, err
	}

	marks := Timemarks(duration, len(names))
	paths := make([]string, 0, len(names))
	for i, name := range names {
		dst := filepath.Join(dir, name)
		if _, err := e.runner.Run(ctx, e.ffmpegPath, ThumbnailArgs(src, dst, marks[i], maxW, maxH)...); err != nil {
			return nil, err
		}
		paths = append(paths, dst)
	}
	return paths, nil
}

// ExtractPreviewClip copies a window of the source stream without re-encoding.
// Sources shorter than offset produce whatever the encoder emits.
func (e *Encoder) ExtractPreviewClip(ctx context.Context, src, dst string, offset, length time.Duration) error {
	_, err := e.runner.Run(ctx, e.ffmpegPath, PreviewArgs(src, dst, offset, length)...)
	return err
}

// SpriteLayout describes a generated sprite sheet
type SpriteLayout struct {
	Rows       int
	Columns    int
	CellHeight int
}

// SpriteSheet tiles one frame every SpriteIntervalSeconds into a single image
func (e *Encoder) SpriteSheet(ctx context.Context, src, dst string, durationSeconds int) (SpriteLayout, error) {
	layout := SpriteLayout{
		Rows:       SpriteRows(durationSeconds),
		Columns:    SpriteColumns,
		CellHeight: SpriteCellHeight,
	}
	if _, err := e.runner.Run(ctx, e.ffmpegPath, SpriteArgs(src, dst, layout.Rows)...); err != nil {
		return SpriteLayout{}, err
	}
	return layout, nil
}

// duration asks ffprobe for the container duration in seconds
func (e *Encoder) duration(ctx context.Context, src string) (float64, error) {
	out, err := e.runner.Run(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		src,
	)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return d, nil
}

// SpriteRows returns round(duration / interval / columns), at least 1
func SpriteRows(durationSeconds int) int {
	rows := int(math.Round(float64(durationSeconds) / SpriteIntervalSeconds / SpriteColumns))
	if rows < 1 {
		return 1
	}
	return rows
}

// Timemarks returns count marks spread evenly inside duration, excluding
// both ends: 25%, 50% and 75% for three frames.
func Timemarks(duration float64, count int) []float64 {
	marks := make([]float64, count)
	for i := range marks {
		marks[i] = duration * float64(i+1) / float64(count+1)
	}
	return marks
}

// ThumbnailArgs captures a single scaled frame at the given second
func ThumbnailArgs(src, dst string, at float64, maxW, maxH int) []string {
	return []string{
		"-y",
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", src,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=w=%d:h=%d:force_original_aspect_ratio=decrease", maxW, maxH),
		dst,
	}
}

// PreviewArgs seeks to offset and stream-copies length seconds
func PreviewArgs(src, dst string, offset, length time.Duration) []string {
	return []string{
		"-y",
		"-ss", seconds(offset),
		"-i", src,
		"-t", seconds(length),
		"-c", "copy",
		dst,
	}
}

// SpriteArgs samples a frame every interval, scales it to the cell height and
// tiles everything into one image
func SpriteArgs(src, dst string, rows int) []string {
	filter := fmt.Sprintf("fps=1/%d,scale=-1:%d,tile=%dx%d",
		SpriteIntervalSeconds, SpriteCellHeight, SpriteColumns, rows)
	return []string{
		"-y",
		"-i", src,
		"-frames:v", "1",
		"-q:v", "1",
		"-filter:v", filter,
		dst,
	}
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
