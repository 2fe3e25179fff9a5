package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name      string
		json      string
		duration  int
		frameRate string
		size      int64
		wantErr   bool
	}{
		{
			name: "skips degenerate first stream",
			json: `{"format":{"duration":"50.90","size":"1024"},
				"streams":[{"index":0,"codec_type":"audio","r_frame_rate":"0/0"},
				           {"index":1,"codec_type":"video","r_frame_rate":"30/1"}]}`,
			duration:  50,
			frameRate: "30/1",
			size:      1024,
		},
		{
			name:      "ntsc rate",
			json:      `{"format":{"duration":"499.999"},"streams":[{"r_frame_rate":"30000/1001"}]}`,
			duration:  499,
			frameRate: "30000/1001",
		},
		{
			name:     "no usable stream",
			json:     `{"format":{"duration":"3.2"},"streams":[{"r_frame_rate":"0/0"},{"r_frame_rate":""}]}`,
			duration: 3,
		},
		{
			name:    "missing duration",
			json:    `{"format":{},"streams":[]}`,
			wantErr: true,
		},
		{
			name:    "bad duration",
			json:    `{"format":{"duration":"N/A"}}`,
			wantErr: true,
		},
		{
			name:    "malformed",
			json:    `{"format":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSON([]byte(tt.json))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.DurationSeconds != tt.duration {
				t.Errorf("DurationSeconds = %d, want %d", got.DurationSeconds, tt.duration)
			}
			if got.FrameRate != tt.frameRate {
				t.Errorf("FrameRate = %q, want %q", got.FrameRate, tt.frameRate)
			}
			if got.SizeBytes != tt.size {
				t.Errorf("SizeBytes = %d, want %d", got.SizeBytes, tt.size)
			}
		})
	}
}

type fakeRunner struct {
	out  []byte
	err  error
	args []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.args = append([]string{name}, args...)
	return f.out, f.err
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(src, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("uses file size when ffprobe omits it", func(t *testing.T) {
		r := &fakeRunner{out: []byte(`{"format":{"duration":"12.5"},"streams":[{"r_frame_rate":"25/1"}]}`)}
		got, err := New(r, "").Probe(context.Background(), src)
		if err != nil {
			t.Fatalf("Probe: %v", err)
		}
		if got.SizeBytes != 10 || got.DurationSeconds != 12 {
			t.Errorf("got %+v", got)
		}
		if r.args[0] != "ffprobe" || r.args[len(r.args)-1] != src {
			t.Errorf("unexpected invocation %v", r.args)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := New(&fakeRunner{}, "").Probe(context.Background(), filepath.Join(dir, "nope.mp4"))
		var pe *Error
		if !errors.As(err, &pe) || pe.Op != "stat" {
			t.Fatalf("expected stat probe error, got %v", err)
		}
	})

	t.Run("tool failure", func(t *testing.T) {
		_, err := New(&fakeRunner{err: errors.New("exit status 1")}, "").Probe(context.Background(), src)
		var pe *Error
		if !errors.As(err, &pe) || pe.Op != "exec" {
			t.Fatalf("expected exec probe error, got %v", err)
		}
	})

	t.Run("malformed output", func(t *testing.T) {
		_, err := New(&fakeRunner{out: []byte("garbage")}, "").Probe(context.Background(), src)
		var pe *Error
		if !errors.As(err, &pe) || pe.Op != "parse" {
			t.Fatalf("expected parse probe error, got %v", err)
		}
	})
}
