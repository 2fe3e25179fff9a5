package scratch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirLifecycle(t *testing.T) {
	base := filepath.Join(t.TempDir(), "scratch")

	a, err := New(base, "abc")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New(base, "abc")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Path() == b.Path() {
		t.Fatal("scratch dirs must be unique per run")
	}
	if !strings.HasPrefix(filepath.Base(a.Path()), "run-abc-") {
		t.Errorf("unexpected dir name %q", a.Path())
	}

	if err := os.WriteFile(a.File("clip.mp4"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := a.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(a.Path()); !os.IsNotExist(err) {
		t.Errorf("dir still exists after Remove: %v", err)
	}
	if err := a.Remove(); err != nil {
		t.Errorf("second Remove: %v", err)
	}

	var nilDir *Dir
	if err := nilDir.Remove(); err != nil {
		t.Errorf("nil Remove: %v", err)
	}
}

func TestRunIDWithPathSeparators(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name  string
		runID string
		want  string
	}{
		{"object path", "preview-media/uploads/clip.mp4#1", "run-preview-media_uploads_clip.mp4_1-"},
		{"backslash", `thumbnail-media\clip.mp4`, "run-thumbnail-media_clip.mp4-"},
		{"dot segments", "../../etc", "run-.._.._etc-"},
		{"long", strings.Repeat("a/", 100), "run-" + strings.Repeat("a_", 32) + "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(base, tt.runID)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer d.Remove()

			if filepath.Dir(d.Path()) != base {
				t.Errorf("dir %q escaped base %q", d.Path(), base)
			}
			if !strings.HasPrefix(filepath.Base(d.Path()), tt.want) {
				t.Errorf("dir name %q, want prefix %q", filepath.Base(d.Path()), tt.want)
			}
		})
	}
}
