package naming

import (
	"testing"

	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

func TestShouldProcess(t *testing.T) {
	tests := []struct {
		name        string
		objectPath  string
		contentType string
		job         string
		process     bool
		reason      string
	}{
		{"image upload", "uploads/photo.jpg", "image/jpeg", pipeline.JobThumbnail, false, ReasonNotVideo},
		{"empty content type", "uploads/clip.mp4", "", pipeline.JobPreview, false, ReasonNotVideo},
		{"preview output", "previews/clip/preview_clip.mp4", "video/mp4", pipeline.JobPreview, false, ReasonDerivative},
		{"sprite output", "spritesheets/clip/sprite_clip.webp", "video/webp", pipeline.JobSpriteSheet, false, ReasonDerivative},
		{"derivative beats format rule", "preview_clip.webm", "video/png", pipeline.JobThumbnail, false, ReasonDerivative},
		{"thumbnail already png", "uploads/clip.png", "video/png", pipeline.JobThumbnail, false, ReasonAlreadyCorrect},
		{"format rule only for thumbnails", "uploads/clip.png", "video/png", pipeline.JobPreview, true, ""},
		{"mp4 thumbnail", "uploads/clip.mp4", "video/mp4", pipeline.JobThumbnail, true, ""},
		{"mp4 sprite", "clip.mp4", "video/mp4", pipeline.JobSpriteSheet, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldProcess(tt.objectPath, tt.contentType, tt.job)
			if got.Process != tt.process {
				t.Errorf("Process = %v, want %v", got.Process, tt.process)
			}
			if got.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.reason)
			}
		})
	}
}

func TestIdentify(t *testing.T) {
	tests := []struct {
		path string
		base string
		ext  string
	}{
		{"clip.mp4", "clip", "mp4"},
		{"uploads/2024/holiday trip.mov", "holiday trip", "mov"},
		{"noext", "noext", ""},
		{"a.b.mkv", "a.b", "mkv"},
	}

	for _, tt := range tests {
		got := Identify(tt.path)
		if got.BaseName != tt.base || got.Ext != tt.ext {
			t.Errorf("Identify(%q) = %+v, want base=%q ext=%q", tt.path, got, tt.base, tt.ext)
		}
	}
}

func TestPaths(t *testing.T) {
	id := Identify("uploads/clip.mp4")

	if got := id.VideoID(); got != "clip" {
		t.Errorf("VideoID = %q", got)
	}

	wantThumbs := []string{
		"thumbnails/clip/thumb_clip_1.png",
		"thumbnails/clip/thumb_clip_2.png",
		"thumbnails/clip/thumb_clip_3.png",
	}
	for i, want := range wantThumbs {
		if got := id.ThumbnailPath(i + 1); got != want {
			t.Errorf("ThumbnailPath(%d) = %q, want %q", i+1, got, want)
		}
	}

	if got := id.PreviewPath(); got != "previews/clip/preview_clip.mp4" {
		t.Errorf("PreviewPath = %q", got)
	}
	if got := id.SpriteSheetPath(); got != "spritesheets/clip/sprite_clip.webp" {
		t.Errorf("SpriteSheetPath = %q", got)
	}
}

func TestPathsAreStable(t *testing.T) {
	a := Identify("uploads/clip.mp4")
	b := Identify("other/folder/clip.mp4")

	if a.PreviewPath() != b.PreviewPath() || a.SpriteSheetPath() != b.SpriteSheetPath() || a.ThumbnailPath(2) != b.ThumbnailPath(2) {
		t.Error("derived paths must depend only on the file name")
	}
}

func TestSpacesReplacedInFileNames(t *testing.T) {
	id := Identify("my clip.mp4")

	if got := id.PreviewPath(); got != "previews/my clip/preview_my_clip.mp4" {
		t.Errorf("PreviewPath = %q", got)
	}
	if got := id.ThumbnailFile(1); got != "thumb_my_clip_1.png" {
		t.Errorf("ThumbnailFile = %q", got)
	}
	if got := id.SourceFile(); got != "my_clip.mp4" {
		t.Errorf("SourceFile = %q", got)
	}
}
