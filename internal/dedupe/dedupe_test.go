package dedupe

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tendant/simple-video-pipeline/internal/database"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

func TestKey(t *testing.T) {
	tests := []struct {
		ev   pipeline.UploadEvent
		want string
	}{
		{pipeline.UploadEvent{Bucket: "media", ObjectPath: "clip.mp4"}, "media/clip.mp4"},
		{pipeline.UploadEvent{Bucket: "media", ObjectPath: "clip.mp4", Generation: "17"}, "media/clip.mp4#17"},
	}
	for _, tt := range tests {
		if got := Key(tt.ev); got != tt.want {
			t.Errorf("Key(%+v) = %q, want %q", tt.ev, got, tt.want)
		}
	}
}

func TestTrackerCountsRedeliveries(t *testing.T) {
	ctx := context.Background()
	db, dialect, err := database.Open(ctx, database.DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	ledgers := map[string]Ledger{
		"sql":    NewTracker(db, dialect),
		"memory": NewMemoryTracker(),
	}

	for name, ledger := range ledgers {
		t.Run(name, func(t *testing.T) {
			ev := pipeline.UploadEvent{Bucket: "media", ObjectPath: "uploads/clip.mp4", ContentType: "video/mp4"}
			for want := 1; want <= 3; want++ {
				got, err := ledger.Record(ctx, ev)
				if err != nil {
					t.Fatalf("Record: %v", err)
				}
				if got != want {
					t.Errorf("seen count = %d, want %d", got, want)
				}
			}

			other := ev
			other.Generation = "2"
			if got, _ := ledger.Record(ctx, other); got != 1 {
				t.Errorf("new generation seen count = %d, want 1", got)
			}
		})
	}

	tracker := ledgers["sql"].(*Tracker)
	count, err := tracker.GetSeenCount(ctx, pipeline.UploadEvent{Bucket: "media", ObjectPath: "uploads/clip.mp4"})
	if err != nil || count != 3 {
		t.Errorf("GetSeenCount = %d, %v", count, err)
	}
	count, err = tracker.GetSeenCount(ctx, pipeline.UploadEvent{Bucket: "media", ObjectPath: "never.mp4"})
	if err != nil || count != 0 {
		t.Errorf("GetSeenCount unknown = %d, %v", count, err)
	}
}
