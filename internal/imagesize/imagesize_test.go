package imagesize

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func TestCellWidth(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sheet.png")
	sheet := imaging.New(2130, 240, color.NRGBA{0, 0, 0, 255})
	if err := imaging.Save(sheet, path); err != nil {
		t.Fatal(err)
	}

	w, h, err := Dimensions(path)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 2130 || h != 240 {
		t.Errorf("Dimensions = %dx%d", w, h)
	}

	cell, err := CellWidth(path, 10)
	if err != nil {
		t.Fatalf("CellWidth: %v", err)
	}
	if cell != 213 {
		t.Errorf("CellWidth = %d, want 213", cell)
	}
}

func TestCellWidthErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := CellWidth(filepath.Join(dir, "missing.webp"), 10); err == nil {
		t.Error("expected error for missing file")
	}

	garbage := filepath.Join(dir, "garbage.webp")
	if err := os.WriteFile(garbage, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := CellWidth(garbage, 10); err == nil {
		t.Error("expected error for undecodable file")
	}

	if _, err := CellWidth(garbage, 0); err == nil {
		t.Error("expected error for zero columns")
	}
}
