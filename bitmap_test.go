package simfs

import (
	"testing"
)

func testGeometry() Geometry {
	return Geometry{
		SectorSize:  64,
		SectorCount: 64,
		NameLength:  12,
		DirCapacity: 8,
	}
}

func TestBitmap_MarkClearTest(t *testing.T) {
	g := testGeometry()
	bm := NewBitmap(g)

	if bm.Test(5) {
		t.Fatalf("sector 5 should start clear")
	}

	bm.Mark(5)
	if !bm.Test(5) {
		t.Fatalf("sector 5 should be marked used")
	}

	bm.Clear(5)
	if bm.Test(5) {
		t.Fatalf("sector 5 should be clear again")
	}
}

func TestBitmap_NumClear(t *testing.T) {
	g := testGeometry()
	bm := NewBitmap(g)

	if bm.NumClear() != g.SectorCount {
		t.Fatalf("a fresh bitmap should be entirely clear: got %d want %d", bm.NumClear(), g.SectorCount)
	}

	bm.Mark(0)
	bm.Mark(1)

	if bm.NumClear() != g.SectorCount-2 {
		t.Fatalf("NumClear did not account for marked sectors: got %d", bm.NumClear())
	}
}

func TestBitmap_FindAndSet_picksLowestFree(t *testing.T) {
	g := testGeometry()
	bm := NewBitmap(g)

	bm.Mark(0)
	bm.Mark(1)

	got, err := bm.FindAndSet()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != 2 {
		t.Fatalf("expected lowest free sector 2, got %d", got)
	}

	if !bm.Test(2) {
		t.Fatalf("FindAndSet must mark the returned sector used")
	}
}

func TestBitmap_FindAndSet_noSpace(t *testing.T) {
	g := Geometry{SectorSize: 64, SectorCount: 2, NameLength: 8, DirCapacity: 4}
	bm := NewBitmap(g)

	bm.Mark(0)
	bm.Mark(1)

	if _, err := bm.FindAndSet(); err != ErrNoSpace {
		t.Fatalf("expected ErrNoSpace on a full bitmap, got %v", err)
	}
}

func TestBitmap_FetchWriteBack_roundTrip(t *testing.T) {
	g := testGeometry()
	disk := NewMemoryDisk(g.SectorSize, g.SectorCount)

	header := NewFileHeader(g)
	bootstrapBitmap := NewBitmap(g)
	bootstrapBitmap.Mark(0)

	if err := header.Allocate(bootstrapBitmap, uint64(g.bitmapFileSize())); err != nil {
		t.Fatalf("unexpected allocation error: %v", err)
	}

	file := NewOpenFile(disk, header)

	bm := NewBitmap(g)
	bm.Mark(3)
	bm.Mark(40)

	if err := bm.WriteBack(file); err != nil {
		t.Fatalf("unexpected write-back error: %v", err)
	}

	reloaded := NewBitmap(g)
	if err := reloaded.FetchFrom(file); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}

	if !reloaded.Test(3) || !reloaded.Test(40) {
		t.Fatalf("marked sectors did not survive the round trip")
	}

	if reloaded.Test(4) {
		t.Fatalf("unmarked sector 4 came back marked")
	}
}
