package simfs

import (
	"testing"
)

func smallGeometry() Geometry {
	return Geometry{
		SectorSize:  32,
		SectorCount: 256,
		NameLength:  8,
		DirCapacity: 4,
	}
}

func TestSubtreeCost_directLevel(t *testing.T) {
	g := smallGeometry()

	if got := subtreeCost(g, 1, 0); got != 0 {
		t.Fatalf("empty direct node should cost 0, got %d", got)
	}

	if got := subtreeCost(g, 1, 1); got != 1 {
		t.Fatalf("one-sector direct node should cost 1, got %d", got)
	}
}

func TestSubtreeCost_indirectLevel_matchesActualAllocation(t *testing.T) {
	g := smallGeometry()
	bm := NewBitmap(g)

	const n = 5 // spans multiple direct children of a single-indirect node

	want := subtreeCost(g, 2, n)

	before := bm.NumClear()

	ownSector, err := bm.FindAndSet()
	if err != nil {
		t.Fatalf("unexpected error reserving own sector: %v", err)
	}

	node := newPointerNode(g, 2)
	if err := node.allocate(bm, ownSector, n); err != nil {
		t.Fatalf("unexpected allocation error: %v", err)
	}

	used := before - bm.NumClear() - 1 // exclude ownSector, already subtracted by FindAndSet
	if used != want {
		t.Fatalf("subtreeCost (%d) did not match actual sectors consumed (%d)", want, used)
	}
}

func TestDirectNode_allocateFetchWriteBack_roundTrip(t *testing.T) {
	g := smallGeometry()
	disk := NewMemoryDisk(g.SectorSize, g.SectorCount)
	bm := NewBitmap(g)

	ownSector, err := bm.FindAndSet()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	node := newPointerNode(g, 1)
	if err := node.allocate(bm, ownSector, 1); err != nil {
		t.Fatalf("unexpected allocation error: %v", err)
	}

	if err := node.writeBack(disk, ownSector); err != nil {
		t.Fatalf("unexpected write-back error: %v", err)
	}

	reloaded := newPointerNode(g, 1)
	if err := reloaded.fetchFrom(disk, ownSector); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}

	sector, err := reloaded.byteToSector(0)
	if err != nil {
		t.Fatalf("unexpected byteToSector error: %v", err)
	}

	wantSector, err := node.byteToSector(0)
	if err != nil {
		t.Fatalf("unexpected byteToSector error on original: %v", err)
	}

	if sector != wantSector {
		t.Fatalf("data sector did not survive the round trip: got %d want %d", sector, wantSector)
	}
}

func TestIndirectNode_allocateFetchWriteBack_roundTrip(t *testing.T) {
	g := smallGeometry()
	disk := NewMemoryDisk(g.SectorSize, g.SectorCount)
	bm := NewBitmap(g)

	const n = 5

	ownSector, err := bm.FindAndSet()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	node := newPointerNode(g, 2)
	if err := node.allocate(bm, ownSector, n); err != nil {
		t.Fatalf("unexpected allocation error: %v", err)
	}

	if err := node.writeBack(disk, ownSector); err != nil {
		t.Fatalf("unexpected write-back error: %v", err)
	}

	reloaded := newPointerNode(g, 2)
	if err := reloaded.fetchFrom(disk, ownSector); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}

	for offset := uint64(0); offset < n*uint64(g.SectorSize); offset += uint64(g.SectorSize) {
		got, err := reloaded.byteToSector(offset)
		if err != nil {
			t.Fatalf("unexpected byteToSector error at offset %d: %v", offset, err)
		}

		want, err := node.byteToSector(offset)
		if err != nil {
			t.Fatalf("unexpected byteToSector error on original at offset %d: %v", offset, err)
		}

		if got != want {
			t.Fatalf("sector mismatch at offset %d: got %d want %d", offset, got, want)
		}
	}
}

func TestIndirectNode_deallocate_freesEverySector(t *testing.T) {
	g := smallGeometry()
	bm := NewBitmap(g)

	const n = 5

	ownSector, err := bm.FindAndSet()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	node := newPointerNode(g, 2)
	if err := node.allocate(bm, ownSector, n); err != nil {
		t.Fatalf("unexpected allocation error: %v", err)
	}

	before := bm.NumClear()

	node.deallocate(bm)
	bm.Clear(ownSector)

	if bm.NumClear() != g.SectorCount {
		t.Fatalf("deallocate did not free every sector: %d clear of %d, started from %d clear", bm.NumClear(), g.SectorCount, before)
	}
}

func TestIndirectNode_allocate_tooManyChildren(t *testing.T) {
	g := smallGeometry()
	bm := NewBitmap(g)

	ownSector, err := bm.FindAndSet()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	node := newPointerNode(g, 2)

	childCap := g.sectorsPerNode(1)
	tooMany := childCap * uint64(g.I()+1)

	if err := node.allocate(bm, ownSector, tooMany); err == nil {
		t.Fatalf("expected an error when demand exceeds the indirect node's slot count")
	}
}
