package simfs

import (
	"github.com/go-restruct/restruct"
)

// FileHeader is the one-sector root of a file's pointer tree (C3, §4.3): it
// records the file's byte length and the top-level pointer array, all top
// pointers sharing one level derived from that length.
type FileHeader struct {
	geometry Geometry

	numBytes uint64
	level    int

	pointerSectors []uint32
	pointers       []pointerNode
}

// NewFileHeader returns an empty, not-yet-allocated header.
func NewFileHeader(g Geometry) *FileHeader {
	return &FileHeader{geometry: g}
}

// selectLevel returns the smallest level in {1..4} such that
// capacity(level) * H >= size, or an error if none fits (§4.3 step 2).
func selectLevel(g Geometry, size uint64) (int, error) {
	h := uint64(g.H())

	for level := 1; level <= maxLevel; level++ {
		if g.capacity(level)*h >= size {
			return level, nil
		}
	}

	return 0, ErrTooLarge
}

// Allocate reserves the header's pointer-tree sectors for a file of the
// given fixed size (§4.3). The exact total sector cost is computed before
// any bitmap mutation, so a NoSpace failure leaves the bitmap untouched —
// see DESIGN.md's resolution of the §4.3/§7 rollback Open Question.
func (h *FileHeader) Allocate(bm *Bitmap, size uint64) error {
	level, err := selectLevel(h.geometry, size)
	if err != nil {
		return err
	}

	totalDataSectors := ceilDiv(size, uint64(h.geometry.SectorSize))
	sectorsPerTop := h.geometry.sectorsPerNode(level)

	numPointer := ceilDiv(totalDataSectors, sectorsPerTop)
	if int(numPointer) > h.geometry.H() {
		return ErrTooLarge
	}

	topNeeds := make([]uint64, numPointer)
	remaining := totalDataSectors

	var required uint64
	for i := uint64(0); i < numPointer; i++ {
		need := remaining
		if need > sectorsPerTop {
			need = sectorsPerTop
		}
		remaining -= need

		topNeeds[i] = need
		required += 1 + subtreeCost(h.geometry, level, need)
	}

	if uint64(bm.NumClear()) < required {
		return ErrNoSpace
	}

	pointerSectors := make([]uint32, 0, numPointer)
	pointers := make([]pointerNode, 0, numPointer)

	for _, need := range topNeeds {
		sector, err := bm.FindAndSet()
		if err != nil {
			h.rollback(bm, pointerSectors, pointers)
			return err
		}

		node := newPointerNode(h.geometry, level)
		if err := node.allocate(bm, sector, need); err != nil {
			bm.Clear(sector)
			h.rollback(bm, pointerSectors, pointers)
			return err
		}

		pointerSectors = append(pointerSectors, sector)
		pointers = append(pointers, node)
	}

	h.numBytes = size
	h.level = level
	h.pointerSectors = pointerSectors
	h.pointers = pointers

	return nil
}

// rollback is the best-effort unwind path named in §7; kept as a defensive
// fallback behind the upfront cost precheck in Allocate (see DESIGN.md).
func (h *FileHeader) rollback(bm *Bitmap, pointerSectors []uint32, pointers []pointerNode) {
	for i, p := range pointers {
		p.deallocate(bm)
		bm.Clear(pointerSectors[i])
	}
}

// Deallocate recursively frees every sector owned by the pointer tree. It
// does not clear the header's own sector — that is the caller's duty
// (§4.3; File System's Remove).
func (h *FileHeader) Deallocate(bm *Bitmap) {
	for i, p := range h.pointers {
		p.deallocate(bm)
		bm.Clear(h.pointerSectors[i])
	}
}

// pack serializes the fixed one-sector layout: numBytes, numPointer,
// p0...p_{H-1} (§3, §6), all 32-bit little-endian, trailing slots -1.
func (h *FileHeader) pack() ([]byte, error) {
	slots := make([]int32, 2+h.geometry.H())
	for i := range slots {
		slots[i] = unusedSlot
	}

	slots[0] = int32(h.numBytes)
	slots[1] = int32(len(h.pointerSectors))

	for i, sector := range h.pointerSectors {
		slots[2+i] = int32(sector)
	}

	return restruct.Pack(defaultEncoding, slots)
}

// FetchFrom reads the header sector and rehydrates the full pointer tree.
// Level is re-derived from numBytes by the same rule Allocate uses — the
// two paths must agree (§4.3, §8 "Level derivation determinism").
func (h *FileHeader) FetchFrom(disk Disk, sector uint32) error {
	raw := make([]byte, disk.SectorSize())
	if err := disk.ReadSector(sector, raw); err != nil {
		return wrap(err)
	}

	slots := make([]int32, 2+h.geometry.H())
	if err := restruct.Unpack(raw, defaultEncoding, &slots); err != nil {
		return wrap(err)
	}

	numBytes := uint64(slots[0])
	numPointer := int(slots[1])

	level, err := selectLevel(h.geometry, numBytes)
	if err != nil {
		return err
	}

	pointerSectors := make([]uint32, numPointer)
	pointers := make([]pointerNode, numPointer)

	for i := 0; i < numPointer; i++ {
		pointerSectors[i] = uint32(slots[2+i])

		node := newPointerNode(h.geometry, level)
		if err := node.fetchFrom(disk, pointerSectors[i]); err != nil {
			return err
		}

		pointers[i] = node
	}

	h.numBytes = numBytes
	h.level = level
	h.pointerSectors = pointerSectors
	h.pointers = pointers

	return nil
}

// WriteBack persists the full pointer tree, then the header's own sector.
func (h *FileHeader) WriteBack(disk Disk, sector uint32) error {
	for i, p := range h.pointers {
		if err := p.writeBack(disk, h.pointerSectors[i]); err != nil {
			return err
		}
	}

	raw, err := h.pack()
	if err != nil {
		return wrap(err)
	}

	return wrap(disk.WriteSector(sector, raw))
}

// ByteToSector translates a byte offset to the physical data sector that
// holds it (§4.3).
func (h *FileHeader) ByteToSector(offset uint64) (uint32, error) {
	levelCap := h.geometry.capacity(h.level)

	top := offset / levelCap
	rest := offset % levelCap

	if int(top) >= len(h.pointers) {
		return 0, wrapf(nil, "byte offset %d out of range for file of length %d", offset, h.numBytes)
	}

	return h.pointers[top].byteToSector(rest)
}

// FileLength returns numBytes.
func (h *FileHeader) FileLength() uint64 {
	return h.numBytes
}
