package simfs

import (
	"github.com/go-restruct/restruct"
)

// pointerNode is the shared contract of the four pointer-tree variants
// (§4.2, §9): "a tagged variant with four cases... Recursive containment is
// naturally expressed by a variant whose non-leaf arms hold an owned
// fixed-size array of the same variant." Go has no zero-cost sum type, so
// this falls back to the index+level pair §9 names as the alternative:
// directNode and indirectNode (the latter parameterized by level).
type pointerNode interface {
	// allocate reserves whatever sectors this subtree needs beyond its own
	// sector (already reserved by the caller as ownSector) to address n
	// data sectors.
	allocate(bm *Bitmap, ownSector uint32, n uint64) error

	// deallocate clears every sector this subtree owns below its own sector,
	// recursively. The node's own sector is left for the caller to clear.
	deallocate(bm *Bitmap)

	// fetchFrom reads this node's own sector and, for indirect variants,
	// recursively fetches every child.
	fetchFrom(disk Disk, ownSector uint32) error

	// writeBack serializes this node (and, for indirect variants, every
	// child first) to disk.
	writeBack(disk Disk, ownSector uint32) error

	// byteToSector translates a byte offset within this subtree's
	// addressable range to the physical data sector holding it.
	byteToSector(offset uint64) (uint32, error)
}

// newPointerNode constructs the empty (not-yet-allocated/fetched) node for
// the given level.
func newPointerNode(g Geometry, level int) pointerNode {
	if level == 1 {
		return &directNode{geometry: g}
	}

	return &indirectNode{geometry: g, level: level}
}

// subtreeCost returns the number of sectors allocate() will reserve for a
// node of this level addressing n data sectors, NOT counting the node's own
// sector (that is reserved by the caller before allocate is invoked). Used
// by the File Header to precompute the exact total cost of a tree before
// mutating the bitmap (§4.3, §7 "recommended" rollback-avoidance strategy).
func subtreeCost(g Geometry, level int, n uint64) uint64 {
	if level == 1 {
		if n == 0 {
			return 0
		}

		return 1 // the one data sector
	}

	childCap := g.sectorsPerNode(level - 1)
	numChildren := ceilDiv(n, childCap)

	var total uint64
	remaining := n

	for i := uint64(0); i < numChildren; i++ {
		childN := remaining
		if childN > childCap {
			childN = childCap
		}
		remaining -= childN

		// +1 for the child's own sector, reserved by this node.
		total += 1 + subtreeCost(g, level-1, childN)
	}

	return total
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}

	return (a + b - 1) / b
}

// --- directNode ------------------------------------------------------------

// directNode addresses up to one sector of data (§4.2). Its own sector body
// is "data_sector, rest = -1" (§6) — the Direct variant is itself an
// indirection record, not the data sector in place.
type directNode struct {
	geometry   Geometry
	dataSector uint32
	hasData    bool
}

func (n *directNode) allocate(bm *Bitmap, ownSector uint32, need uint64) error {
	if need == 0 {
		return nil
	}

	if need != 1 {
		return wrapf(nil, "direct node asked to address %d sectors, can only address 1", need)
	}

	sector, err := bm.FindAndSet()
	if err != nil {
		return err
	}

	n.dataSector = sector
	n.hasData = true

	return nil
}

func (n *directNode) deallocate(bm *Bitmap) {
	if n.hasData {
		bm.Clear(n.dataSector)
	}
}

func (n *directNode) fetchFrom(disk Disk, ownSector uint32) error {
	slots, err := readInt32Sector(disk, ownSector)
	if err != nil {
		return err
	}

	if slots[0] >= 0 {
		n.dataSector = uint32(slots[0])
		n.hasData = true
	}

	return nil
}

func (n *directNode) writeBack(disk Disk, ownSector uint32) error {
	slots := make([]int32, int(n.geometry.SectorSize)/pointerInt32s)
	for i := range slots {
		slots[i] = unusedSlot
	}

	if n.hasData {
		slots[0] = int32(n.dataSector)
	}

	return writeInt32Sector(disk, ownSector, slots)
}

func (n *directNode) byteToSector(offset uint64) (uint32, error) {
	if !n.hasData {
		return 0, wrapf(nil, "direct node has no data sector")
	}

	return n.dataSector, nil
}

// --- indirectNode ------------------------------------------------------------

// indirectNode is shared by the Single/Double/Triple-Indirect variants
// (§4.2); only `level` and the level of its children differ.
type indirectNode struct {
	geometry Geometry
	level    int // 2, 3 or 4

	childSectors []uint32
	children     []pointerNode
}

func (n *indirectNode) allocate(bm *Bitmap, ownSector uint32, need uint64) error {
	if need == 0 {
		n.childSectors = nil
		n.children = nil
		return nil
	}

	childCap := n.geometry.sectorsPerNode(n.level - 1)
	numChildren := ceilDiv(need, childCap)

	if int(numChildren) > n.geometry.I() {
		return wrapf(nil, "indirect node needs %d children, only %d slots available", numChildren, n.geometry.I())
	}

	childSectors := make([]uint32, 0, numChildren)
	children := make([]pointerNode, 0, numChildren)

	remaining := need

	for i := uint64(0); i < numChildren; i++ {
		childN := remaining
		if childN > childCap {
			childN = childCap
		}

		childSector, err := bm.FindAndSet()
		if err != nil {
			n.rollback(bm, childSectors, children)
			return err
		}

		child := newPointerNode(n.geometry, n.level-1)
		if err := child.allocate(bm, childSector, childN); err != nil {
			bm.Clear(childSector)
			n.rollback(bm, childSectors, children)
			return err
		}

		childSectors = append(childSectors, childSector)
		children = append(children, child)
		remaining -= childN
	}

	n.childSectors = childSectors
	n.children = children

	return nil
}

// rollback clears every sector already committed to children built so far,
// the best-effort unwind path named in §4.3/§7 (kept as a defensive
// fallback; the primary defense is the File Header's upfront cost
// precheck — see DESIGN.md).
func (n *indirectNode) rollback(bm *Bitmap, childSectors []uint32, children []pointerNode) {
	for i, child := range children {
		child.deallocate(bm)
		bm.Clear(childSectors[i])
	}
}

func (n *indirectNode) deallocate(bm *Bitmap) {
	for i, child := range n.children {
		child.deallocate(bm)
		bm.Clear(n.childSectors[i])
	}
}

func (n *indirectNode) fetchFrom(disk Disk, ownSector uint32) error {
	slots, err := readInt32Sector(disk, ownSector)
	if err != nil {
		return err
	}

	count := int(slots[0])
	if count < 0 || count > n.geometry.I() {
		return wrapf(nil, "indirect node has invalid count %d", count)
	}

	childSectors := make([]uint32, count)
	children := make([]pointerNode, count)

	for i := 0; i < count; i++ {
		childSectors[i] = uint32(slots[1+i])

		child := newPointerNode(n.geometry, n.level-1)
		if err := child.fetchFrom(disk, childSectors[i]); err != nil {
			return err
		}

		children[i] = child
	}

	n.childSectors = childSectors
	n.children = children

	return nil
}

func (n *indirectNode) writeBack(disk Disk, ownSector uint32) error {
	// Indirect variants recurse to children first (§4.2).
	for i, child := range n.children {
		if err := child.writeBack(disk, n.childSectors[i]); err != nil {
			return err
		}
	}

	slots := make([]int32, int(n.geometry.SectorSize)/pointerInt32s)
	for i := range slots {
		slots[i] = unusedSlot
	}

	slots[0] = int32(len(n.children))
	for i, sector := range n.childSectors {
		slots[1+i] = int32(sector)
	}

	return writeInt32Sector(disk, ownSector, slots)
}

func (n *indirectNode) byteToSector(offset uint64) (uint32, error) {
	childCap := n.geometry.capacity(n.level - 1)

	childIndex := offset / childCap
	rest := offset % childCap

	if int(childIndex) >= len(n.children) {
		return 0, wrapf(nil, "byte offset %d out of range for indirect node with %d children", offset, len(n.children))
	}

	return n.children[childIndex].byteToSector(rest)
}

// --- shared sector (de)serialization ----------------------------------------

func readInt32Sector(disk Disk, sector uint32) ([]int32, error) {
	raw := make([]byte, disk.SectorSize())
	if err := disk.ReadSector(sector, raw); err != nil {
		return nil, wrap(err)
	}

	slots := make([]int32, int(disk.SectorSize())/pointerInt32s)
	if err := restruct.Unpack(raw, defaultEncoding, &slots); err != nil {
		return nil, wrap(err)
	}

	return slots, nil
}

func writeInt32Sector(disk Disk, sector uint32, slots []int32) error {
	raw, err := restruct.Pack(defaultEncoding, slots)
	if err != nil {
		return wrap(err)
	}

	return wrap(disk.WriteSector(sector, raw))
}
