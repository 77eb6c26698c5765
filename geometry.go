package simfs

// Geometry bundles the fixed constants a mounted volume is built on (§3):
// sector width, total sector count, name length limit, and directory
// capacity. H and I are derived exactly as §3/§4.2 specify.
//
// Sector 0 (bitmap header) and sector 1 (root directory header) are always
// reserved, regardless of geometry.
type Geometry struct {
	SectorSize  uint32 // S
	SectorCount uint32 // N
	NameLength  int    // L
	DirCapacity int    // D
}

const (
	bitmapHeaderSector = 0
	rootHeaderSector   = 1

	// maxPathDepth bounds path resolution (§4.6, P in §8's worked example);
	// component length is bounded by Geometry.NameLength.
	maxPathDepth  = 25
	maxLevel      = 4
	pointerInt32s = 4 // bytes per wire-format int32
)

// H: top-level pointer slots in a file header sector — §3.
func (g Geometry) H() int {
	return int(g.SectorSize)/pointerInt32s - 2
}

// I: child slots in an indirect pointer sector — §4.2.
func (g Geometry) I() int {
	return int(g.SectorSize)/pointerInt32s - 1
}

// directoryEntrySize is the on-disk size of one directory record:
// inUse(4) + type(4) + sector(4) + name(L+1), per §6.
func (g Geometry) directoryEntrySize() int {
	return 3*pointerInt32s + g.NameLength + 1
}

// bitmapFileSize is ⌈N/8⌉ bytes (§4.6 Format).
func (g Geometry) bitmapFileSize() uint32 {
	return (g.SectorCount + 7) / 8
}

// directoryFileSize is D * sizeof(entry) (§4.6 Format).
func (g Geometry) directoryFileSize() uint32 {
	return uint32(g.DirCapacity * g.directoryEntrySize())
}

// capacity returns the maximum number of bytes addressable by a pointer-tree
// subtree rooted at the given level (§4.2): capacity(1) = S,
// capacity(k) = I * capacity(k-1).
func (g Geometry) capacity(level int) uint64 {
	cap := uint64(g.SectorSize)
	for l := 1; l < level; l++ {
		cap *= uint64(g.I())
	}

	return cap
}

// sectorsPerNode is capacity(level) expressed in whole data sectors, i.e.
// the number of data sectors one node at this level can address.
func (g Geometry) sectorsPerNode(level int) uint64 {
	return g.capacity(level) / uint64(g.SectorSize)
}
