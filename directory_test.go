package simfs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectory_addFindRemove(t *testing.T) {
	g := smallGeometry()
	dir := NewDirectory(g)

	require.NoError(t, dir.Add("alpha", 10, EntryFile))
	require.NoError(t, dir.Add("beta", 11, EntryDir))

	sector, found := dir.Find("alpha")
	require.True(t, found)
	require.EqualValues(t, 10, sector)

	isDir, found := dir.IsDirectory("beta")
	require.True(t, found)
	require.True(t, isDir)

	require.NoError(t, dir.Remove("alpha"))

	_, found = dir.Find("alpha")
	require.False(t, found)
}

func TestDirectory_add_duplicateName(t *testing.T) {
	g := smallGeometry()
	dir := NewDirectory(g)

	require.NoError(t, dir.Add("alpha", 10, EntryFile))

	err := dir.Add("alpha", 20, EntryFile)
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestDirectory_add_full(t *testing.T) {
	g := smallGeometry() // DirCapacity 4
	dir := NewDirectory(g)

	for i := 0; i < g.DirCapacity; i++ {
		name := string(rune('a' + i))
		require.NoError(t, dir.Add(name, uint32(10+i), EntryFile))
	}

	err := dir.Add("overflow", 99, EntryFile)
	require.ErrorIs(t, err, ErrDirectoryFull)
}

func TestDirectory_remove_notFound(t *testing.T) {
	g := smallGeometry()
	dir := NewDirectory(g)

	require.ErrorIs(t, dir.Remove("ghost"), ErrNotFound)
}

func newTestDirectoryFile(t *testing.T) (*Directory, *OpenFile, *Bitmap) {
	t.Helper()

	g := smallGeometry()
	disk := NewMemoryDisk(g.SectorSize, g.SectorCount)
	bm := NewBitmap(g)

	header := NewFileHeader(g)
	require.NoError(t, header.Allocate(bm, uint64(g.directoryFileSize())))

	file := NewOpenFile(disk, header)

	dir := NewDirectory(g)
	require.NoError(t, dir.WriteBack(file))

	return dir, file, bm
}

func TestDirectory_fetchWriteBack_roundTrip(t *testing.T) {
	dir, file, _ := newTestDirectoryFile(t)

	require.NoError(t, dir.Add("alpha", 10, EntryFile))
	require.NoError(t, dir.Add("beta", 11, EntryDir))
	require.NoError(t, dir.WriteBack(file))

	g := smallGeometry()
	reloaded := NewDirectory(g)
	require.NoError(t, reloaded.FetchFrom(file))

	sector, found := reloaded.Find("alpha")
	require.True(t, found)
	require.EqualValues(t, 10, sector)

	isDir, found := reloaded.IsDirectory("beta")
	require.True(t, found)
	require.True(t, isDir)
}

func TestDirectory_list(t *testing.T) {
	g := smallGeometry()
	dir := NewDirectory(g)

	require.NoError(t, dir.Add("alpha", 10, EntryFile))
	require.NoError(t, dir.Add("beta", 11, EntryDir))

	var buf bytes.Buffer
	dir.List(&buf)

	out := buf.String()
	require.Contains(t, out, "alpha F")
	require.Contains(t, out, "beta D")
}

func TestDirectory_removeRecursive_freesDescendants(t *testing.T) {
	g := smallGeometry()
	disk := NewMemoryDisk(g.SectorSize, g.SectorCount)
	bm := NewBitmap(g)

	before := bm.NumClear()

	// A child file.
	childHeader := NewFileHeader(g)
	require.NoError(t, childHeader.Allocate(bm, 40))

	childSector, err := bm.FindAndSet()
	require.NoError(t, err)
	require.NoError(t, childHeader.WriteBack(disk, childSector))

	// A subdirectory containing the child file.
	subdirHeader := NewFileHeader(g)
	require.NoError(t, subdirHeader.Allocate(bm, uint64(g.directoryFileSize())))

	subdirSector, err := bm.FindAndSet()
	require.NoError(t, err)

	subdirFile := NewOpenFile(disk, subdirHeader)
	subdir := NewDirectory(g)
	require.NoError(t, subdir.Add("child", childSector, EntryFile))
	require.NoError(t, subdir.WriteBack(subdirFile))
	require.NoError(t, subdirHeader.WriteBack(disk, subdirSector))

	// The root holding the subdirectory.
	root := NewDirectory(g)
	require.NoError(t, root.Add("sub", subdirSector, EntryDir))

	require.NoError(t, root.RemoveRecursive(bm, disk))

	_, found := root.Find("sub")
	require.False(t, found)

	require.Equal(t, before, bm.NumClear(), "recursive removal should return every descendant's sectors to the bitmap")
}
