package simfs

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

// maxOpenFiles bounds the open-file-id table (§3: "Capacity bounded by an
// implementation limit (e.g. 20)").
const maxOpenFiles = 20

// FileSystem is the C6 orchestrator (§4.6): bitmap-file handle,
// root-directory-file handle, and the open-file-id table. It owns the
// bitmap file handle, the root-directory file handle, and every open-file
// entry exclusively (§3 Ownership).
type FileSystem struct {
	geometry Geometry
	disk     Disk

	bitmap       *Bitmap
	bitmapHeader *FileHeader
	bitmapFile   *OpenFile

	rootHeader *FileHeader
	rootFile   *OpenFile

	openFiles map[uint32]*OpenFile
}

// Format lays down a fresh, empty file system on disk: an empty bitmap and
// an empty root directory, both as ordinary files rooted at the reserved
// header sectors 0 and 1 (§4.6 Mount/Format).
func Format(disk Disk, g Geometry) (fs *FileSystem, err error) {
	defer recoverAsError(&err)

	bitmap := NewBitmap(g)
	bitmap.Mark(bitmapHeaderSector)
	bitmap.Mark(rootHeaderSector)

	bitmapHeader := NewFileHeader(g)
	panicIf(bitmapHeader.Allocate(bitmap, uint64(g.bitmapFileSize())))

	rootHeader := NewFileHeader(g)
	panicIf(rootHeader.Allocate(bitmap, uint64(g.directoryFileSize())))

	panicIf(bitmapHeader.WriteBack(disk, bitmapHeaderSector))
	panicIf(rootHeader.WriteBack(disk, rootHeaderSector))

	bitmapFile := NewOpenFile(disk, bitmapHeader)
	rootFile := NewOpenFile(disk, rootHeader)

	panicIf(bitmap.WriteBack(bitmapFile))

	emptyRoot := NewDirectory(g)
	panicIf(emptyRoot.WriteBack(rootFile))

	fs = &FileSystem{
		geometry:     g,
		disk:         disk,
		bitmap:       bitmap,
		bitmapHeader: bitmapHeader,
		bitmapFile:   bitmapFile,
		rootHeader:   rootHeader,
		rootFile:     rootFile,
		openFiles:    make(map[uint32]*OpenFile),
	}

	return fs, nil
}

// Mount opens an existing file system image: sectors 0 and 1 are
// authoritative (§4.6 Mount/Format).
func Mount(disk Disk, g Geometry) (fs *FileSystem, err error) {
	defer recoverAsError(&err)

	bitmapHeader := NewFileHeader(g)
	panicIf(bitmapHeader.FetchFrom(disk, bitmapHeaderSector))

	rootHeader := NewFileHeader(g)
	panicIf(rootHeader.FetchFrom(disk, rootHeaderSector))

	bitmapFile := NewOpenFile(disk, bitmapHeader)
	rootFile := NewOpenFile(disk, rootHeader)

	bitmap := NewBitmap(g)
	panicIf(bitmap.FetchFrom(bitmapFile))

	fs = &FileSystem{
		geometry:     g,
		disk:         disk,
		bitmap:       bitmap,
		bitmapHeader: bitmapHeader,
		bitmapFile:   bitmapFile,
		rootHeader:   rootHeader,
		rootFile:     rootFile,
		openFiles:    make(map[uint32]*OpenFile),
	}

	return fs, nil
}

// parsePath tokenizes an absolute path on "/", rejecting empty intermediate
// components, and bounding depth/leaf length (§4.6 Path Resolution, §9
// "Path parsing"). A trailing slash is dropped. The empty component list
// denotes the root itself.
func parsePath(g Geometry, path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, ErrInvalid
	}

	trimmed := strings.TrimSuffix(path, "/")
	if trimmed == "" {
		return []string{}, nil
	}

	parts := strings.Split(trimmed[1:], "/")

	for _, p := range parts {
		if p == "" {
			return nil, ErrPathNotFound
		}

		if len(p) > g.NameLength {
			return nil, ErrInvalid
		}
	}

	if len(parts) > maxPathDepth {
		return nil, ErrInvalid
	}

	return parts, nil
}

// resolveParent walks from the root directory to the parent of the leaf
// path component, returning that parent's decoded entry table, its backing
// open file (for writing the table back), and the leaf name itself. The
// walk always starts over from the root — "current directory" is per-call
// scratch, not persistent process state (§4.6, §9).
func (fs *FileSystem) resolveParent(path string) (*Directory, *OpenFile, string, error) {
	parts, err := parsePath(fs.geometry, path)
	if err != nil {
		return nil, nil, "", err
	}

	dir := NewDirectory(fs.geometry)
	if err := dir.FetchFrom(fs.rootFile); err != nil {
		return nil, nil, "", err
	}

	file := fs.rootFile

	if len(parts) == 0 {
		return dir, file, "", nil
	}

	for _, component := range parts[:len(parts)-1] {
		sector, found := dir.Find(component)
		if !found {
			return nil, nil, "", ErrPathNotFound
		}

		isDir, _ := dir.IsDirectory(component)
		if !isDir {
			return nil, nil, "", ErrPathNotFound
		}

		header := NewFileHeader(fs.geometry)
		if err := header.FetchFrom(fs.disk, sector); err != nil {
			return nil, nil, "", err
		}

		file = NewOpenFile(fs.disk, header)

		child := NewDirectory(fs.geometry)
		if err := child.FetchFrom(file); err != nil {
			return nil, nil, "", err
		}

		dir = child
	}

	return dir, file, parts[len(parts)-1], nil
}

// Create adds a new file or directory entry at path with the given fixed
// size (§4.6 Create). For directories size is ignored and the file is sized
// to hold a full directory table.
func (fs *FileSystem) Create(path string, size uint64, entryType EntryType) (err error) {
	defer recoverAsError(&err)

	dir, parentFile, leaf, err := fs.resolveParent(path)
	panicIf(err)

	if leaf == "" {
		panicSentinel(ErrInvalid, "cannot create the root directory")
	}

	if _, found := dir.Find(leaf); found {
		panicSentinel(ErrDuplicateName, "entry %q already exists", leaf)
	}

	headerSector, err := fs.bitmap.FindAndSet()
	panicIf(err)

	if err := dir.Add(leaf, headerSector, entryType); err != nil {
		fs.bitmap.Clear(headerSector)
		panicIf(err)
	}

	fileSize := size
	if entryType == EntryDir {
		fileSize = uint64(fs.geometry.directoryFileSize())
	}

	header := NewFileHeader(fs.geometry)
	if err := header.Allocate(fs.bitmap, fileSize); err != nil {
		_ = dir.Remove(leaf)
		fs.bitmap.Clear(headerSector)
		panicIf(err)
	}

	if entryType == EntryDir {
		newFile := NewOpenFile(fs.disk, header)
		emptyDir := NewDirectory(fs.geometry)
		panicIf(emptyDir.WriteBack(newFile))
	}

	panicIf(header.WriteBack(fs.disk, headerSector))
	panicIf(dir.WriteBack(parentFile))
	panicIf(fs.bitmap.WriteBack(fs.bitmapFile))

	return nil
}

// Open resolves path to a leaf file, registers it in the open-file-id
// table, and returns the id (the header's sector number, per §4.6/§9).
func (fs *FileSystem) Open(path string) (id uint32, err error) {
	defer recoverAsError(&err)

	dir, _, leaf, err := fs.resolveParent(path)
	panicIf(err)

	if leaf == "" {
		panicSentinel(ErrInvalid, "cannot open the root directory as a file")
	}

	sector, found := dir.Find(leaf)
	if !found {
		panicSentinel(ErrNotFound, "no such entry: %q", leaf)
	}

	if len(fs.openFiles) >= maxOpenFiles {
		panicSentinel(ErrNoSpace, "open-file table is full")
	}

	if _, already := fs.openFiles[sector]; already {
		return sector, nil
	}

	header := NewFileHeader(fs.geometry)
	panicIf(header.FetchFrom(fs.disk, sector))

	fs.openFiles[sector] = NewOpenFile(fs.disk, header)

	return sector, nil
}

func (fs *FileSystem) lookupOpen(id uint32) (*OpenFile, error) {
	f, found := fs.openFiles[id]
	if !found {
		return nil, ErrBadID
	}

	return f, nil
}

// Read reads from the open file identified by id, starting at its current
// cursor (§4.6 Read/Write/Close).
func (fs *FileSystem) Read(id uint32, buf []byte, length int) (int, error) {
	f, err := fs.lookupOpen(id)
	if err != nil {
		return 0, err
	}

	return f.Read(buf, length)
}

// Write writes to the open file identified by id; past end-of-file is
// silently truncated (§4.6 Read/Write/Close, §4.4).
func (fs *FileSystem) Write(id uint32, buf []byte, length int) (int, error) {
	f, err := fs.lookupOpen(id)
	if err != nil {
		return 0, err
	}

	return f.Write(buf, length)
}

// Close removes id from the open-file table.
func (fs *FileSystem) Close(id uint32) error {
	if _, found := fs.openFiles[id]; !found {
		return ErrBadID
	}

	delete(fs.openFiles, id)

	return nil
}

// Remove deletes the file or directory at path, recursively freeing every
// descendant if it names a directory (§4.6 Remove).
func (fs *FileSystem) Remove(path string) (err error) {
	defer recoverAsError(&err)

	dir, parentFile, leaf, err := fs.resolveParent(path)
	panicIf(err)

	if leaf == "" {
		panicSentinel(ErrInvalid, "cannot remove the root directory")
	}

	sector, found := dir.Find(leaf)
	if !found {
		panicSentinel(ErrNotFound, "no such entry: %q", leaf)
	}

	isDir, _ := dir.IsDirectory(leaf)

	header := NewFileHeader(fs.geometry)
	panicIf(header.FetchFrom(fs.disk, sector))

	if isDir {
		childFile := NewOpenFile(fs.disk, header)

		child := NewDirectory(fs.geometry)
		panicIf(child.FetchFrom(childFile))
		panicIf(child.RemoveRecursive(fs.bitmap, fs.disk))
	}

	header.Deallocate(fs.bitmap)
	fs.bitmap.Clear(sector)

	panicIf(dir.Remove(leaf))

	delete(fs.openFiles, sector)

	panicIf(fs.bitmap.WriteBack(fs.bitmapFile))
	panicIf(dir.WriteBack(parentFile))

	return nil
}

// List resolves path and prints a single-level listing of it (§4.6
// List/ListRecursive).
func (fs *FileSystem) List(path string, w io.Writer) (err error) {
	defer recoverAsError(&err)

	dir, err := fs.resolveDirectory(path)
	panicIf(err)

	dir.List(w)

	return nil
}

// ListRecursive resolves path and prints a full recursive listing of it.
func (fs *FileSystem) ListRecursive(path string, w io.Writer) (err error) {
	defer recoverAsError(&err)

	dir, err := fs.resolveDirectory(path)
	panicIf(err)

	panicIf(dir.ListRecursive(fs.disk, 0, w))

	return nil
}

// resolveDirectory resolves path to the Directory it names (root, or a
// descended-into subdirectory), for List/ListRecursive.
func (fs *FileSystem) resolveDirectory(path string) (*Directory, error) {
	dir, _, leaf, err := fs.resolveParent(path)
	if err != nil {
		return nil, err
	}

	if leaf == "" {
		return dir, nil
	}

	sector, found := dir.Find(leaf)
	if !found {
		return nil, ErrNotFound
	}

	isDir, _ := dir.IsDirectory(leaf)
	if !isDir {
		return nil, ErrPathNotFound
	}

	header := NewFileHeader(fs.geometry)
	if err := header.FetchFrom(fs.disk, sector); err != nil {
		return nil, err
	}

	leafFile := NewOpenFile(fs.disk, header)

	leafDir := NewDirectory(fs.geometry)
	if err := leafDir.FetchFrom(leafFile); err != nil {
		return nil, err
	}

	return leafDir, nil
}

// Describe is a debug helper reporting free-space, grounded in the
// teacher's cmd/exfat_list_contents use of humanize.Comma for byte counts.
func (fs *FileSystem) Describe() string {
	free := fs.bitmap.NumClear()
	total := fs.geometry.SectorCount
	freeBytes := uint64(free) * uint64(fs.geometry.SectorSize)

	return fmt.Sprintf("%s / %d sectors free (%s)", humanize.Comma(int64(free)), total, humanize.Bytes(freeBytes))
}
