package simfs

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-restruct/restruct"
)

// EntryType distinguishes a regular file entry from a subdirectory entry
// (§3).
type EntryType uint32

const (
	EntryFile EntryType = 0
	EntryDir  EntryType = 1
)

func (t EntryType) String() string {
	if t == EntryDir {
		return "D"
	}

	return "F"
}

// DirEntry is one record of a directory's fixed-capacity table (§3).
type DirEntry struct {
	InUse  bool
	Type   EntryType
	Sector uint32
	Name   string
}

// direntWire is the on-disk shape of one DirEntry: {inUse, type, sector,
// name} contiguous, no padding (§6).
type direntWire struct {
	InUse  uint32
	Type   uint32
	Sector uint32
	Name   []byte
}

// Directory is a fixed-capacity table of entries stored as the body of an
// ordinary file (C5, §4.5) — a directory is a file, and Directory is the
// in-memory decode of that file's bytes.
type Directory struct {
	geometry Geometry
	entries  []DirEntry
}

// NewDirectory returns an empty directory of the configured capacity.
func NewDirectory(g Geometry) *Directory {
	return &Directory{
		geometry: g,
		entries:  make([]DirEntry, g.DirCapacity),
	}
}

func (d *Directory) packEntry(e DirEntry) ([]byte, error) {
	inUse := uint32(0)
	if e.InUse {
		inUse = 1
	}

	wire := direntWire{
		InUse:  inUse,
		Type:   uint32(e.Type),
		Sector: e.Sector,
		Name:   encodeName(e.Name, d.geometry.NameLength),
	}

	return restruct.Pack(defaultEncoding, wire)
}

func (d *Directory) unpackEntry(raw []byte) (DirEntry, error) {
	wire := direntWire{Name: make([]byte, d.geometry.NameLength+1)}

	if err := restruct.Unpack(raw, defaultEncoding, &wire); err != nil {
		return DirEntry{}, wrap(err)
	}

	return DirEntry{
		InUse:  wire.InUse != 0,
		Type:   EntryType(wire.Type),
		Sector: wire.Sector,
		Name:   decodeName(wire.Name),
	}, nil
}

// FetchFrom decodes the entry table from offset 0 of the backing file.
func (d *Directory) FetchFrom(file *OpenFile) error {
	entrySize := d.geometry.directoryEntrySize()
	body := make([]byte, d.geometry.directoryFileSize())

	n, err := file.ReadAt(body, len(body), 0)
	if err != nil {
		return wrap(err)
	}

	if uint32(n) != d.geometry.directoryFileSize() {
		return wrapf(nil, "short read of directory body: got %d want %d", n, len(body))
	}

	entries := make([]DirEntry, d.geometry.DirCapacity)

	for i := 0; i < d.geometry.DirCapacity; i++ {
		raw := body[i*entrySize : (i+1)*entrySize]

		entry, err := d.unpackEntry(raw)
		if err != nil {
			return err
		}

		entries[i] = entry
	}

	d.entries = entries

	return nil
}

// WriteBack encodes the entry table back to offset 0 of the backing file.
func (d *Directory) WriteBack(file *OpenFile) error {
	entrySize := d.geometry.directoryEntrySize()
	body := make([]byte, 0, d.geometry.directoryFileSize())

	for _, e := range d.entries {
		raw, err := d.packEntry(e)
		if err != nil {
			return err
		}

		if len(raw) != entrySize {
			return wrapf(nil, "packed directory entry is %d bytes, want %d", len(raw), entrySize)
		}

		body = append(body, raw...)
	}

	n, err := file.WriteAt(body, len(body), 0)
	if err != nil {
		return wrap(err)
	}

	if uint32(n) != d.geometry.directoryFileSize() {
		return wrapf(nil, "short write of directory body: wrote %d want %d", n, len(body))
	}

	return nil
}

// Find returns the header sector for name, scanning in-use entries bounded
// by NameLength (§4.5).
func (d *Directory) Find(name string) (uint32, bool) {
	idx := d.findIndex(name)
	if idx < 0 {
		return 0, false
	}

	return d.entries[idx].Sector, true
}

// IsDirectory reports whether name exists and names a subdirectory.
func (d *Directory) IsDirectory(name string) (bool, bool) {
	idx := d.findIndex(name)
	if idx < 0 {
		return false, false
	}

	return d.entries[idx].Type == EntryDir, true
}

func (d *Directory) findIndex(name string) int {
	bound := func(s string) string {
		if len(s) > d.geometry.NameLength {
			return s[:d.geometry.NameLength]
		}

		return s
	}

	key := bound(name)

	for i, e := range d.entries {
		if e.InUse && bound(e.Name) == key {
			return i
		}
	}

	return -1
}

// Add inserts a new entry, failing with ErrDuplicateName or ErrDirectoryFull
// (§4.5).
func (d *Directory) Add(name string, sector uint32, entryType EntryType) error {
	if d.findIndex(name) >= 0 {
		return ErrDuplicateName
	}

	for i, e := range d.entries {
		if !e.InUse {
			d.entries[i] = DirEntry{InUse: true, Type: entryType, Sector: sector, Name: name}
			return nil
		}
	}

	return ErrDirectoryFull
}

// Remove marks the matching entry unused without reclaiming its blocks —
// that is the File System's job (§4.5).
func (d *Directory) Remove(name string) error {
	idx := d.findIndex(name)
	if idx < 0 {
		return ErrNotFound
	}

	d.entries[idx] = DirEntry{}

	return nil
}

// RemoveRecursive deallocates every descendant of this directory: for DIR
// entries it descends first, then for every entry (file or dir) it
// deallocates the entry's own header blocks and frees the header sector,
// then marks the entry unused (§4.5). After this call the directory has no
// in-use entries.
func (d *Directory) RemoveRecursive(bm *Bitmap, disk Disk) error {
	for i, e := range d.entries {
		if !e.InUse {
			continue
		}

		header := NewFileHeader(d.geometry)
		if err := header.FetchFrom(disk, e.Sector); err != nil {
			return err
		}

		if e.Type == EntryDir {
			child := NewDirectory(d.geometry)

			childFile := NewOpenFile(disk, header)
			if err := child.FetchFrom(childFile); err != nil {
				return err
			}

			if err := child.RemoveRecursive(bm, disk); err != nil {
				return err
			}
		}

		header.Deallocate(bm)
		bm.Clear(e.Sector)

		d.entries[i] = DirEntry{}
	}

	return nil
}

// List prints a single-level listing: "[index] name T" (§4.5).
func (d *Directory) List(w io.Writer) {
	for i, e := range d.entries {
		if !e.InUse {
			continue
		}

		fmt.Fprintf(w, "[%d] %s %s\n", i, e.Name, e.Type)
	}
}

// ListRecursive is List, but descends into each DIR entry with
// indent+2 spaces (§4.5).
func (d *Directory) ListRecursive(disk Disk, indent int, w io.Writer) error {
	prefix := strings.Repeat(" ", indent)

	for i, e := range d.entries {
		if !e.InUse {
			continue
		}

		fmt.Fprintf(w, "%s[%d] %s %s\n", prefix, i, e.Name, e.Type)

		if e.Type != EntryDir {
			continue
		}

		header := NewFileHeader(d.geometry)
		if err := header.FetchFrom(disk, e.Sector); err != nil {
			return err
		}

		child := NewDirectory(d.geometry)

		childFile := NewOpenFile(disk, header)
		if err := child.FetchFrom(childFile); err != nil {
			return err
		}

		if err := child.ListRecursive(disk, indent+2, w); err != nil {
			return err
		}
	}

	return nil
}
