package simfs

// OpenFile is an in-memory view over a header plus a byte position (C4,
// §4.4). Each read/write fetches the one sector it touches, patches in the
// buffer fragment, and writes the sector back (writes) or extracts the
// fragment (reads) — no dirty buffering beyond a single sector.
type OpenFile struct {
	disk     Disk
	header   *FileHeader
	position uint64
}

// NewOpenFile wraps an already-fetched header for positional I/O.
func NewOpenFile(disk Disk, header *FileHeader) *OpenFile {
	return &OpenFile{disk: disk, header: header}
}

// Length delegates to the header.
func (f *OpenFile) Length() uint64 {
	return f.header.FileLength()
}

// Seek repositions the internal cursor.
func (f *OpenFile) Seek(pos uint64) {
	f.position = pos
}

// ReadAt reads up to len bytes at pos, clipped to [0, fileLength-pos]. It
// returns 0 at or past end-of-file.
func (f *OpenFile) ReadAt(buf []byte, length int, pos uint64) (int, error) {
	fileLength := f.header.FileLength()
	if pos >= fileLength {
		return 0, nil
	}

	toRead := uint64(length)
	if pos+toRead > fileLength {
		toRead = fileLength - pos
	}

	sectorSize := uint64(f.disk.SectorSize())
	var done uint64

	for done < toRead {
		offset := pos + done
		sector, err := f.header.ByteToSector(offset)
		if err != nil {
			return int(done), err
		}

		sectorOffset := offset % sectorSize
		chunk := sectorSize - sectorOffset
		if chunk > toRead-done {
			chunk = toRead - done
		}

		raw := make([]byte, sectorSize)
		if err := f.disk.ReadSector(sector, raw); err != nil {
			return int(done), wrap(err)
		}

		copy(buf[done:done+chunk], raw[sectorOffset:sectorOffset+chunk])

		done += chunk
	}

	return int(done), nil
}

// WriteAt writes up to len bytes at pos. This file system has fixed-size
// files (§4.4): writes never extend past fileLength, they are silently
// clipped.
func (f *OpenFile) WriteAt(buf []byte, length int, pos uint64) (int, error) {
	fileLength := f.header.FileLength()
	if pos >= fileLength {
		return 0, nil
	}

	toWrite := uint64(length)
	if pos+toWrite > fileLength {
		toWrite = fileLength - pos
	}

	sectorSize := uint64(f.disk.SectorSize())
	var done uint64

	for done < toWrite {
		offset := pos + done
		sector, err := f.header.ByteToSector(offset)
		if err != nil {
			return int(done), err
		}

		sectorOffset := offset % sectorSize
		chunk := sectorSize - sectorOffset
		if chunk > toWrite-done {
			chunk = toWrite - done
		}

		raw := make([]byte, sectorSize)
		if err := f.disk.ReadSector(sector, raw); err != nil {
			return int(done), wrap(err)
		}

		copy(raw[sectorOffset:sectorOffset+chunk], buf[done:done+chunk])

		if err := f.disk.WriteSector(sector, raw); err != nil {
			return int(done), wrap(err)
		}

		done += chunk
	}

	return int(done), nil
}

// Read is the stateful wrapper over ReadAt, advancing the cursor by the
// number of bytes actually returned (§9's resolution of the
// advance-by-size-vs-advance-by-bytes-returned ambiguity).
func (f *OpenFile) Read(buf []byte, length int) (int, error) {
	n, err := f.ReadAt(buf, length, f.position)
	f.position += uint64(n)

	return n, err
}

// Write is the stateful wrapper over WriteAt, advancing the cursor by the
// number of bytes actually written.
func (f *OpenFile) Write(buf []byte, length int) (int, error) {
	n, err := f.WriteAt(buf, length, f.position)
	f.position += uint64(n)

	return n, err
}
