package simfs

import (
	"fmt"
	"os"
)

// Disk is the contract for the simulated block device this file system core
// is built on top of (§6). It is a synchronous, sector-granular device: a
// real implementation lives outside this module (the MIPS emulator's
// simulated disk); MemoryDisk below is a reference implementation used by
// tests, and FileDisk backs the cmd/ tools.
type Disk interface {
	// ReadSector reads exactly SectorSize() bytes from sector i into buf.
	ReadSector(i uint32, buf []byte) error

	// WriteSector writes exactly SectorSize() bytes from buf to sector i.
	WriteSector(i uint32, buf []byte) error

	// SectorSize is the fixed sector width in bytes for this device.
	SectorSize() uint32

	// SectorCount is the fixed total number of addressable sectors.
	SectorCount() uint32
}

// MemoryDisk is a byte-slice-backed Disk, standing in for the simulator's
// real disk device. Contents of unallocated sectors are zero rather than
// undefined, which is a stricter guarantee than §6 requires but convenient
// for deterministic tests.
type MemoryDisk struct {
	sectorSize  uint32
	sectorCount uint32
	data        []byte
}

// NewMemoryDisk allocates a zeroed device of sectorCount sectors, each
// sectorSize bytes.
func NewMemoryDisk(sectorSize, sectorCount uint32) *MemoryDisk {
	return &MemoryDisk{
		sectorSize:  sectorSize,
		sectorCount: sectorCount,
		data:        make([]byte, uint64(sectorSize)*uint64(sectorCount)),
	}
}

func (d *MemoryDisk) checkBounds(i uint32, buf []byte) error {
	if i >= d.sectorCount {
		return fmt.Errorf("sector index out of range: %d >= %d", i, d.sectorCount)
	}

	if uint32(len(buf)) != d.sectorSize {
		return fmt.Errorf("buffer size (%d) does not match sector size (%d)", len(buf), d.sectorSize)
	}

	return nil
}

// ReadSector implements Disk.
func (d *MemoryDisk) ReadSector(i uint32, buf []byte) error {
	if err := d.checkBounds(i, buf); err != nil {
		return err
	}

	offset := uint64(i) * uint64(d.sectorSize)
	copy(buf, d.data[offset:offset+uint64(d.sectorSize)])

	return nil
}

// WriteSector implements Disk.
func (d *MemoryDisk) WriteSector(i uint32, buf []byte) error {
	if err := d.checkBounds(i, buf); err != nil {
		return err
	}

	offset := uint64(i) * uint64(d.sectorSize)
	copy(d.data[offset:offset+uint64(d.sectorSize)], buf)

	return nil
}

// SectorSize implements Disk.
func (d *MemoryDisk) SectorSize() uint32 { return d.sectorSize }

// SectorCount implements Disk.
func (d *MemoryDisk) SectorCount() uint32 { return d.sectorCount }

// FileDisk is an *os.File-backed Disk, used by the cmd/ demo tools so an
// image survives between invocations (format once, ls/cat afterwards) —
// the host-file-as-device counterpart to MemoryDisk, grounded in the
// teacher's os.Open-a-filesystem-image cmd/ pattern.
type FileDisk struct {
	f           *os.File
	sectorSize  uint32
	sectorCount uint32
}

// OpenFileDisk opens an existing image file at the given geometry.
func OpenFileDisk(path string, sectorSize, sectorCount uint32) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	return &FileDisk{f: f, sectorSize: sectorSize, sectorCount: sectorCount}, nil
}

// CreateFileDisk creates a new, zeroed image file at the given geometry.
func CreateFileDisk(path string, sectorSize, sectorCount uint32) (*FileDisk, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	if err := f.Truncate(int64(sectorSize) * int64(sectorCount)); err != nil {
		f.Close()
		return nil, err
	}

	return &FileDisk{f: f, sectorSize: sectorSize, sectorCount: sectorCount}, nil
}

// Close releases the backing host file.
func (d *FileDisk) Close() error {
	return d.f.Close()
}

func (d *FileDisk) checkBounds(i uint32, buf []byte) error {
	if i >= d.sectorCount {
		return fmt.Errorf("sector index out of range: %d >= %d", i, d.sectorCount)
	}

	if uint32(len(buf)) != d.sectorSize {
		return fmt.Errorf("buffer size (%d) does not match sector size (%d)", len(buf), d.sectorSize)
	}

	return nil
}

// ReadSector implements Disk.
func (d *FileDisk) ReadSector(i uint32, buf []byte) error {
	if err := d.checkBounds(i, buf); err != nil {
		return err
	}

	_, err := d.f.ReadAt(buf, int64(i)*int64(d.sectorSize))

	return err
}

// WriteSector implements Disk.
func (d *FileDisk) WriteSector(i uint32, buf []byte) error {
	if err := d.checkBounds(i, buf); err != nil {
		return err
	}

	_, err := d.f.WriteAt(buf, int64(i)*int64(d.sectorSize))

	return err
}

// SectorSize implements Disk.
func (d *FileDisk) SectorSize() uint32 { return d.sectorSize }

// SectorCount implements Disk.
func (d *FileDisk) SectorCount() uint32 { return d.sectorCount }
