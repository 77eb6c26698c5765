package simfs

import (
	"fmt"
	"io"
)

// Syscalls is the thin translation layer from user system-call numbers to
// File System operations (C7, §4.7). It copies the user-mode argument area
// (names, buffers) into local buffers before calling into the core and
// copies results back, generalized from a one-shot CLI invocation to a
// repeatable syscall-style entry point.
type Syscalls struct {
	fs  *FileSystem
	out io.Writer
}

// NewSyscalls binds a surface to a mounted file system. out receives
// PrintInt output.
func NewSyscalls(fs *FileSystem, out io.Writer) *Syscalls {
	return &Syscalls{fs: fs, out: out}
}

// Create implements the Create system call: name, initialSize -> 1 on
// success, 0 on failure.
func (s *Syscalls) Create(name string, initialSize int32, isDirectory bool) int32 {
	entryType := EntryFile
	if isDirectory {
		entryType = EntryDir
	}

	if err := s.fs.Create(name, uint64(initialSize), entryType); err != nil {
		return 0
	}

	return 1
}

// Open implements the Open system call: name -> id, or -1 on failure.
func (s *Syscalls) Open(name string) int32 {
	id, err := s.fs.Open(name)
	if err != nil {
		return -1
	}

	return int32(id)
}

// Read implements the Read system call: copies up to size bytes from the
// open file id into buf, returning the byte count, or -1 on BadId.
func (s *Syscalls) Read(buf []byte, size int32, id int32) int32 {
	if id < 0 {
		return -1
	}

	kernelBuf := make([]byte, size)

	n, err := s.fs.Read(uint32(id), kernelBuf, int(size))
	if err != nil {
		return -1
	}

	copy(buf, kernelBuf[:n])

	return int32(n)
}

// Write implements the Write system call: copies up to size bytes from buf
// into the open file id, returning the byte count, or -1 on BadId.
func (s *Syscalls) Write(buf []byte, size int32, id int32) int32 {
	if id < 0 {
		return -1
	}

	n, err := s.fs.Write(uint32(id), buf[:size], int(size))
	if err != nil {
		return -1
	}

	return int32(n)
}

// Close implements the Close system call: id -> 1 on success, 0 on BadId.
func (s *Syscalls) Close(id int32) int32 {
	if id < 0 {
		return 0
	}

	if err := s.fs.Close(uint32(id)); err != nil {
		return 0
	}

	return 1
}

// PrintInt implements the PrintInt system call.
func (s *Syscalls) PrintInt(i int32) {
	fmt.Fprintf(s.out, "%d\n", i)
}

// Halt terminates the simulator. The simulator's process lifecycle is out
// of scope for this core (§1); this is a hook a caller can wire to its own
// shutdown, kept here only to complete the §4.7 surface.
func (s *Syscalls) Halt() {
}
