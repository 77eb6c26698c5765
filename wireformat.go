package simfs

import "encoding/binary"

// defaultEncoding is the wire byte order for every on-disk 32-bit field
// (§6: "32-bit little-endian ints").
var defaultEncoding = binary.LittleEndian

// unusedSlot marks a trailing, unused pointer-array slot (§4.2, §6).
const unusedSlot int32 = -1
