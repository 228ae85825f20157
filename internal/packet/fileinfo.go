package packet

import (
	"fmt"

	"github.com/djtremolo/thermit/internal/wire"
)

// FilenameMax is the largest file name thermit will carry, NUL included.
const FilenameMax = 32

// FileInfo is the NEW_FILE_START payload: the size and name of an
// incoming file.
type FileInfo struct {
	Size uint16
	Name string
}

// Serialize writes size:u16, nameLen:u8, name[nameLen] where name is
// NUL-terminated and nameLen counts the trailing NUL.
func (fi FileInfo) Serialize() ([]byte, error) {
	nameLen := len(fi.Name) + 1 // +1 for the NUL terminator
	if nameLen > FilenameMax {
		return nil, fmt.Errorf("packet: file name %q exceeds %d bytes including NUL", fi.Name, FilenameMax)
	}

	buf := make([]byte, 2+1+nameLen)
	c := wire.NewCursor(buf)
	_ = c.PutU16(fi.Size)
	_ = c.PutU8(byte(nameLen))
	_ = c.PutBytes([]byte(fi.Name))
	_ = c.PutU8(0) // NUL terminator

	return buf, nil
}

// DeserializeFileInfo reads a file-info payload. It tolerates peers that
// omit the trailing NUL from nameLen by only trimming a NUL if the last
// name byte actually is one.
func DeserializeFileInfo(buf []byte) (FileInfo, error) {
	c := wire.NewCursor(buf)

	size, err := c.GetU16()
	if err != nil {
		return FileInfo{}, fmt.Errorf("packet: file-info too short for size: %w", err)
	}

	nameLen, err := c.GetU8()
	if err != nil {
		return FileInfo{}, fmt.Errorf("packet: file-info too short for nameLen: %w", err)
	}

	nameBytes, err := c.GetBytes(int(nameLen))
	if err != nil {
		return FileInfo{}, fmt.Errorf("packet: file-info nameLen %d exceeds payload: %w", nameLen, err)
	}

	if n := len(nameBytes); n > 0 && nameBytes[n-1] == 0 {
		nameBytes = nameBytes[:n-1]
	}

	return FileInfo{Size: size, Name: string(nameBytes)}, nil
}
