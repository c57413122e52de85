package zstore

// Double-buffered consolidated-metadata arena, adapted from the teacher's
// internal/graph/arena.go. The teacher double-buffers a serialized SQLite
// database so FUSE readers never see a torn write; here the same technique
// double-buffers the consolidated-metadata JSON blob (spec.md §4.1, §8
// property 8: "Consolidated metadata, when present, is consistent with
// on-disk attributes after every completed write").
//
// Layout: a 4KB header followed by two equal-sized buffers. The header's
// ActiveBuffer field names which buffer a reader should trust; flushes
// always write to the *inactive* buffer, then flip the header — so a
// concurrent reader either sees the old complete index or the new one,
// never a partial write.

import (
	"encoding/binary"
	"fmt"

	billy "github.com/go-git/go-billy/v5"
)

const (
	arenaHeaderSize = 4096
	arenaMagic      = 0x5A415243 // "ZARC"
	arenaVersion    = 1
)

type arenaHeader struct {
	Magic        uint32
	Version      uint8
	ActiveBuffer uint8
	Sequence     uint64
	Length       uint64 // byte length of the valid payload in the active buffer
}

func (h *arenaHeader) encode() []byte {
	buf := make([]byte, arenaHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.ActiveBuffer
	binary.LittleEndian.PutUint64(buf[8:16], h.Sequence)
	binary.LittleEndian.PutUint64(buf[16:24], h.Length)
	return buf
}

func decodeArenaHeader(buf []byte) (*arenaHeader, error) {
	if len(buf) < 24 {
		return nil, fmt.Errorf("zstore: short arena header (%d bytes)", len(buf))
	}
	return &arenaHeader{
		Magic:        binary.LittleEndian.Uint32(buf[0:4]),
		Version:      buf[4],
		ActiveBuffer: buf[5],
		Sequence:     binary.LittleEndian.Uint64(buf[8:16]),
		Length:       binary.LittleEndian.Uint64(buf[16:24]),
	}, nil
}

// readArenaHeader reads the fixed-size header from the start of f.
func readArenaHeader(f billy.File) (*arenaHeader, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	buf := make([]byte, arenaHeaderSize)
	if _, err := readFull(f, buf); err != nil {
		return nil, err
	}
	return decodeArenaHeader(buf)
}

// bufferOffset returns the byte offset of the given buffer index (0 or 1)
// within an arena file of the given bufferSize.
func bufferOffset(idx uint8, bufferSize int64) int64 {
	return int64(arenaHeaderSize) + int64(idx)*bufferSize
}

func readFull(f billy.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
