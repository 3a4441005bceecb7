// Package macroman transcodes NuFX filenames between UTF-8 (the encoding
// the engine presents to callers) and Mac OS Roman (the 8-bit encoding
// stored on disk), per spec.md §4.1. It also implements the "all bytes
// have the high bit set" legacy normalization applied to filenames read
// from older archives.
package macroman

import (
	"golang.org/x/text/encoding/charmap"
)

// ToUTF8 decodes a Mac OS Roman byte string (after stripping the legacy
// high-bit convention, if present) into a UTF-8 string.
func ToUTF8(raw []byte) string {
	raw = stripHighBit(raw)
	out, err := charmap.Macintosh.NewDecoder().Bytes(raw)
	if err != nil {
		// charmap.Macintosh has a mapping for every byte value, so this
		// path is unreachable in practice; fall back to a lossy decode
		// rather than surfacing a decode error for a filename.
		out = raw
	}
	return string(out)
}

// FromUTF8 encodes a UTF-8 string to Mac OS Roman, replacing any
// unmappable rune with '?' per spec.md §4.1.
func FromUTF8(name string) []byte {
	enc := charmap.Macintosh.NewEncoder()
	out := make([]byte, 0, len(name))
	for _, r := range name {
		b, err := enc.Bytes([]byte(string(r)))
		if err != nil || len(b) != 1 {
			out = append(out, '?')
			continue
		}
		out = append(out, b[0])
	}
	return out
}

// stripHighBit clears bit 7 of every byte, but only when *every* byte in
// raw already has it set -- the legacy convention some ancient Apple II
// archivers used to mark "this is text". A mixed-bit buffer is left
// untouched, matching the original's narrow trigger condition.
func stripHighBit(raw []byte) []byte {
	if len(raw) == 0 {
		return raw
	}
	for _, b := range raw {
		if b&0x80 == 0 {
			return raw
		}
	}
	out := make([]byte, len(raw))
	for i, b := range raw {
		out[i] = b &^ 0x80
	}
	return out
}
