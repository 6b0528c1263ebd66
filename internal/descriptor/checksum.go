// Package descriptor normalizes Bitcoin output descriptors by validating
// or appending their checksum suffix, without talking to a node.
package descriptor

import (
	"strings"

	walleterr "github.com/eigenix/walletd/pkg/errors"
)

// inputCharset is the set of characters allowed in a descriptor body,
// ordered so that a character's index determines its checksum symbol.
const inputCharset = "0123456789()[],'/*abcdefgh@:$%{}IJKLMNOPQRSTUVWXYZ&+-.;<=>?!^_|~ijklmnopqrstuvwxyzABCDEFGH`#\"\\ "

// checksumCharset is the bech32 character set used for the 8-character
// checksum suffix.
const checksumCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// ChecksumLength is the length of a descriptor checksum suffix.
const ChecksumLength = 8

// polyMod updates the checksum accumulator with one symbol.
func polyMod(c uint64, val uint64) uint64 {
	c0 := c >> 35
	c = ((c & 0x7ffffffff) << 5) ^ val
	if c0&1 != 0 {
		c ^= 0xf5dee51989
	}
	if c0&2 != 0 {
		c ^= 0xa9fdca3312
	}
	if c0&4 != 0 {
		c ^= 0x1bab10e32d
	}
	if c0&8 != 0 {
		c ^= 0x3706b1677a
	}
	if c0&16 != 0 {
		c ^= 0x644d626ffd
	}
	return c
}

// Checksum computes the 8-character checksum for a descriptor body
// (the part before any '#').
func Checksum(desc string) (string, error) {
	c := uint64(1)
	cls := uint64(0)
	clsCount := 0

	for _, ch := range desc {
		pos := strings.IndexRune(inputCharset, ch)
		if pos < 0 {
			return "", walleterr.Wrap(walleterr.ErrInvalidDescriptor, "character %q not allowed", ch)
		}
		c = polyMod(c, uint64(pos)&31)
		cls = cls*3 + (uint64(pos) >> 5)
		clsCount++
		if clsCount == 3 {
			c = polyMod(c, cls)
			cls = 0
			clsCount = 0
		}
	}
	if clsCount > 0 {
		c = polyMod(c, cls)
	}
	for i := 0; i < ChecksumLength; i++ {
		c = polyMod(c, 0)
	}
	c ^= 1

	var sb strings.Builder
	sb.Grow(ChecksumLength)
	for i := 0; i < ChecksumLength; i++ {
		sb.WriteByte(checksumCharset[(c>>(5*uint(7-i)))&31])
	}
	return sb.String(), nil
}

// Normalize ensures a descriptor carries a valid checksum suffix.
// A descriptor already ending in a valid "#xxxxxxxx" is returned
// unchanged; a descriptor without one gets the computed checksum
// appended. A present-but-wrong checksum is rejected rather than
// silently recomputed, since it usually means a transcription error.
func Normalize(raw string) (string, error) {
	body, suffix, found := strings.Cut(raw, "#")
	if !found {
		sum, err := Checksum(raw)
		if err != nil {
			return "", err
		}
		return raw + "#" + sum, nil
	}

	if strings.Contains(suffix, "#") {
		return "", walleterr.Wrap(walleterr.ErrInvalidDescriptor, "multiple checksum separators")
	}
	if len(suffix) != ChecksumLength {
		return "", walleterr.Wrap(walleterr.ErrInvalidDescriptor, "checksum must be %d characters", ChecksumLength)
	}

	want, err := Checksum(body)
	if err != nil {
		return "", err
	}
	if suffix != want {
		return "", walleterr.Wrap(walleterr.ErrInvalidDescriptor, "checksum mismatch")
	}

	return raw, nil
}
