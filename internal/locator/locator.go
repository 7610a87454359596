// Package locator converts between peer URLs and the fixed-width 32-byte
// identifiers stored in the on-chain directory.
package locator

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Size is the width of an encoded locator.
const Size = 32

var (
	ErrTooLong       = errors.New("locator: longer than 31 bytes")
	ErrNotTerminated = errors.New("locator: missing null terminator")
	ErrInvalidUTF8   = errors.New("locator: not valid utf-8")
	ErrEmptyLocator  = errors.New("locator: empty")
)

// Encode packs s into a null-terminated 32-byte identifier. The last byte is
// always zero, so at most 31 bytes of UTF-8 fit.
func Encode(s string) ([Size]byte, error) {
	var out [Size]byte
	if len(s) > Size-1 {
		return out, fmt.Errorf("%w: %d bytes", ErrTooLong, len(s))
	}
	if !utf8.ValidString(s) {
		return out, ErrInvalidUTF8
	}
	copy(out[:], s)
	return out, nil
}

// Decode unpacks a 32-byte identifier into its string form. Everything after
// the first null byte is ignored.
func Decode(raw [Size]byte) (string, error) {
	if raw[Size-1] != 0 {
		return "", ErrNotTerminated
	}
	n := bytes.IndexByte(raw[:], 0)
	s := raw[:n]
	if !utf8.Valid(s) {
		return "", ErrInvalidUTF8
	}
	if n == 0 {
		return "", ErrEmptyLocator
	}
	return string(s), nil
}

// DecodeAll decodes every identifier and silently drops the ones that fail.
// Order is preserved for the survivors; dropped reports how many were skipped.
func DecodeAll(raws [][Size]byte) (locators []string, dropped int) {
	locators = make([]string, 0, len(raws))
	for _, raw := range raws {
		s, err := Decode(raw)
		if err != nil {
			dropped++
			continue
		}
		locators = append(locators, s)
	}
	return locators, dropped
}
