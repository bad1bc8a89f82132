package crypto

import (
	"encoding/binary"
	"errors"
	"strings"
	"sync"

	"github.com/gamegineer/tablenet/src/common"
)

// ErrIndexOutOfBounds is returned when an index, offset or length falls
// outside the characters held by a SecureString.
var ErrIndexOutOfBounds = errors.New("index out of bounds")

// SecureString holds the characters of a secret, such as a password, so that
// they can be explicitly wiped from memory once they are no longer needed.
//
// The content of a SecureString is mutable (see Dispose), so Equal and Hash
// must not be relied upon to key a map.
type SecureString struct {
	l     sync.Mutex
	value []rune
}

// NewSecureString copies value into a new SecureString. The caller remains
// responsible for wiping value.
func NewSecureString(value []rune) *SecureString {
	s, _ := NewSecureStringRange(value, 0, len(value))
	return s
}

// NewSecureStringRange copies value[offset:offset+length] into a new
// SecureString.
func NewSecureStringRange(value []rune, offset, length int) (*SecureString, error) {
	if offset < 0 || length < 0 || offset > len(value) || length > len(value)-offset {
		return nil, ErrIndexOutOfBounds
	}

	chars := make([]rune, length)
	copy(chars, value[offset:offset+length])

	return &SecureString{value: chars}, nil
}

// NewSecureStringFromString creates a SecureString from a Go string. Strings
// are immutable and cannot be wiped, so this is only meant for values that
// already live in memory, like command-line flags.
func NewSecureStringFromString(value string) *SecureString {
	return &SecureString{value: []rune(value)}
}

// Copy returns an independent copy of s.
func (s *SecureString) Copy() *SecureString {
	s.l.Lock()
	defer s.l.Unlock()

	chars := make([]rune, len(s.value))
	copy(chars, s.value)

	return &SecureString{value: chars}
}

// Dispose overwrites every character with the null character. It may be
// called any number of times.
func (s *SecureString) Dispose() {
	s.l.Lock()
	defer s.l.Unlock()

	wipeRunes(s.value)
}

// Len returns the number of characters.
func (s *SecureString) Len() int {
	s.l.Lock()
	defer s.l.Unlock()

	return len(s.value)
}

// CharAt returns the character at index.
func (s *SecureString) CharAt(index int) (rune, error) {
	s.l.Lock()
	defer s.l.Unlock()

	if index < 0 || index >= len(s.value) {
		return 0, ErrIndexOutOfBounds
	}
	return s.value[index], nil
}

// SubSequence returns a new SecureString holding the characters in
// [start, end).
func (s *SecureString) SubSequence(start, end int) (*SecureString, error) {
	s.l.Lock()
	defer s.l.Unlock()

	if start < 0 || end > len(s.value) || start > end {
		return nil, ErrIndexOutOfBounds
	}
	return NewSecureStringRange(s.value, start, end-start)
}

// ToCharArray returns a copy of the characters. The caller should wipe the
// returned slice when done with it.
func (s *SecureString) ToCharArray() []rune {
	s.l.Lock()
	defer s.l.Unlock()

	chars := make([]rune, len(s.value))
	copy(chars, s.value)
	return chars
}

// Equal reports whether s and other hold the same characters.
func (s *SecureString) Equal(other *SecureString) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}

	a := s.ToCharArray()
	defer wipeRunes(a)
	b := other.ToCharArray()
	defer wipeRunes(b)

	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Hash returns a hash of the current content.
func (s *SecureString) Hash() uint32 {
	chars := s.ToCharArray()
	defer wipeRunes(chars)

	buf := make([]byte, 4*len(chars))
	for i, c := range chars {
		binary.BigEndian.PutUint32(buf[4*i:], uint32(c))
	}
	defer wipeBytes(buf)

	return common.Hash32(buf)
}

// String masks the content so that a SecureString can be logged safely.
func (s *SecureString) String() string {
	return strings.Repeat("*", s.Len())
}
