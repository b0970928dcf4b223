package auth

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// IdentifierFormat is the deployment-wide convention for identity ids.
type IdentifierFormat string

const (
	IdentifierUUID    IdentifierFormat = "uuid"
	IdentifierInteger IdentifierFormat = "integer"
)

// ParseIdentifierFormat accepts "uuid" (default when empty) or "integer".
func ParseIdentifierFormat(s string) (IdentifierFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(IdentifierUUID):
		return IdentifierUUID, nil
	case string(IdentifierInteger), "int":
		return IdentifierInteger, nil
	default:
		return "", fmt.Errorf("unknown identifier format %q (expected uuid or integer)", s)
	}
}

// Describe returns the wording used in validation messages.
func (f IdentifierFormat) Describe() string {
	if f == IdentifierInteger {
		return "valid integer identifier"
	}
	return "valid UUID"
}

// Valid reports whether id matches the format. UUIDs must be in canonical
// 36-character form; integers must be positive.
func (f IdentifierFormat) Valid(id string) bool {
	if f == IdentifierInteger {
		n, err := strconv.ParseUint(id, 10, 63)
		return err == nil && n > 0
	}
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// lastIntegerID keeps integer ids strictly increasing within the process.
var lastIntegerID atomic.Uint64

// NewID generates an identity id in this format. Integer ids keep the UUIDv7
// millisecond timestamp in the high bits and 15 random bits below it, so they
// stay positive and time-ordered without a database sequence.
func (f IdentifierFormat) NewID() string {
	u := uuid.Must(uuid.NewV7())
	if f != IdentifierInteger {
		return u.String()
	}
	var ts [8]byte
	copy(ts[2:], u[:6])
	ms := binary.BigEndian.Uint64(ts[:])
	random := uint64(binary.BigEndian.Uint16(u[8:10])) & 0x7fff
	candidate := ms<<15 | random
	for {
		prev := lastIntegerID.Load()
		next := candidate
		if next <= prev {
			next = prev + 1
		}
		if lastIntegerID.CompareAndSwap(prev, next) {
			return strconv.FormatUint(next, 10)
		}
	}
}
