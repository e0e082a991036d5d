package utils

import (
	"crypto/md5"
	"sort"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

// GenUuidFromStrings derives a name-based uuid from parts. The parts are sorted
// first, so the result does not depend on argument order.
func GenUuidFromStrings(parts ...string) uuid.UUID {
	if len(parts) == 0 {
		parts = append(parts, uuid.Nil.String())
	}

	sorted := make([]string, len(parts))
	copy(sorted, parts)
	sort.Strings(sorted)

	return uuidHash([]byte(strings.Join(sorted, "\x00")))
}

// GenUuidFromOrderedStrings is GenUuidFromStrings without the sort: swapping two
// parts yields a different id.
func GenUuidFromOrderedStrings(parts ...string) uuid.UUID {
	if len(parts) == 0 {
		parts = append(parts, uuid.Nil.String())
	}
	return uuidHash([]byte(strings.Join(parts, "\x00")))
}

func uuidHash(b []byte) uuid.UUID {
	sum := md5.Sum(b)
	sum[6] = (sum[6] & 0x0f) | 0x30
	sum[8] = (sum[8] & 0x3f) | 0x80
	return uuid.FromBytesOrNil(sum[:])
}

// ParseUuid accepts a canonical uuid, or derives one from any other non-empty name.
func ParseUuid(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, errors.New("empty id")
	}
	if id, err := uuid.FromString(s); err == nil {
		return id, nil
	}
	return GenUuidFromStrings(s), nil
}
