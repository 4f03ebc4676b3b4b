package ledger

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
)

const (
	maxMetadataKeys     = 32
	maxMetadataKeyLen   = 64
	maxMetadataValueLen = 512
	maxMetadataBytes    = 4 << 10
)

var metadataKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,64}$`)

// Metadata is an opaque, size-bounded set of string pairs attached to a
// transaction (e.g. PIX end-to-end ids).
type Metadata map[string]string

// Validate enforces the key, value and total size bounds.
func (m Metadata) Validate() error {
	if len(m) == 0 {
		return nil
	}
	if len(m) > maxMetadataKeys {
		return fmt.Errorf("metadata has more than %d keys: %w", maxMetadataKeys, apperr.ErrValidation)
	}
	for k, v := range m {
		if len(k) > maxMetadataKeyLen || !metadataKeyPattern.MatchString(k) {
			return fmt.Errorf("metadata key %q is invalid: %w", k, apperr.ErrValidation)
		}
		if len(v) > maxMetadataValueLen {
			return fmt.Errorf("metadata value for %q exceeds %d bytes: %w", k, maxMetadataValueLen, apperr.ErrValidation)
		}
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("metadata: %w", apperr.ErrValidation)
	}
	if len(encoded) > maxMetadataBytes {
		return fmt.Errorf("metadata exceeds %d bytes: %w", maxMetadataBytes, apperr.ErrValidation)
	}
	return nil
}
