package replica

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"unreplied/internal/domain"
)

// keyset is the position after the last listed cast.
type keyset struct {
	Timestamp int64  `json:"t"`
	Hash      string `json:"h"`
}

func encodeCursor(c domain.Cast) string {
	raw, _ := json.Marshal(keyset{Timestamp: c.Timestamp.UnixNano(), Hash: c.Hash})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: malformed cursor", domain.ErrInvalidInput)
	}
	var k keyset
	if err := json.Unmarshal(raw, &k); err != nil || k.Hash == "" {
		return time.Time{}, "", fmt.Errorf("%w: malformed cursor", domain.ErrInvalidInput)
	}
	return time.Unix(0, k.Timestamp).UTC(), k.Hash, nil
}
