package common

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HexBytes is a byte slice that marshals to and from 0x-prefixed lowercase
// hex. It is the canonical representation for hashes, addresses and
// signatures at the API boundary; the raw bytes are what gets persisted.
type HexBytes []byte

func (h HexBytes) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte("null"), nil
	}
	return json.Marshal(hexutil.Encode(h))
}

func (h *HexBytes) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*h = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := DecodeHex(s)
	if err != nil {
		return err
	}
	*h = b
	return nil
}

func (h HexBytes) String() string {
	if h == nil {
		return ""
	}
	return hexutil.Encode(h)
}

// DecodeHex decodes a hex string with or without the 0x prefix. Clients are
// allowed to send either form; storage always compares raw bytes.
func DecodeHex(s string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(s), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("empty hex string")
	}
	if len(trimmed)%2 != 0 {
		return nil, fmt.Errorf("odd length hex string %q", s)
	}
	b, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string %q: %w", s, err)
	}
	return b, nil
}

// EncodeHex returns the canonical 0x-prefixed lowercase form, or empty string
// for nil input.
func EncodeHex(b []byte) string {
	if b == nil {
		return ""
	}
	return hexutil.Encode(b)
}
