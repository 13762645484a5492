package cache

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

// Stored payloads carry a one-letter tag so plain and compressed rows can coexist.
const (
	plainPrefix      = "j:"
	compressedPrefix = "z:"

	// CompressThreshold is the payload size above which values are stored compressed.
	CompressThreshold = 4 << 10
)

var enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
var dec, _ = zstd.NewReader(nil)

// EncodePayload turns a JSON payload into its stored form. Large payloads are compressed and base64-url
// encoded.
func EncodePayload(data json.RawMessage) string {
	if len(data) <= CompressThreshold {
		return plainPrefix + string(data)
	}
	b := enc.EncodeAll(data, make([]byte, 0, len(data)/2))
	return compressedPrefix + base64.RawURLEncoding.EncodeToString(b)
}

// DecodePayload reverses EncodePayload. Untagged values are returned as-is.
func DecodePayload(in string) (json.RawMessage, error) {
	switch {
	case strings.HasPrefix(in, plainPrefix):
		return json.RawMessage(in[len(plainPrefix):]), nil
	case strings.HasPrefix(in, compressedPrefix):
		b, err := base64.RawURLEncoding.DecodeString(in[len(compressedPrefix):])
		if err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		out, err := dec.DecodeAll(b, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress payload: %w", err)
		}
		return out, nil
	default:
		return json.RawMessage(in), nil
	}
}
