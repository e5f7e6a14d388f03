// Package encoding provides text decoding for fixed-size names stored in model files.
package encoding

import (
	"bytes"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// CP437ToUTF8 converts DOS code page 437 bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func CP437ToUTF8(data []byte) string {
	decoder := charmap.CodePage437.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// UTF8ToCP437 converts a UTF-8 string to code page 437 bytes.
// Characters outside the code page are replaced by the encoder's substitute.
func UTF8ToCP437(s string) []byte {
	encoder := charmap.CodePage437.NewEncoder()
	result, _, err := transform.Bytes(encoder, []byte(s))
	if err != nil {
		return []byte(s)
	}
	return result
}

// TrimNullBytes cuts a byte slice at its first null byte.
func TrimNullBytes(data []byte) []byte {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return data[:i]
	}
	return data
}

// FixedStringToUTF8 converts a fixed-size, null-terminated CP437 array to UTF-8.
func FixedStringToUTF8(data []byte) string {
	return CP437ToUTF8(TrimNullBytes(data))
}

// UTF8ToFixedString converts a UTF-8 string to a fixed-size CP437 array padded with nulls.
// Longer names are truncated to size.
func UTF8ToFixedString(s string, size int) []byte {
	result := make([]byte, size)
	copy(result, UTF8ToCP437(s))
	return result
}
