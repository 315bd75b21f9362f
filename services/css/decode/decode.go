// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package decode turns raw stylesheet bytes into text.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrInvalidEncoding indicates the bytes are not valid text.
var ErrInvalidEncoding = errors.New("invalid text encoding")

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decode validates content and returns it as text.
//
// Description:
//
//	UTF-8 is the expected encoding; a leading UTF-8 byte order mark is
//	dropped. Content starting with a UTF-16 byte order mark is transcoded
//	to UTF-8. Anything that is not valid in the detected encoding yields
//	ErrInvalidEncoding.
//
// Inputs:
//
//	content - Raw bytes. May be empty.
//
// Outputs:
//
//	string - Decoded text.
//	error  - Wraps ErrInvalidEncoding on failure.
//
// Thread Safety:
//
//	Pure function, safe for concurrent use.
func Decode(content []byte) (string, error) {
	switch {
	case bytes.HasPrefix(content, bomUTF8):
		content = content[len(bomUTF8):]
	case bytes.HasPrefix(content, bomUTF16LE):
		return decodeUTF16(content[len(bomUTF16LE):], unicode.LittleEndian)
	case bytes.HasPrefix(content, bomUTF16BE):
		return decodeUTF16(content[len(bomUTF16BE):], unicode.BigEndian)
	}

	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidEncoding)
	}
	return string(content), nil
}

func decodeUTF16(content []byte, order unicode.Endianness) (string, error) {
	if len(content)%2 != 0 {
		return "", fmt.Errorf("%w: odd UTF-16 length", ErrInvalidEncoding)
	}
	out, _, err := transform.Bytes(unicode.UTF16(order, unicode.IgnoreBOM).NewDecoder(), content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	// The decoder substitutes U+FFFD for unpaired surrogates.
	if bytes.Contains(out, []byte(string(utf8.RuneError))) && !containsEncodedReplacement(content, order) {
		return "", fmt.Errorf("%w: malformed UTF-16", ErrInvalidEncoding)
	}
	return string(out), nil
}

// containsEncodedReplacement reports whether the UTF-16 input itself
// contains U+FFFD, in which case a replacement character in the output is
// legitimate.
func containsEncodedReplacement(content []byte, order unicode.Endianness) bool {
	pattern := []byte{0xFD, 0xFF}
	if order == unicode.BigEndian {
		pattern = []byte{0xFF, 0xFD}
	}
	for i := 0; i+1 < len(content); i += 2 {
		if content[i] == pattern[0] && content[i+1] == pattern[1] {
			return true
		}
	}
	return false
}
