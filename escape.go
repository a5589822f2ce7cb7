package main

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// decodeEscapes interprets backslash escape sequences using JSON string rules.
// Handles: \" \\ \/ \b \f \n \r \t and \uXXXX (surrogate pairs are combined).
// Anything else after a backslash is an error; raw control characters and
// unescaped double quotes are kept as they are.
func decodeEscapes(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var result strings.Builder
	result.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			result.WriteByte(c)
			continue
		}

		if i+1 >= len(s) {
			return "", fmt.Errorf("trailing backslash at offset %d", i)
		}

		i++
		switch s[i] {
		case '"':
			result.WriteByte('"')
		case '\\':
			result.WriteByte('\\')
		case '/':
			result.WriteByte('/')
		case 'b':
			result.WriteByte('\b')
		case 'f':
			result.WriteByte('\f')
		case 'n':
			result.WriteByte('\n')
		case 'r':
			result.WriteByte('\r')
		case 't':
			result.WriteByte('\t')
		case 'u':
			r, err := readHex4(s, i+1)
			if err != nil {
				return "", err
			}
			i += 4

			// high surrogate followed by an escaped low surrogate is one code point
			if utf16.IsSurrogate(r) {
				if r < 0xDC00 && i+2 < len(s) && s[i+1] == '\\' && s[i+2] == 'u' {
					if low, err := readHex4(s, i+3); err == nil {
						if combined := utf16.DecodeRune(r, low); combined != utf8.RuneError {
							result.WriteRune(combined)
							i += 6
							continue
						}
					}
				}
				r = utf8.RuneError
			}
			result.WriteRune(r)
		default:
			return "", fmt.Errorf("invalid escape sequence \\%c at offset %d", s[i], i-1)
		}
	}

	return result.String(), nil
}

// readHex4 parses the four hex digits of a \u escape starting at offset start
func readHex4(s string, start int) (rune, error) {
	if start+4 > len(s) {
		return 0, fmt.Errorf("truncated \\u escape at offset %d", start-2)
	}
	val, err := strconv.ParseUint(s[start:start+4], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid \\u escape %q", s[start-2:start+4])
	}
	return rune(val), nil
}

// decodeEscapesOrRaw decodes s, falling back to s itself when it is malformed
func decodeEscapesOrRaw(s string) string {
	decoded, err := decodeEscapes(s)
	if err != nil {
		return s
	}
	return decoded
}
