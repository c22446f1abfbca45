package jsonreader

import (
	"bytes"
	"regexp"
	"strings"
)

var (
	trailingCommaObj = regexp.MustCompile(`,(\s*})`)
	trailingCommaArr = regexp.MustCompile(`,(\s*\])`)
	unquotedKey       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	controlChar       = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
)

// repairJSON applies a fixed, documented set of corrections and reports
// which ones actually changed the input. Each repair is attempted in
// sequence; the function never fails, only reports what it tried.
func repairJSON(raw []byte) ([]byte, []string, bool) {
	data := raw
	var applied []string

	if stripped, changed := stripBOM(data); changed {
		data = stripped
		applied = append(applied, "utf8-bom-stripped")
	}

	if replaced := controlChar.ReplaceAll(data, nil); !bytes.Equal(replaced, data) {
		data = replaced
		applied = append(applied, "control-characters-escaped")
	}

	if converted, changed := singleToDoubleQuotes(data); changed {
		data = converted
		applied = append(applied, "single-quoted-strings-converted")
	}

	if fixed := unquotedKey.ReplaceAll(data, []byte(`$1"$2"$3`)); !bytes.Equal(fixed, data) {
		data = fixed
		applied = append(applied, "unquoted-keys-quoted")
	}

	if fixed := trailingCommaObj.ReplaceAll(data, []byte("$1")); !bytes.Equal(fixed, data) {
		data = fixed
		applied = append(applied, "trailing-comma-removed-object")
	}
	if fixed := trailingCommaArr.ReplaceAll(data, []byte("$1")); !bytes.Equal(fixed, data) {
		data = fixed
		applied = append(applied, "trailing-comma-removed-array")
	}

	if gjsonValid(data) {
		return data, applied, len(applied) > 0
	}

	offset := findLastBalancedOffset(data)
	if offset > 0 && offset < len(data) {
		truncated := data[:offset]
		if gjsonValid(truncated) {
			applied = append(applied, "truncated-to-last-balanced-delimiter")
			return truncated, applied, true
		}
	}

	return data, applied, len(applied) > 0
}

func stripBOM(data []byte) ([]byte, bool) {
	bom := []byte{0xEF, 0xBB, 0xBF}
	if bytes.HasPrefix(data, bom) {
		return data[len(bom):], true
	}
	return data, false
}

// singleToDoubleQuotes is a best-effort conversion for inputs that use
// single quotes instead of JSON's required double quotes. It does not
// attempt to handle escaped single quotes inside double-quoted strings,
// since that input would already be valid JSON.
func singleToDoubleQuotes(data []byte) ([]byte, bool) {
	if !bytes.ContainsRune(data, '\'') {
		return data, false
	}
	s := string(data)
	if strings.Count(s, "'")%2 != 0 {
		return data, false
	}
	return []byte(strings.ReplaceAll(s, "'", `"`)), true
}

// findLastBalancedOffset scans data for the last byte offset at which
// every opened '{' or '[' has a matching close, ignoring braces/brackets
// inside string literals.
func findLastBalancedOffset(data []byte) int {
	depth := 0
	inString := false
	escaped := false
	lastBalanced := 0

	for i, b := range data {
		if inString {
			if escaped {
				escaped = false
			} else if b == '\\' {
				escaped = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				lastBalanced = i + 1
			}
		}
	}

	if lastBalanced == 0 {
		return len(data)
	}
	return lastBalanced
}
