package scan

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// sniffLen is how much of a file is inspected for binary markers.
const sniffLen = 512

// BinaryExtensions are skipped without reading the file.
var BinaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true, ".webp": true,
	".pdf": true, ".zip": true, ".gz": true, ".tgz": true, ".bz2": true, ".xz": true, ".7z": true, ".rar": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true, ".o": true, ".class": true, ".jar": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".mp3": true, ".mp4": true, ".mov": true, ".avi": true, ".wav": true, ".flac": true,
	".sqlite": true, ".db": true, ".bin": true, ".wasm": true,
}

// isBinary reports whether data cannot be passed on as text: a NUL byte or
// more than 30% non-printable bytes in the first 512 bytes, or invalid UTF-8.
func isBinary(data []byte) bool {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if len(head) == 0 {
		return false
	}

	if bytes.IndexByte(head, 0) >= 0 {
		return true
	}

	nonPrintable := 0
	for _, b := range head {
		if !isPrintable(b) {
			nonPrintable++
		}
	}
	if float64(nonPrintable)/float64(len(head)) > 0.3 {
		return true
	}

	return !utf8.Valid(data)
}

// isPrintable treats ASCII text, common whitespace and any byte of a
// multi-byte UTF-8 sequence as printable.
func isPrintable(b byte) bool {
	return (b >= 32 && b <= 126) || b == '\n' || b == '\r' || b == '\t' || b == '\f' || b >= 0x80
}

// isCommonBinaryExtension checks if the file has a known binary extension.
func isCommonBinaryExtension(name string) bool {
	return BinaryExtensions[strings.ToLower(filepath.Ext(name))]
}
