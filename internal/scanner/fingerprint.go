package scanner

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// fingerprintChunk is how much of the file head and tail goes into the
// fingerprint. Reading 16 KiB total keeps change detection cheap even
// for multi-gigabyte videos.
const fingerprintChunk = 8192

// Fingerprint computes a fast change fingerprint from the file size,
// modification time and the first and last 8 KiB of content. It is not a
// content hash: it only needs to change when the file does. If the file
// cannot be read, a path-derived fallback is returned so the item still
// gets a stable identity.
func Fingerprint(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return fallbackFingerprint(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fallbackFingerprint(path)
	}
	defer f.Close()

	head := make([]byte, fingerprintChunk)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fallbackFingerprint(path)
	}
	head = head[:n]

	tailOffset := info.Size() - fingerprintChunk
	if tailOffset < 0 {
		tailOffset = 0
	}
	if _, err := f.Seek(tailOffset, io.SeekStart); err != nil {
		return fallbackFingerprint(path)
	}
	tail := make([]byte, fingerprintChunk)
	n, err = io.ReadFull(f, tail)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fallbackFingerprint(path)
	}
	tail = tail[:n]

	h := sha1.New()
	fmt.Fprintf(h, "%d_%d_", info.Size(), info.ModTime().UnixNano())
	h.Write(head)
	h.Write(tail)
	return hex.EncodeToString(h.Sum(nil))
}

func fallbackFingerprint(path string) string {
	h := sha1.Sum([]byte(path))
	return hex.EncodeToString(h[:])
}
