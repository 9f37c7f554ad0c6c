package fs

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CanonicalKey is the string used for write-queue lookup and watcher
// multiplexing: the resource's string form, NFC-normalized, and lowercased
// iff the provider lacks PathCaseSensitive.
//
// NFC normalization matters because providers built on filesystems that
// store composed and decomposed Unicode forms differently (notably local
// disks on case-insensitive volumes) can otherwise report the "same" path
// two different ways; without folding both to one normal form the write
// queue and watcher multiplexer would treat one resource as two.
func CanonicalKey(caps Capability, resource Resource) string {
	s := norm.NFC.String(resource.String())
	if !IsCaseSensitive(caps) {
		s = strings.ToLower(s)
	}
	return s
}
