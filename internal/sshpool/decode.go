package sshpool

import "strings"

// lossyUTF8 decodes b as UTF-8, substituting the Unicode replacement
// character for any invalid byte sequence rather than dropping it silently,
// so a round trip through this function never loses byte-length
// information silently. This is the one place in the package built
// directly on the standard library: strings.ToValidUTF8 already expresses
// exactly the replace-don't-drop semantics needed here, with no
// third-party decoder in the corpus doing anything different.
func lossyUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
