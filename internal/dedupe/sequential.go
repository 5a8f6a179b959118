package dedupe

import (
	"path/filepath"
	"regexp"
	"strings"
)

// sequentialSuffix matches the remainder of a burst-shot filename after
// the shared prefix: optional separators, digits, optional closing
// parenthesis. Covers img_001, IMG(2), photo-p3 and similar schemes.
var sequentialSuffix = regexp.MustCompile(`(?i)^[_ \-p(r]*[0-9]+\)*$`)

// IsSequentialName reports whether two paths look like consecutive
// shots from the same burst: base names sharing a prefix of at least
// three characters where both remainders are empty or numeric suffixes.
// Such pairs are legitimately similar, not duplicates.
func IsSequentialName(pathA, pathB string) bool {
	nameA := strings.TrimSuffix(filepath.Base(pathA), filepath.Ext(pathA))
	nameB := strings.TrimSuffix(filepath.Base(pathB), filepath.Ext(pathB))

	if len(nameA) < 3 || len(nameB) < 3 {
		return false
	}

	prefix := 0
	for prefix < len(nameA) && prefix < len(nameB) && nameA[prefix] == nameB[prefix] {
		prefix++
	}
	if prefix < 3 {
		return false
	}

	remA := nameA[prefix:]
	remB := nameB[prefix:]
	return (remA == "" || sequentialSuffix.MatchString(remA)) &&
		(remB == "" || sequentialSuffix.MatchString(remB))
}
