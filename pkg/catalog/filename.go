package catalog

import (
	"regexp"
	"strings"
)

var dateTokenPattern = regexp.MustCompile(`^[Aa][0-9]{7}$`)

// FilenameParts holds the grouping keys taken from an HDF file name of the
// form <shortname>.A<YYYYDDD>.<anything>.hdf.
type FilenameParts struct {
	ShortName string
	Date      string
}

// ParseFilename classifies name. It returns ok=false unless name has at
// least three dot-separated segments, the second is A followed by seven
// digits, and the last is HDF in any case.
func ParseFilename(name string) (parts FilenameParts, ok bool) {
	segs := splitDots(name)
	if len(segs) < 3 {
		return FilenameParts{}, false
	}
	if !dateTokenPattern.MatchString(segs[1]) {
		return FilenameParts{}, false
	}
	if !strings.EqualFold(segs[len(segs)-1], "hdf") {
		return FilenameParts{}, false
	}
	return FilenameParts{ShortName: segs[0], Date: segs[1]}, true
}

// LooksLikeHDF is the coarse directory filter: three or more segments
// ending in HDF. Names that pass it may still fail ParseFilename.
func LooksLikeHDF(name string) bool {
	segs := splitDots(name)
	return len(segs) >= 3 && strings.EqualFold(segs[len(segs)-1], "hdf")
}

// splitDots splits on "." and drops trailing empty segments, so "a.b.hdf."
// yields three segments.
func splitDots(name string) []string {
	segs := strings.Split(name, ".")
	for len(segs) > 0 && segs[len(segs)-1] == "" {
		segs = segs[:len(segs)-1]
	}
	return segs
}
