package pipeline

import (
	"os"
	"regexp"
	"time"
)

// TimestampLayout is the recording timestamp stamped on file names.
const TimestampLayout = "20060102-150405"

var (
	prefixStamp   = regexp.MustCompile(`^(\d{8}-\d{6})-`)
	embeddedStamp = regexp.MustCompile(`(\d{8}-\d{6})`)
)

// TimestampFromName reads a YYYYMMDD-HHMMSS stamp from name, preferring a
// prefix over an occurrence elsewhere. The civil time is interpreted in
// loc. A stamp that is not a valid date yields false.
func TimestampFromName(name string, loc *time.Location) (time.Time, bool) {
	m := prefixStamp.FindStringSubmatch(name)
	if m == nil {
		m = embeddedStamp.FindStringSubmatch(name)
	}
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(TimestampLayout, m[1], loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// fileTime approximates the creation time of path. Go exposes no portable
// birth time, so the modification time stands in.
func fileTime(path string, loc *time.Location) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime().In(loc), nil
}
