package match

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// volPattern matches an explicit volume marker ("Vol. 3", "Volume 12",
// "Vols 1-3") with an optional range continuation.
var volPattern = regexp.MustCompile(`(?i)\bvol(?:ume)?s?\.?\s*(\d+)(?:\s*(?:-|–|—|to)\s*(\d+))?`)

// rangePattern matches a bare numeric range like "1-3", "4 – 6" or "1 to 5".
var rangePattern = regexp.MustCompile(`(?i)(\d+)\s*(?:-|–|—|to)\s*(\d+)`)

// HasVolumeMatch reports whether the title plausibly refers to volume n.
// Precedence: an explicit volume marker, then a numeric range containing n,
// then the bare number as a standalone token outside any detected range.
func HasVolumeMatch(title string, n int) bool {
	for _, m := range volPattern.FindAllStringSubmatch(title, -1) {
		a, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if m[2] == "" {
			if a == n {
				return true
			}
			continue
		}
		b, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if inRange(n, a, b) {
			return true
		}
	}

	for _, m := range rangePattern.FindAllStringSubmatch(title, -1) {
		a, errA := strconv.Atoi(m[1])
		b, errB := strconv.Atoi(m[2])
		if errA != nil || errB != nil {
			continue
		}
		if inRange(n, a, b) {
			return true
		}
	}

	// Bare standalone number, after scrubbing every marker and range so their
	// endpoints cannot masquerade as a match.
	scrubbed := volPattern.ReplaceAllString(title, " ")
	scrubbed = rangePattern.ReplaceAllString(scrubbed, " ")
	want := strconv.Itoa(n)
	for _, tok := range strings.FieldsFunc(scrubbed, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if tok == want {
			return true
		}
	}
	return false
}

func inRange(n, a, b int) bool {
	if a > b {
		a, b = b, a
	}
	return n >= a && n <= b
}
