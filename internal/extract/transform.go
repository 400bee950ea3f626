package extract

import (
	"fmt"
	"regexp"
)

var pageParamPattern = regexp.MustCompile(`page=(\d+)`)

// transforms are the named pure functions that may be applied to a
// scalar before it is stored.
var transforms = map[string]func(string) string{
	"extract_page_number": extractPageNumber,
}

// ApplyTransform runs a named transform over an extracted scalar.
func ApplyTransform(value, name string) (string, error) {
	fn, ok := transforms[name]
	if !ok {
		return "", fmt.Errorf("unknown transform %q", name)
	}
	return fn(value), nil
}

// extractPageNumber pulls the page number out of a pagination URL by
// locating its page= query parameter. Defaults to "1".
func extractPageNumber(url string) string {
	if matches := pageParamPattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}
	return "1"
}
