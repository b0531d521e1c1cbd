package xmlenc

import (
	"regexp"
	"strings"
)

// charsetPattern extracts the charset parameter of a content-type string.
// The value may be bare, double-quoted, or single-quoted, and whitespace
// around the separators is tolerated.
var charsetPattern = regexp.MustCompile(`(?i);\s*charset\s*=\s*(?:"([^"]*)"|'([^']*)'|([^;"'\s]+))`)

// parseContentType splits a "type/subtype[;charset=value]" string into the
// lowercased MIME type and the uppercased charset value. Either part may
// be empty.
func parseContentType(s string) (mime, charset string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if i := strings.IndexByte(s, ';'); i >= 0 {
		mime = s[:i]
	} else {
		mime = s
	}
	mime = strings.ToLower(strings.TrimSpace(mime))

	if m := charsetPattern.FindStringSubmatch(s); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				charset = strings.ToUpper(strings.TrimSpace(g))
				break
			}
		}
	}
	return mime, charset
}
