package normalize

import (
	"regexp"
	"strings"
)

// KeywordMatcher matches text containing any of a set of literal keywords,
// ignoring case.
type KeywordMatcher struct {
	re *regexp.Regexp
}

// NewKeywordMatcher returns nil when keywords has no non-blank entry. A nil
// matcher matches everything.
func NewKeywordMatcher(keywords []string) *KeywordMatcher {
	parts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			parts = append(parts, regexp.QuoteMeta(kw))
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return &KeywordMatcher{re: regexp.MustCompile(`(?i)(?:` + strings.Join(parts, "|") + `)`)}
}

// Match reports whether s contains a keyword.
func (m *KeywordMatcher) Match(s string) bool {
	if m == nil {
		return true
	}
	return m.re.MatchString(s)
}
