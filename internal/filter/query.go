package filter

import (
	"net/url"
	"strings"
)

// reserved query parameters never name a column.
var reserved = map[string]bool{
	"limit":  true,
	"offset": true,
	"sort":   true,
}

// ParseQuery builds a Spec from URL parameters:
//
//	col=text           case-insensitive substring
//	col=a&col=b        membership in {a, b}
//	col.min=x&col.max=y inclusive range, either side optional
func ParseQuery(q url.Values) Spec {
	spec := make(Spec)
	bounds := make(map[string][2]any)

	for key, values := range q {
		if reserved[key] || len(values) == 0 {
			continue
		}
		switch {
		case strings.HasSuffix(key, ".min"):
			col := strings.TrimSuffix(key, ".min")
			b := bounds[col]
			b[0] = nonEmpty(values[0])
			bounds[col] = b
		case strings.HasSuffix(key, ".max"):
			col := strings.TrimSuffix(key, ".max")
			b := bounds[col]
			b[1] = nonEmpty(values[0])
			bounds[col] = b
		case len(values) == 1:
			spec[key] = Match(values[0])
		default:
			members := make([]any, 0, len(values))
			for _, v := range values {
				members = append(members, v)
			}
			spec[key] = In(members...)
		}
	}

	for col, b := range bounds {
		spec[col] = Between(b[0], b[1])
	}
	return spec
}

func nonEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
