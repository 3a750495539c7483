package snapshot

import (
	"sort"
	"strings"
	"time"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

const (
	timestampLayout = "20060102_150405"
	extension       = ".json"
)

// Prefix is the object name prefix of tag's snapshots.
func Prefix(tag models.DatasetTag) string {
	return "secop_" + tag.Lower()
}

// ObjectName is PREFIX_YYYYMMDD_HHMMSS.json for a snapshot taken at t (UTC).
func ObjectName(tag models.DatasetTag, t time.Time) string {
	return Prefix(tag) + "_" + t.UTC().Format(timestampLayout) + extension
}

// parseName returns the timestamp encoded in a snapshot name of tag.
func parseName(tag models.DatasetTag, name string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, Prefix(tag)+"_")
	if !ok {
		return time.Time{}, false
	}
	rest, ok = strings.CutSuffix(rest, extension)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(timestampLayout, rest)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// snapshotNames keeps the valid snapshot names of tag, sorted oldest first.
func snapshotNames(tag models.DatasetTag, names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := parseName(tag, n); ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// nextName names a snapshot taken at now so that it sorts after every name in
// existing, moving past the newest existing second when needed.
func nextName(tag models.DatasetTag, now time.Time, existing []string) string {
	t := now.UTC().Truncate(time.Second)
	for _, n := range existing {
		if prev, ok := parseName(tag, n); ok && !prev.Before(t) {
			t = prev.Add(time.Second)
		}
	}
	return ObjectName(tag, t)
}
