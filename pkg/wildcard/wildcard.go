// Package wildcard detects DNS zones that answer every name below them and
// reduces the observations to the minimal set of wildcard zones per address.
package wildcard

import (
	"crypto/rand"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Observation is a probed zone whose synthetic name resolved to Address
type Observation struct {
	Hostname string
	Address  string
}

// Levels returns the distinct zones in play for names under domain, relative
// to domain. Every proper suffix of a name's labels is a level and the apex
// ("") is always included. Names may be relative labels ("a.b") or fully
// qualified hostnames ("a.b.example.com").
func Levels(domain string, names []string) []string {
	domain = normalize(domain)
	seen := map[string]struct{}{"": {}}

	for _, name := range names {
		rel := Relative(domain, name)
		if rel == "" {
			continue
		}
		labels := strings.Split(rel, ".")
		for i := 1; i < len(labels); i++ {
			level := strings.Join(labels[i:], ".")
			if level != "" {
				seen[level] = struct{}{}
			}
		}
	}

	levels := make([]string, 0, len(seen))
	for level := range seen {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool {
		return reverseLabels(levels[i]) < reverseLabels(levels[j])
	})
	return levels
}

// Relative strips domain from name, returning "" for the apex itself
func Relative(domain, name string) string {
	domain = normalize(domain)
	name = normalize(name)

	if name == domain {
		return ""
	}
	return strings.TrimSuffix(name, "."+domain)
}

// Hostname joins a relative level with domain
func Hostname(level, domain string) string {
	if level == "" {
		return normalize(domain)
	}
	return level + "." + normalize(domain)
}

// NewToken returns a probe label for a run started at unix time ts. The
// random suffix keeps concurrent runs in the same second apart.
func NewToken(ts int64) string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strconv.FormatInt(ts, 10)
	}
	return strconv.FormatInt(ts, 10) + "-" + hex.EncodeToString(b[:])
}

// ProbeName builds the synthetic name <token>.<level>.<domain>
func ProbeName(token, level, domain string) string {
	return token + "." + Hostname(level, domain)
}

// Minimize reduces observations to the minimal wildcard zones per address: a
// zone is dropped when a broader zone with the same address already covers
// it. Output is sorted by reversed hostname, then address.
func Minimize(observations []Observation) []Observation {
	type keyed struct {
		reversed string
		obs      Observation
	}

	unique := make(map[Observation]struct{}, len(observations))
	sorted := make([]keyed, 0, len(observations))
	for _, o := range observations {
		o.Hostname = normalize(o.Hostname)
		if _, dup := unique[o]; dup {
			continue
		}
		unique[o] = struct{}{}
		sorted = append(sorted, keyed{reversed: reverseLabels(o.Hostname), obs: o})
	}

	// Reversed labels put a zone before everything below it
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].reversed != sorted[j].reversed {
			return sorted[i].reversed < sorted[j].reversed
		}
		return sorted[i].obs.Address < sorted[j].obs.Address
	})

	accepted := make(map[string][]string)
	var out []Observation
	for _, k := range sorted {
		if covered(k.obs.Hostname, accepted[k.obs.Address]) {
			continue
		}
		accepted[k.obs.Address] = append(accepted[k.obs.Address], k.obs.Hostname)
		out = append(out, k.obs)
	}
	return out
}

// covered reports whether hostname equals or lies below one of zones
func covered(hostname string, zones []string) bool {
	for _, zone := range zones {
		if hostname == zone || strings.HasSuffix(hostname, "."+zone) {
			return true
		}
	}
	return false
}

func reverseLabels(name string) string {
	labels := strings.Split(name, ".")
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return strings.Join(labels, ".")
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
}
