// Package core provides result types for probing operations
package core

// Candidate is a subdomain label to resolve under the target domain, plus
// caller context carried through resolution unchanged (e.g. the source that
// produced the label).
type Candidate struct {
	Label   string `json:"label"`
	Context string `json:"context,omitempty"`
}

// Resolution is one resolved address of a candidate hostname
type Resolution struct {
	Hostname string `json:"hostname"`
	Address  string `json:"address"`
	Context  string `json:"context,omitempty"`
	Wildcard bool   `json:"wildcard,omitempty"` // set by presentation only
}

// ReverseRecord is the primary PTR hostname of an address
type ReverseRecord struct {
	Hostname string `json:"hostname"`
	Address  string `json:"address"`
}

// Target is one address/port pair for connect probing
type Target struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// OpenPort is a successfully classified connect probe
type OpenPort struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
	Secured bool   `json:"secured"`
}

// WildcardRecord is one minimal wildcard zone observed during a detection run.
// Subdomain is the zone relative to Domain ("" for the domain apex).
type WildcardRecord struct {
	Subdomain string `json:"subdomain"`
	Domain    string `json:"domain"`
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"`
}

// Zone returns the fully qualified wildcard zone
func (w WildcardRecord) Zone() string {
	if w.Subdomain == "" {
		return w.Domain
	}
	return w.Subdomain + "." + w.Domain
}

// ASNRecord is an autonomous system observed for a probed address
type ASNRecord struct {
	ASN         string `json:"asn"`
	Prefix      string `json:"prefix"`
	Description string `json:"description"`
}

// NetworkRecord is a registry network block observed for a probed address
type NetworkRecord struct {
	CIDR string `json:"cidr"`
	Name string `json:"name"`
}
