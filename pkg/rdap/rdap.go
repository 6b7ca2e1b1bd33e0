// Package rdap looks up registry ownership of IP addresses and aggregates
// the results into deduplicated ASN and network listings.
package rdap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/jhaxce/subdive/internal/version"
	"github.com/jhaxce/subdive/pkg/asn"
	"github.com/jhaxce/subdive/pkg/runner"
	"github.com/likexian/whois"
	"go4.org/netipx"
)

// NotAvailable marks a field the registries did not provide
const NotAvailable = "NA"

// ErrUnavailable is the failure reason when no ownership data was found
var ErrUnavailable = errors.New("ownership data unavailable")

// Network is the registry network block containing an address. CIDR may
// hold several comma-space separated prefixes.
type Network struct {
	CIDR string `json:"cidr"`
	Name string `json:"name"`
}

// Record is the ownership data for one address
type Record struct {
	Address        string  `json:"address"`
	ASN            string  `json:"asn"`
	ASNCIDR        string  `json:"asn_cidr"`
	ASNDescription string  `json:"asn_description"`
	Network        Network `json:"network"`
}

// Client performs RDAP lookups with a WHOIS fallback
type Client struct {
	baseURL string
	http    *http.Client
	asn     *asn.Client
	whois   func(addr string) (string, error)
}

// NewClient creates a client querying baseURL (an RDAP bootstrap service such
// as https://rdap.org). asnClient may be nil to skip ASN data.
func NewClient(baseURL string, timeout time.Duration, asnClient *asn.Client) *Client {
	whoisClient := whois.NewClient()
	whoisClient.SetTimeout(timeout)

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
		asn:   asnClient,
		whois: func(addr string) (string, error) { return whoisClient.Whois(addr) },
	}
}

// Lookup is the RDAP executor. Missing fields are set to NotAvailable; the
// lookup only fails when neither ASN nor network data could be found.
func (c *Client) Lookup(ctx context.Context, addr string) runner.Outcome[Record] {
	if _, err := netip.ParseAddr(addr); err != nil {
		return runner.Failure[Record](fmt.Errorf("%w: invalid address %q", ErrUnavailable, addr))
	}

	rec := Record{
		Address:        addr,
		ASN:            NotAvailable,
		ASNCIDR:        NotAvailable,
		ASNDescription: NotAvailable,
		Network:        Network{CIDR: NotAvailable, Name: NotAvailable},
	}

	var asnErr error
	if c.asn != nil {
		info, err := c.asn.Lookup(ctx, addr)
		if err == nil {
			rec.ASN = orNA(info.ASN)
			rec.ASNCIDR = orNA(info.Prefix)
			rec.ASNDescription = orNA(info.Description)
		}
		asnErr = err
	} else {
		asnErr = errors.New("ASN lookup disabled")
	}

	network, err := c.lookupNetwork(ctx, addr)
	if err != nil {
		whoisNet, whoisErr := c.lookupWhois(ctx, addr)
		if whoisErr != nil {
			if asnErr != nil {
				return runner.Failure[Record](fmt.Errorf("%w: %s: rdap: %v; whois: %v; asn: %v", ErrUnavailable, addr, err, whoisErr, asnErr))
			}
			return runner.Success(rec)
		}
		network = whoisNet
	}

	rec.Network = network
	return runner.Success(rec)
}

// ipNetwork is the subset of an RDAP "ip network" object we use
type ipNetwork struct {
	ObjectClassName string `json:"objectClassName"`
	Handle          string `json:"handle"`
	StartAddress    string `json:"startAddress"`
	EndAddress      string `json:"endAddress"`
	Name            string `json:"name"`
	CIDR0           []struct {
		V4Prefix string `json:"v4prefix"`
		V6Prefix string `json:"v6prefix"`
		Length   int    `json:"length"`
	} `json:"cidr0_cidrs"`
	ErrorCode int    `json:"errorCode"`
	Title     string `json:"title"`
}

// lookupNetwork queries <base>/ip/<addr>
func (c *Client) lookupNetwork(ctx context.Context, addr string) (Network, error) {
	url := fmt.Sprintf("%s/ip/%s", c.baseURL, addr)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return Network{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/rdap+json, application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("%s/%s", version.AppName, version.Version))

	resp, err := c.http.Do(req)
	if err != nil {
		return Network{}, fmt.Errorf("RDAP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Network{}, fmt.Errorf("RDAP rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		return Network{}, fmt.Errorf("RDAP returned status %d", resp.StatusCode)
	}

	var obj ipNetwork
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&obj); err != nil {
		return Network{}, fmt.Errorf("failed to decode RDAP response: %w", err)
	}
	if obj.ErrorCode != 0 {
		return Network{}, fmt.Errorf("RDAP error %d: %s", obj.ErrorCode, obj.Title)
	}

	return networkFromRDAP(obj)
}

func networkFromRDAP(obj ipNetwork) (Network, error) {
	var cidrs []string
	for _, c := range obj.CIDR0 {
		prefix := c.V4Prefix
		if prefix == "" {
			prefix = c.V6Prefix
		}
		if prefix == "" {
			continue
		}
		cidrs = append(cidrs, fmt.Sprintf("%s/%d", prefix, c.Length))
	}

	if len(cidrs) == 0 && obj.StartAddress != "" && obj.EndAddress != "" {
		prefixes, err := rangePrefixes(obj.StartAddress, obj.EndAddress)
		if err != nil {
			return Network{}, err
		}
		cidrs = prefixes
	}

	if len(cidrs) == 0 {
		return Network{}, fmt.Errorf("RDAP response carries no network range")
	}

	return Network{
		CIDR: strings.Join(cidrs, ", "),
		Name: orNA(obj.Name),
	}, nil
}

// rangePrefixes converts an inclusive address range to its minimal CIDR cover
func rangePrefixes(start, end string) ([]string, error) {
	from, err := netip.ParseAddr(strings.TrimSpace(start))
	if err != nil {
		return nil, fmt.Errorf("invalid range start %q: %w", start, err)
	}
	to, err := netip.ParseAddr(strings.TrimSpace(end))
	if err != nil {
		return nil, fmt.Errorf("invalid range end %q: %w", end, err)
	}

	r := netipx.IPRangeFrom(from, to)
	if !r.IsValid() {
		return nil, fmt.Errorf("invalid range %s - %s", start, end)
	}

	var out []string
	for _, p := range r.Prefixes() {
		out = append(out, p.String())
	}
	return out, nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return strings.TrimSpace(s)
}
