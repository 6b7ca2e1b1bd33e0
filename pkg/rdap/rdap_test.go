package rdap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jhaxce/subdive/pkg/asn"
	"github.com/jhaxce/subdive/pkg/resolver"
	"github.com/jhaxce/subdive/pkg/resolver/resolvertest"
)

const arinWhois = `
NetRange:       198.51.100.0 - 198.51.100.255
CIDR:           198.51.100.0/24
NetName:        TEST-NET-2
NetHandle:      NET-198-51-100-0-1
`

func newTestClient(t *testing.T) *Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rdap+json")
		switch r.URL.Path {
		case "/ip/93.184.216.34":
			fmt.Fprint(w, `{"objectClassName":"ip network","name":"EDGECAST-NETBLK-03",
				"startAddress":"93.184.216.0","endAddress":"93.184.216.255",
				"cidr0_cidrs":[{"v4prefix":"93.184.216.0","length":24}]}`)
		case "/ip/192.0.2.5":
			fmt.Fprint(w, `{"objectClassName":"ip network","name":"TEST-NET-1",
				"startAddress":"192.0.2.0","endAddress":"192.0.3.255"}`)
		case "/ip/203.0.113.9":
			fmt.Fprint(w, `{"objectClassName":"ip network", "name": `) // truncated payload
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"errorCode":404,"title":"Not Found"}`)
		}
	}))
	t.Cleanup(server.Close)

	dnsServer := resolvertest.NewServer(t,
		`34.216.184.93.origin.asn.cymru.com. 60 IN TXT "15133 | 93.184.216.0/24 | EU | ripencc | 2008-06-02"`,
		`AS15133.asn.cymru.com. 60 IN TXT "15133 | US | arin | 2000-03-30 | EDGECAST, US"`,
	)

	c := NewClient(server.URL+"/", 2*time.Second, asn.NewClient(resolver.NewDirect([]string{dnsServer.Addr}, 2*time.Second)))
	c.whois = func(addr string) (string, error) {
		if addr == "198.51.100.7" {
			return arinWhois, nil
		}
		return "", errors.New("connection refused")
	}
	return c
}

func TestClient_Lookup(t *testing.T) {
	c := newTestClient(t)

	tests := []struct {
		name    string
		addr    string
		want    Record
		wantErr bool
	}{
		{
			name: "RDAP with cidr0 and ASN",
			addr: "93.184.216.34",
			want: Record{
				Address: "93.184.216.34", ASN: "15133", ASNCIDR: "93.184.216.0/24", ASNDescription: "EDGECAST, US",
				Network: Network{CIDR: "93.184.216.0/24", Name: "EDGECAST-NETBLK-03"},
			},
		},
		{
			name: "RDAP range without cidr0",
			addr: "192.0.2.5",
			want: Record{
				Address: "192.0.2.5", ASN: NotAvailable, ASNCIDR: NotAvailable, ASNDescription: NotAvailable,
				Network: Network{CIDR: "192.0.2.0/23", Name: "TEST-NET-1"},
			},
		},
		{
			name: "WHOIS fallback",
			addr: "198.51.100.7",
			want: Record{
				Address: "198.51.100.7", ASN: NotAvailable, ASNCIDR: NotAvailable, ASNDescription: NotAvailable,
				Network: Network{CIDR: "198.51.100.0/24", Name: "TEST-NET-2"},
			},
		},
		{name: "Malformed payload and no fallback", addr: "203.0.113.9", wantErr: true},
		{name: "Nothing known", addr: "192.0.2.200", wantErr: true},
		{name: "Invalid address", addr: "nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Lookup(context.Background(), tt.addr)
			if tt.wantErr {
				if got.OK() {
					t.Fatalf("Lookup(%s) = %+v, want failure", tt.addr, got.Value)
				}
				if !errors.Is(got.Err, ErrUnavailable) {
					t.Errorf("Lookup(%s) error = %v, want ErrUnavailable", tt.addr, got.Err)
				}
				return
			}
			if !got.OK() {
				t.Fatalf("Lookup(%s) error = %v", tt.addr, got.Err)
			}
			if got.Value != tt.want {
				t.Errorf("Lookup(%s) = %+v, want %+v", tt.addr, got.Value, tt.want)
			}
		})
	}
}

func TestParseWhoisNetwork(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Network
		wantErr bool
	}{
		{name: "ARIN", raw: arinWhois, want: Network{CIDR: "198.51.100.0/24", Name: "TEST-NET-2"}},
		{
			name: "RIPE inetnum range",
			raw:  "inetnum:        192.0.2.0 - 192.0.2.127\r\nnetname:        EXAMPLE-NET\r\n",
			want: Network{CIDR: "192.0.2.0/25", Name: "EXAMPLE-NET"},
		},
		{
			name: "Multiple CIDRs",
			raw:  "CIDR: 192.0.2.0/24, 198.51.100.0/24\n",
			want: Network{CIDR: "192.0.2.0/24, 198.51.100.0/24", Name: NotAvailable},
		},
		{name: "No range", raw: "% no entries found\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWhoisNetwork(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseWhoisNetwork() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseWhoisNetwork() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseDomainWhois(t *testing.T) {
	raw := strings.Join([]string{
		"Domain Name: EXAMPLE.COM",
		"Registry Domain ID: 2336799_DOMAIN_COM-VRSN",
		"Registrar WHOIS Server: whois.iana.org",
		"Updated Date: 2024-08-14T07:01:34Z",
		"Creation Date: 1995-08-14T04:00:00Z",
		"Registry Expiry Date: 2025-08-13T04:00:00Z",
		"Registrar: RESERVED-Internet Assigned Numbers Authority",
		"Registrar IANA ID: 376",
		"Domain Status: clientDeleteProhibited https://icann.org/epp#clientDeleteProhibited",
		"Name Server: A.IANA-SERVERS.NET",
		"Name Server: B.IANA-SERVERS.NET",
		"DNSSEC: signedDelegation",
	}, "\n")

	info, err := parseDomainWhois("example.com", raw)
	if err != nil {
		t.Fatalf("parseDomainWhois() error = %v", err)
	}
	if !strings.Contains(info.Registrar, "Internet Assigned Numbers Authority") {
		t.Errorf("Registrar = %q", info.Registrar)
	}
	if len(info.NameServers) != 2 || !strings.EqualFold(info.NameServers[0], "a.iana-servers.net") {
		t.Errorf("NameServers = %v", info.NameServers)
	}
	if info.CreatedDate == "" {
		t.Error("CreatedDate is empty")
	}
}

func TestRangePrefixes(t *testing.T) {
	got, err := rangePrefixes("10.0.0.0", "10.0.2.255")
	if err != nil {
		t.Fatalf("rangePrefixes() error = %v", err)
	}
	want := "10.0.0.0/23 10.0.2.0/24"
	if strings.Join(got, " ") != want {
		t.Errorf("rangePrefixes() = %v, want %s", got, want)
	}

	if _, err := rangePrefixes("10.0.0.9", "10.0.0.1"); err == nil {
		t.Error("rangePrefixes() expected error for reversed range")
	}
}
