package rdap

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jhaxce/subdive/pkg/core"
)

// Aggregate collapses lookup records into deduplicated ASN and network
// listings. ASNs are ordered numerically, networks by CIDR. Records with
// unavailable or malformed fields contribute nothing for that part.
func Aggregate(records []Record) ([]core.ASNRecord, []core.NetworkRecord) {
	asns := make(map[core.ASNRecord]uint64)
	nets := make(map[core.NetworkRecord]struct{})

	for _, rec := range records {
		if available(rec.ASN) && available(rec.ASNCIDR) && available(rec.ASNDescription) {
			for _, id := range strings.Fields(rec.ASN) {
				id = strings.TrimPrefix(strings.ToUpper(id), "AS")
				n, err := strconv.ParseUint(id, 10, 32)
				if err != nil {
					continue
				}
				asns[core.ASNRecord{ASN: id, Prefix: rec.ASNCIDR, Description: rec.ASNDescription}] = n
			}
		}

		if available(rec.Network.CIDR) {
			for _, cidr := range strings.Split(rec.Network.CIDR, ", ") {
				cidr = strings.TrimSpace(cidr)
				if cidr == "" {
					continue
				}
				nets[core.NetworkRecord{CIDR: cidr, Name: rec.Network.Name}] = struct{}{}
			}
		}
	}

	asnList := make([]core.ASNRecord, 0, len(asns))
	for rec := range asns {
		asnList = append(asnList, rec)
	}
	sort.Slice(asnList, func(i, j int) bool {
		a, b := asnList[i], asnList[j]
		if asns[a] != asns[b] {
			return asns[a] < asns[b]
		}
		if a.Prefix != b.Prefix {
			return a.Prefix < b.Prefix
		}
		return a.Description < b.Description
	})

	netList := make([]core.NetworkRecord, 0, len(nets))
	for rec := range nets {
		netList = append(netList, rec)
	}
	sort.Slice(netList, func(i, j int) bool {
		if netList[i].CIDR != netList[j].CIDR {
			return netList[i].CIDR < netList[j].CIDR
		}
		return netList[i].Name < netList[j].Name
	})

	return asnList, netList
}

func available(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != NotAvailable
}
