// Package resolvertest provides a local authoritative DNS server for tests
package resolvertest

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
)

// Server answers from an in-memory record set. Owner names starting with
// "*." answer for every name below them that has no exact records.
type Server struct {
	Addr string

	mu      sync.Mutex
	records map[string][]dns.RR
	failing map[string]bool
	delays  map[string]time.Duration
	queries map[string]int
	server  *dns.Server
}

// NewServer starts a UDP server on 127.0.0.1 serving the given zone lines
// (e.g. "host.example.com. 60 IN A 93.184.216.34"). It is shut down when the
// test ends.
func NewServer(t testing.TB, zone ...string) *Server {
	t.Helper()

	s := &Server{
		records: make(map[string][]dns.RR),
		failing: make(map[string]bool),
		delays:  make(map[string]time.Duration),
		queries: make(map[string]int),
	}
	for _, line := range zone {
		s.Add(t, line)
	}

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	started := make(chan struct{})
	s.server = &dns.Server{
		PacketConn:        pc,
		Handler:           dns.HandlerFunc(s.handle),
		NotifyStartedFunc: func() { close(started) },
	}
	go s.server.ActivateAndServe()
	<-started

	s.Addr = pc.LocalAddr().String()
	t.Cleanup(func() { s.server.Shutdown() })
	return s
}

// Add parses and serves one more record
func (s *Server) Add(t testing.TB, line string) {
	t.Helper()

	rr, err := dns.NewRR(line)
	if err != nil {
		t.Fatalf("bad record %q: %v", line, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	name := strings.ToLower(rr.Header().Name)
	s.records[name] = append(s.records[name], rr)
}

// Fail makes queries for name answer SERVFAIL
func (s *Server) Fail(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[dns.Fqdn(strings.ToLower(name))] = true
}

// Delay holds every answer for name back by d
func (s *Server) Delay(name string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[dns.Fqdn(strings.ToLower(name))] = d
}

// Queries returns how many questions were received for name
func (s *Server) Queries(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[dns.Fqdn(strings.ToLower(name))]
}

func (s *Server) handle(w dns.ResponseWriter, req *dns.Msg) {
	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Authoritative = true

	if len(req.Question) != 1 {
		resp.Rcode = dns.RcodeFormatError
		w.WriteMsg(resp)
		return
	}

	q := req.Question[0]
	name := strings.ToLower(q.Name)

	s.mu.Lock()
	s.queries[name]++
	failing := s.failing[name]
	delay := s.delays[name]
	rrs, exists := s.lookup(name)
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	switch {
	case failing:
		resp.Rcode = dns.RcodeServerFailure
	case !exists:
		resp.Rcode = dns.RcodeNameError
	default:
		for _, rr := range rrs {
			if rr.Header().Rrtype != q.Qtype {
				continue
			}
			answer := dns.Copy(rr)
			answer.Header().Name = q.Name
			resp.Answer = append(resp.Answer, answer)
		}
	}

	w.WriteMsg(resp)
}

// lookup finds exact records, then the closest enclosing wildcard
func (s *Server) lookup(name string) ([]dns.RR, bool) {
	if rrs, ok := s.records[name]; ok {
		return rrs, true
	}

	labels := dns.SplitDomainName(name)
	for i := 1; i < len(labels); i++ {
		wild := "*." + strings.Join(labels[i:], ".") + "."
		if rrs, ok := s.records[wild]; ok {
			return rrs, true
		}
	}
	return nil, false
}
