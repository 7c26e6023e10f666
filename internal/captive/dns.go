// Package captive runs the provisioning portal responders: a DNS server
// that resolves every name to the portal address, and the status page
// served on every HTTP path.
package captive

import (
	"fmt"
	"net"

	"github.com/miekg/dns"
)

// DefaultTTL is the TTL of every answer, in seconds.
const DefaultTTL = 60

// Responder answers every A query with a fixed address.
type Responder struct {
	ip  net.IP
	ttl uint32
}

// NewResponder creates a Responder for the given IPv4 address.
func NewResponder(ip net.IP) *Responder {
	return &Responder{ip: ip.To4(), ttl: DefaultTTL}
}

// ServeDNS implements dns.Handler. A and ANY questions get the portal
// address; other types get an empty NOERROR answer.
func (r *Responder) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(req)
	m.Authoritative = true

	for _, q := range req.Question {
		if q.Qclass != dns.ClassINET {
			continue
		}
		if q.Qtype != dns.TypeA && q.Qtype != dns.TypeANY {
			continue
		}
		m.Answer = append(m.Answer, &dns.A{
			Hdr: dns.RR_Header{
				Name:   q.Name,
				Rrtype: dns.TypeA,
				Class:  dns.ClassINET,
				Ttl:    r.ttl,
			},
			A: r.ip,
		})
	}

	w.WriteMsg(m)
}

// serveDNS starts a DNS server on an already bound packet conn and waits
// until it is accepting queries.
func serveDNS(pc net.PacketConn, h dns.Handler) (*dns.Server, error) {
	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		Handler:           h,
		NotifyStartedFunc: func() { close(started) },
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ActivateAndServe()
	}()

	select {
	case <-started:
		return srv, nil
	case err := <-errc:
		return nil, fmt.Errorf("dns server: %w", err)
	}
}
