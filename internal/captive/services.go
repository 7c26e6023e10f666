package captive

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// Services owns the DNS and HTTP listeners of the portal.
type Services struct {
	dnsAddr  string
	httpAddr string
	handler  http.Handler

	mu        sync.Mutex
	dns       *dns.Server
	http      *http.Server
	boundDNS  string
	boundHTTP string
}

// NewServices creates portal services that will listen on dnsAddr (UDP)
// and httpAddr (TCP) and serve handler for every HTTP request.
func NewServices(dnsAddr, httpAddr string, handler http.Handler) *Services {
	return &Services{dnsAddr: dnsAddr, httpAddr: httpAddr, handler: handler}
}

// Start binds both listeners, so bind failures are returned, then serves
// in the background.
func (s *Services) Start(addr net.IP) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dns != nil || s.http != nil {
		return errors.New("captive: already started")
	}

	pc, err := net.ListenPacket("udp", s.dnsAddr)
	if err != nil {
		return fmt.Errorf("listen dns %s: %w", s.dnsAddr, err)
	}
	ln, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		pc.Close()
		return fmt.Errorf("listen http %s: %w", s.httpAddr, err)
	}

	dnsSrv, err := serveDNS(pc, NewResponder(addr))
	if err != nil {
		ln.Close()
		pc.Close()
		return err
	}
	s.dns = dnsSrv

	s.http = &http.Server{Handler: s.handler}
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("portal http server error: %v", err)
		}
	}(s.http)

	s.boundDNS = pc.LocalAddr().String()
	s.boundHTTP = ln.Addr().String()
	log.Printf("portal listening: dns=%s http=%s address=%s", pc.LocalAddr(), ln.Addr(), addr)
	return nil
}

// Addrs returns the bound DNS and HTTP addresses while started.
func (s *Services) Addrs() (dnsAddr, httpAddr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundDNS, s.boundHTTP
}

// Stop shuts down whatever was started.
func (s *Services) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.dns != nil {
		if err := s.dns.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("stop dns: %w", err))
		}
		s.dns = nil
	}
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop http: %w", err))
		}
		s.http = nil
	}
	s.boundDNS, s.boundHTTP = "", ""

	if len(errs) > 0 {
		return fmt.Errorf("stop errors: %v", errs)
	}
	return nil
}
