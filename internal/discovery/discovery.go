// Package discovery advertises the HTTP command surface over mDNS so game
// master consoles can find the prop without a fixed address.
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

const (
	// ServiceType is the DNS-SD service type for the command surface.
	ServiceType = "_http._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63

	// maxTXTLen is the limit for a single TXT string.
	maxTXTLen = 255
)

// Info describes what is advertised.
type Info struct {
	Instance string
	Port     int
	Variant  string
	Paths    []string
}

// Advertiser publishes a single mDNS service record.
type Advertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an idle advertiser.
func NewAdvertiser() *Advertiser {
	return &Advertiser{}
}

// Start registers the service, replacing any earlier registration.
func (a *Advertiser) Start(info Info) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	instance := info.Instance
	if len(instance) > MaxInstanceNameLen {
		instance = instance[:MaxInstanceNameLen]
	}

	server, err := zeroconf.Register(
		instance,
		ServiceType,
		Domain,
		info.Port,
		EncodeTXT(info),
		nil, // all interfaces
	)
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceType, err)
	}

	a.server = server
	return nil
}

// Stop withdraws the service. Safe to call when not started.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// EncodeTXT builds the TXT strings for info. Paths that would overflow a
// single TXT string are dropped from the list.
func EncodeTXT(info Info) []string {
	txt := []string{"txtvers=1", "variant=" + info.Variant}

	paths := "paths="
	for i, p := range info.Paths {
		next := p
		if i > 0 {
			next = "," + p
		}
		if len(paths)+len(next) > maxTXTLen {
			break
		}
		paths += next
	}
	return append(txt, paths)
}

// PortFromAddr extracts the TCP port from a listen address like ":80" or
// "0.0.0.0:8080".
func PortFromAddr(addr string) (int, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(port))
	if err != nil || n <= 0 || n > 65535 {
		return 0, fmt.Errorf("parse listen address %q: bad port %q", addr, port)
	}
	return n, nil
}
