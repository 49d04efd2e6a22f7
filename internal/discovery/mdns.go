// Package discovery advertises a responder on the local network over mDNS
// and lets an originator find one when no address is given.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/1ureka/owd/internal/util"
)

const (
	// ServiceType is the DNS-SD service advertised by responders.
	ServiceType = "_owd._tcp"
	domain      = "local"

	queryTimeout = time.Second // per browse round
)

// ErrNotFound is returned by Lookup when ctx ends before any responder answers.
var ErrNotFound = errors.New("no responder found")

// Service describes an advertised responder.
type Service struct {
	Name      string
	Host      string
	Port      int
	Transport string // value of the transport= TXT record, may be empty
}

// Addr returns host:port.
func (s Service) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Advertiser is a running mDNS responder.
type Advertiser struct {
	server *mdns.Server
}

// Shutdown stops answering queries.
func (a *Advertiser) Shutdown() error {
	return a.server.Shutdown()
}

// Advertise announces a responder listening on port using transport.
func Advertise(name string, port int, transport string) (*Advertiser, error) {
	ips, err := localIPs()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IPs: %w", err)
	}

	zone, err := newZone(name, "", port, ips, transport)
	if err != nil {
		return nil, err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return nil, fmt.Errorf("failed to create mdns server: %w", err)
	}

	util.LogInfo("advertising %s on port %d (%s, transport=%s)", name, port, ServiceType, transport)
	return &Advertiser{server: server}, nil
}

// newZone builds the service record. An empty host uses the machine's
// hostname; otherwise host must be fully qualified.
func newZone(name, host string, port int, ips []net.IP, transport string) (*mdns.MDNSService, error) {
	if len(ips) == 0 {
		ips = nil // let mdns resolve the hostname
	}
	zone, err := mdns.NewMDNSService(name, ServiceType, "", host, port, ips, []string{"transport=" + transport})
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return zone, nil
}

// Lookup browses until a responder answers or ctx is done.
func Lookup(ctx context.Context) (*Service, error) {
	util.LogInfo("browsing for %s responders...", ServiceType)

	for {
		if svc := query(ctx); svc != nil {
			util.LogInfo("discovered %s at %s", svc.Name, svc.Addr())
			return svc, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrNotFound, ctx.Err())
		default:
		}
	}
}

// query runs one browse round and returns the first usable entry.
func query(ctx context.Context) *Service {
	entries := make(chan *mdns.ServiceEntry, 16)
	found := make(chan *Service, 1)

	go func() {
		defer close(found)
		for entry := range entries {
			if svc := fromEntry(entry); svc != nil {
				found <- svc
				break
			}
		}
		for range entries {
		}
	}()

	timeout := queryTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, max(time.Until(deadline), time.Millisecond))
	}

	params := &mdns.QueryParam{
		Service: ServiceType,
		Domain:  domain,
		Timeout: timeout,
		Entries: entries,
	}
	if err := mdns.Query(params); err != nil {
		util.LogDebug("mdns query failed: %v", err)
	}
	close(entries)

	return <-found
}

func fromEntry(entry *mdns.ServiceEntry) *Service {
	if entry == nil || entry.Port == 0 {
		return nil
	}

	var host string
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	default:
		host = strings.TrimSuffix(entry.Host, ".")
	}
	if host == "" {
		return nil
	}

	return &Service{
		Name:      entry.Name,
		Host:      host,
		Port:      entry.Port,
		Transport: parseTXT(entry.InfoFields)["transport"],
	}
}

// parseTXT splits key=value TXT fields. Fields without '=' map to "".
func parseTXT(fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, _ := strings.Cut(f, "=")
		out[strings.ToLower(k)] = v
	}
	return out
}

// localIPs returns the IPv4 addresses of every non-loopback interface that is up.
func localIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP)
			}
		}
	}

	return ips, nil
}
