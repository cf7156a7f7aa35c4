package mynet

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/asnowfix/homecontrol/internal/global"
	"github.com/asnowfix/homecontrol/pkg/devices"

	"github.com/go-logr/logr"
	"github.com/grandcat/zeroconf"
	mdns "github.com/pion/mdns/v2"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const MDNS_LOOKUP_DEFAULT_TIMEOUT time.Duration = 7 * time.Second

const DOMAIN = "local."

// Publication is a running DNS-SD announcement.
type Publication interface {
	Shutdown()
}

type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]net.IP, error)
	BrowseService(ctx context.Context, service, domain string, records chan<- devices.Record) error
	PublishService(ctx context.Context, instance, service, domain string, port int, txt []string) (Publication, error)
}

var theResolver *resolver

var theResolverLock sync.Mutex

// MyResolver returns the process-wide resolver.
func MyResolver(log logr.Logger, mdnsTimeout time.Duration) Resolver {
	theResolverLock.Lock()
	defer theResolverLock.Unlock()

	if theResolver == nil {
		if mdnsTimeout <= 0 {
			mdnsTimeout = MDNS_LOOKUP_DEFAULT_TIMEOUT
		}
		theResolver = &resolver{
			log:         log,
			mdnsTimeout: mdnsTimeout,
		}
	}
	return theResolver
}

type resolver struct {
	sync.Mutex
	log         logr.Logger
	mdns        *mdns.Conn
	mdnsTimeout time.Duration
	ifacesOnce  sync.Once
	ifaces      []net.Interface
}

// interfaces restricts multicast traffic to the gateway-facing interface,
// or to every interface when it cannot be found.
func (r *resolver) interfaces() []net.Interface {
	r.ifacesOnce.Do(func() {
		iface, _, err := MainInterface(r.log)
		if err != nil {
			r.log.Info("Using all multicast interfaces", "reason", err.Error())
			return
		}
		r.ifaces = []net.Interface{*iface}
	})
	return r.ifaces
}

func (r *resolver) startMdns(ctx context.Context) (*mdns.Conn, error) {
	r.Lock()
	defer r.Unlock()

	if r.mdns != nil {
		return r.mdns, nil
	}

	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		r.log.Error(err, "Unable to resolve mDNS IPv4 UDP address", "address", mdns.DefaultAddressIPv4)
		return nil, err
	}
	addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6)
	if err != nil {
		r.log.Error(err, "Unable to resolve mDNS IPv6 UDP address", "address", mdns.DefaultAddressIPv6)
		return nil, err
	}
	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		r.log.Error(err, "Unable to listen on mDNS IPv4 UDP address", "address", addr4)
		return nil, err
	}
	l6, err := net.ListenUDP("udp6", addr6)
	if err != nil {
		l4.Close()
		r.log.Error(err, "Unable to listen on mDNS IPv6 UDP address", "address", addr6)
		return nil, err
	}

	conn, err := mdns.Server(ipv4.NewPacketConn(l4), ipv6.NewPacketConn(l6), &mdns.Config{})
	if err != nil {
		l4.Close()
		l6.Close()
		r.log.Error(err, "Unable to start mDNS querier")
		return nil, err
	}
	r.mdns = conn
	r.log.Info("Started mDNS querier")

	go func(ctx context.Context) {
		<-global.ProcessContext(ctx).Done()
		r.log.Info("Process terminating, closing mDNS querier")
		r.Lock()
		defer r.Unlock()
		r.mdns.Close()
		r.mdns = nil
		l4.Close()
		l6.Close()
	}(ctx)

	return conn, nil
}

// LookupHost uses the system resolver first, then falls back to a direct
// mDNS query for "<host>.local".
func (r *resolver) LookupHost(ctx context.Context, host string) ([]net.IP, error) {
	host = strings.TrimRight(host, ".")
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err == nil {
		ips := make([]net.IP, 0, len(addrs))
		for _, addr := range addrs {
			if ip := net.ParseIP(addr); ip != nil {
				ips = append(ips, ip)
			}
		}
		return ips, nil
	}

	localHost := host
	if !strings.HasSuffix(localHost, ".local") {
		localHost += ".local"
	}

	conn, err := r.startMdns(ctx)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, r.mdnsTimeout)
	defer cancel()

	_, addr, err := conn.QueryAddr(queryCtx, localHost)
	if err != nil {
		r.log.Error(err, "Failed to query mDNS", "host", localHost)
		return nil, err
	}
	return []net.IP{addr.AsSlice()}, nil
}

// BrowseService streams resolved instances of service until ctx is done.
// records is closed when browsing stops, whatever the reason.
func (r *resolver) BrowseService(ctx context.Context, service, domain string, records chan<- devices.Record) error {
	opts := []zeroconf.ClientOption{zeroconf.SelectIPTraffic(zeroconf.IPv4AndIPv6)}
	if ifaces := r.interfaces(); len(ifaces) > 0 {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	zc, err := zeroconf.NewResolver(opts...)
	if err != nil {
		return fmt.Errorf("initializing zeroconf resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry, 8)
	if err := zc.Browse(ctx, service, domain, entries); err != nil {
		return fmt.Errorf("browsing %s.%s: %w", service, domain, err)
	}
	r.log.V(1).Info("Browsing", "service", service, "domain", domain)

	go func(ctx context.Context) {
		defer close(records)
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				select {
				case records <- recordOf(entry):
				case <-ctx.Done():
					return
				}
			}
		}
	}(ctx)

	return nil
}

func recordOf(entry *zeroconf.ServiceEntry) devices.Record {
	ips := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	ips = append(ips, entry.AddrIPv4...)
	ips = append(ips, entry.AddrIPv6...)
	return devices.Record{
		FullName: entry.ServiceInstanceName(),
		HostName: entry.HostName,
		Port:     entry.Port,
		Text:     entry.Text,
		IPs:      ips,
	}
}

func (r *resolver) PublishService(ctx context.Context, instance, service, domain string, port int, txt []string) (Publication, error) {
	srv, err := zeroconf.Register(instance, service, domain, port, txt, r.interfaces())
	if err != nil {
		return nil, err
	}
	r.log.Info("Published over mDNS", "instance", instance, "service", service, "domain", domain, "port", port)
	return srv, nil
}
