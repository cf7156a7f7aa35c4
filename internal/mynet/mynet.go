package mynet

import (
	"fmt"
	"net"

	"github.com/go-logr/logr"
	"github.com/jackpal/gateway"
)

// MainInterface returns the interface (and its IPv4 address) that sits on
// the same network as the default gateway: this is where devices announce
// themselves.
func MainInterface(log logr.Logger) (*net.Interface, *net.IP, error) {
	gw, err := gateway.DiscoverGateway()
	if err != nil {
		log.Error(err, "Unable to find network gateway")
		return nil, nil, err
	}
	log.V(1).Info("Found network gateway", "ip", gw.String())

	ifaces, err := net.Interfaces()
	if err != nil {
		log.Error(err, "Unable to list network interfaces")
		return nil, nil, err
	}
	for _, i := range ifaces {
		if i.Flags&net.FlagUp == 0 || i.Flags&net.FlagMulticast == 0 {
			continue
		}
		addrs, err := i.Addrs()
		if err != nil {
			log.V(1).Info("Skipping interface without addresses", "iface", i.Name, "error", err)
			continue
		}
		for _, a := range addrs {
			ip, nw, err := net.ParseCIDR(a.String())
			if err != nil {
				continue
			}
			if ip.To4() != nil && nw.Contains(gw) {
				log.V(1).Info("Selected interface", "iface", i.Name, "ip", ip.String())
				iface := i
				return &iface, &ip, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("no interface on the same network as gateway %v", gw)
}
