package devices

import (
	"fmt"
	"strings"
)

// ParseError reports an advertisement that does not follow the
// "<kind>_<id>.<service>.<domain>" naming convention.
type ParseError struct {
	FullName string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse device id from %q: %s", e.FullName, e.Reason)
}

// ParseId extracts the device Id from a service instance name:
// "temperature_abc._sensor._tcp.local." => "abc".
func ParseId(fullname string) (Id, error) {
	instance, _, _ := strings.Cut(fullname, ".")
	tokens := strings.Split(instance, "_")
	if len(tokens) < 2 {
		return "", &ParseError{FullName: fullname, Reason: "no '_' in instance name"}
	}
	if len(tokens[1]) == 0 {
		return "", &ParseError{FullName: fullname, Reason: "empty id token"}
	}
	return Id(tokens[1]), nil
}

// InstanceName is the inverse of ParseId, used by devices when they announce themselves.
func InstanceName(kind string, id Id) string {
	return fmt.Sprintf("%s_%s", kind, id)
}

// AddressOf derives the Address of a resolved record, preferring a routable
// IPv4 address over the advertised host name.
func AddressOf(r Record) (Address, error) {
	if r.Port <= 0 || r.Port > 65535 {
		return Address{}, &ParseError{FullName: r.FullName, Reason: fmt.Sprintf("invalid port %d", r.Port)}
	}
	for _, ip := range r.IPs {
		if ip.To4() != nil && !ip.IsLinkLocalUnicast() && !ip.IsUnspecified() {
			return NewAddress(ip.String(), r.Port), nil
		}
	}
	host := strings.TrimRight(r.HostName, ".")
	if len(host) == 0 {
		return Address{}, &ParseError{FullName: r.FullName, Reason: "no host name nor IP address"}
	}
	return NewAddress(host, r.Port), nil
}
