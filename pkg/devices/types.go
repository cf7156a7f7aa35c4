package devices

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Id is the immutable identifier of a device. A sensor and the actuator it
// drives share the same Id.
type Id string

func (id Id) String() string {
	return string(id)
}

type Role uint32

const (
	Sensor Role = iota
	Actuator
)

var Roles = []Role{Sensor, Actuator}

var roleNames = []string{"sensor", "actuator"}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("role(%d)", uint32(r))
}

// Group is the DNS-SD group devices of this role announce themselves in.
func (r Role) Group() string {
	return "_" + r.String()
}

// Service is the DNS-SD service type browsed for this role, e.g. "_sensor._tcp".
func (r Role) Service() string {
	return r.Group() + "._tcp"
}

func ParseRole(s string) (Role, error) {
	for i, n := range roleNames {
		if strings.EqualFold(s, n) {
			return Role(i), nil
		}
	}
	return Sensor, fmt.Errorf("unknown device role: %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

func (r Role) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

// Address is where a device can be reached.
type Address struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// NewAddress strips the trailing dots mDNS responses leave on host names.
func NewAddress(host string, port int) Address {
	return Address{
		Host: strings.TrimRight(host, "."),
		Port: port,
	}
}

func ParseAddress(s string) (Address, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, err
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return Address{}, fmt.Errorf("invalid port in address %q", s)
	}
	return NewAddress(host, p), nil
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Record is one resolved DNS-SD service instance.
type Record struct {
	FullName string   `json:"fullname"` // e.g. "temperature_abc._sensor._tcp.local."
	HostName string   `json:"hostname"`
	Port     int      `json:"port"`
	Text     []string `json:"txt,omitempty"`
	IPs      []net.IP `json:"ips,omitempty"`
}

func (r Record) String() string {
	out, err := json.Marshal(r)
	if err != nil {
		return r.FullName
	}
	return string(out)
}
