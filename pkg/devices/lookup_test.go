package devices

import (
	"errors"
	"net"
	"testing"
)

func TestParseId(t *testing.T) {
	cases := []struct {
		fullname string
		id       Id
	}{
		{"temperature_abc._sensor._tcp.local.", "abc"},
		{"hello_world.how_are.you", "world"},
		{"a_b_c._actuator._tcp.local.", "b"},
		{"temperature_3f2b8c1e-8d5a-4c57-9d4e-0a1b2c3d4e5f", "3f2b8c1e-8d5a-4c57-9d4e-0a1b2c3d4e5f"},
	}
	for _, c := range cases {
		id, err := ParseId(c.fullname)
		if err != nil {
			t.Errorf("ParseId(%q): unexpected error: %v", c.fullname, err)
			continue
		}
		if id != c.id {
			t.Errorf("ParseId(%q) = %q, want %q", c.fullname, id, c.id)
		}
	}
}

func TestParseIdMalformed(t *testing.T) {
	for _, fullname := range []string{"", "nounderscore._sensor._tcp.local.", "trailing_._sensor._tcp.local."} {
		_, err := ParseId(fullname)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("ParseId(%q): expected *ParseError, got %v", fullname, err)
		}
	}
}

func TestInstanceNameRoundTrip(t *testing.T) {
	name := InstanceName("temperature", "abc") + "._sensor._tcp.local."
	id, err := ParseId(name)
	if err != nil || id != "abc" {
		t.Fatalf("ParseId(%q) = %q, %v", name, id, err)
	}
}

func TestNewAddressStripsTrailingDots(t *testing.T) {
	a := NewAddress("sensor-1.local.", 9001)
	if a.Host != "sensor-1.local" {
		t.Errorf("host = %q", a.Host)
	}
	if a.String() != "sensor-1.local:9001" {
		t.Errorf("address = %q", a.String())
	}
}

func TestAddressOf(t *testing.T) {
	r := Record{
		FullName: "temperature_abc._sensor._tcp.local.",
		HostName: "host-abc.local.",
		Port:     9001,
		IPs:      []net.IP{net.ParseIP("fe80::1"), net.ParseIP("169.254.1.1"), net.ParseIP("192.168.1.12")},
	}
	a, err := AddressOf(r)
	if err != nil {
		t.Fatal(err)
	}
	if a != (Address{Host: "192.168.1.12", Port: 9001}) {
		t.Errorf("got %v", a)
	}

	r.IPs = nil
	a, err = AddressOf(r)
	if err != nil {
		t.Fatal(err)
	}
	if a != (Address{Host: "host-abc.local", Port: 9001}) {
		t.Errorf("got %v", a)
	}

	r.Port = 0
	if _, err := AddressOf(r); err == nil {
		t.Error("expected error for zero port")
	}
}

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("127.0.0.1:9002")
	if err != nil {
		t.Fatal(err)
	}
	if a.Host != "127.0.0.1" || a.Port != 9002 {
		t.Errorf("got %v", a)
	}
	if _, err := ParseAddress("127.0.0.1"); err == nil {
		t.Error("expected error without port")
	}
	if _, err := ParseAddress("127.0.0.1:0"); err == nil {
		t.Error("expected error for port 0")
	}
}

func TestRoleService(t *testing.T) {
	if Sensor.Service() != "_sensor._tcp" || Actuator.Service() != "_actuator._tcp" {
		t.Errorf("services: %s %s", Sensor.Service(), Actuator.Service())
	}
	r, err := ParseRole("Actuator")
	if err != nil || r != Actuator {
		t.Errorf("ParseRole: %v %v", r, err)
	}
}
