package webhook

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	verrors "github.com/vibecoding/vibemcp/internal/errors"
)

// blockedHostnames are rejected outright, independent of what they
// resolve to.
var blockedHostnames = map[string]bool{
	"localhost":                true,
	"127.0.0.1":                true,
	"0.0.0.0":                  true,
	"::1":                      true,
	"metadata.google.internal": true,
	"metadata.goog":            true,
	"169.254.169.254":          true,
}

// blockedNetworks are the private and special-purpose ranges a webhook
// target must not resolve into.
var blockedNetworks = []*net.IPNet{
	mustCIDR("127.0.0.0/8"),    // loopback
	mustCIDR("10.0.0.0/8"),     // private class A
	mustCIDR("172.16.0.0/12"),  // private class B
	mustCIDR("192.168.0.0/16"), // private class C
	mustCIDR("169.254.0.0/16"), // link-local
	mustCIDR("::1/128"),        // IPv6 loopback
	mustCIDR("fc00::/7"),       // IPv6 unique local
	mustCIDR("fe80::/10"),      // IPv6 link-local
}

func mustCIDR(s string) *net.IPNet {
	_, network, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return network
}

// lookupIP resolves hostnames during validation. Tests swap it to
// simulate DNS answers without touching the network.
var lookupIP = net.LookupIP

// ValidateURL rejects webhook targets that could reach internal or
// private networks. The hostname is checked by name, as a literal IP,
// and by resolving it; a hostname that cannot be resolved is allowed,
// since it may simply be unreachable right now.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return verrors.ValidationError(fmt.Sprintf("invalid URL: %s", raw), err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return verrors.UnsafeURLError("URL must use http or https scheme", nil)
	}

	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return verrors.UnsafeURLError("URL must have a valid hostname", nil)
	}
	if blockedHostnames[hostname] {
		return verrors.UnsafeURLError(fmt.Sprintf("blocked hostname: %s", hostname), nil)
	}

	if ip := net.ParseIP(hostname); ip != nil {
		return checkIP(ip)
	}

	ips, err := lookupIP(hostname)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if err := checkIP(ip); err != nil {
			return err
		}
	}
	return nil
}

func checkIP(ip net.IP) error {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return verrors.UnsafeURLError(
				fmt.Sprintf("URL resolves to blocked IP range: %s", ip), nil)
		}
	}
	return nil
}
