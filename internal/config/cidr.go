package config

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// CIDRSubnet returns the netnum-th subnet of length prefixLen inside prefix,
// e.g. CIDRSubnet("10.0.0.0/16", 24, 2) = "10.0.2.0/24".
// Only IPv4 is supported.
func CIDRSubnet(prefix string, prefixLen, netnum int) (string, error) {
	parent, err := parseIPv4Prefix(prefix)
	if err != nil {
		return "", err
	}
	if prefixLen < parent.Bits() || prefixLen > 32 {
		return "", fmt.Errorf("subnet length /%d does not fit in %s", prefixLen, prefix)
	}

	maxSubnets := uint64(1) << (prefixLen - parent.Bits())
	if netnum < 0 || uint64(netnum) >= maxSubnets {
		return "", fmt.Errorf("subnet number %d exceeds max subnets %d", netnum, maxSubnets)
	}

	base := parent.Addr().As4()
	ip := uint64(binary.BigEndian.Uint32(base[:]))
	ip += uint64(netnum) << (32 - prefixLen)

	var out [4]byte
	// #nosec G115
	binary.BigEndian.PutUint32(out[:], uint32(ip))
	return netip.PrefixFrom(netip.AddrFrom4(out), prefixLen).String(), nil
}

// SubnetOf reports whether child lies entirely inside parent.
func SubnetOf(parent, child string) (bool, error) {
	p, err := parseIPv4Prefix(parent)
	if err != nil {
		return false, err
	}
	c, err := parseIPv4Prefix(child)
	if err != nil {
		return false, err
	}
	return c.Bits() >= p.Bits() && p.Contains(c.Addr()), nil
}

// Overlaps reports whether two prefixes share any address.
func Overlaps(a, b string) (bool, error) {
	pa, err := parseIPv4Prefix(a)
	if err != nil {
		return false, err
	}
	pb, err := parseIPv4Prefix(b)
	if err != nil {
		return false, err
	}
	return pa.Overlaps(pb), nil
}

func parseIPv4Prefix(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR prefix: %w", err)
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("only IPv4 addresses are supported, got %s", s)
	}
	return p.Masked(), nil
}
