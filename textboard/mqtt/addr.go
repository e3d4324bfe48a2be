package mqtt

import (
	"errors"
	"net/netip"
	"strconv"
	"strings"
)

// brokerAddr is where the broker lives. Host is set only when the address
// names a host that still has to be resolved through DNS.
type brokerAddr struct {
	IP   netip.Addr
	Host string
	Port uint16
}

// parseBrokerAddr accepts "ip:port", "[ipv6]:port" or "hostname:port".
func parseBrokerAddr(addr string) (brokerAddr, error) {
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		if ap.Port() == 0 {
			return brokerAddr{}, errors.New("port 0 in " + addr)
		}
		return brokerAddr{IP: ap.Addr(), Port: ap.Port()}, nil
	}
	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return brokerAddr{}, errors.New("missing port in " + addr)
	}
	host, portStr := addr[:i], addr[i+1:]
	if host == "" {
		return brokerAddr{}, errors.New("empty host in " + addr)
	}
	if strings.ContainsAny(host, ":[]") {
		return brokerAddr{}, errors.New("malformed IP address in " + addr)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return brokerAddr{}, errors.New("invalid port in " + addr)
	}
	return brokerAddr{Host: host, Port: uint16(port)}, nil
}
