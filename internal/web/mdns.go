package web

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"

	"tilawah/pkg/spec"
)

const mdnsService = "_tilawah._tcp"

// Advertise announces the HTTP view at addr on the local network. The
// returned func withdraws it.
func Advertise(addr string, log *zap.Logger) (func(), error) {
	port, err := listenPort(addr)
	if err != nil {
		return nil, err
	}
	host, _ := os.Hostname()
	if strings.TrimSpace(host) == "" {
		host = "tilawah"
	}
	meta := []string{
		"name=tilawah",
		"api_version=1",
		fmt.Sprintf("version=%d.%d", spec.VersionMajor, spec.VersionMinor),
	}
	service, err := mdns.NewMDNSService("tilawah-"+host, mdnsService, "", "", port, advertiseIPs(), meta)
	if err != nil {
		return nil, fmt.Errorf("mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("mdns start: %w", err)
	}
	log.Named("web").Info("mdns advertising enabled", zap.String("service", mdnsService), zap.Int("port", port))
	return func() { _ = server.Shutdown() }, nil
}

func advertiseIPs() []net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	return filterAdvertiseIPs(addrs)
}

// filterAdvertiseIPs keeps routable unicast addresses, IPv4 first.
func filterAdvertiseIPs(addrs []net.Addr) []net.IP {
	seen := map[string]struct{}{}
	var out []net.IP
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet == nil || ipNet.IP == nil {
			continue
		}
		ip := ipNet.IP
		if ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			continue
		}
		ip = ip.To16()
		if _, dup := seen[ip.String()]; dup {
			continue
		}
		seen[ip.String()] = struct{}{}
		out = append(out, ip)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].To4() != nil, out[j].To4() != nil
		if a != b {
			return a
		}
		return out[i].String() < out[j].String()
	})
	return out
}

func listenPort(addr string) (int, error) {
	_, p, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return 0, fmt.Errorf("listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 {
		return 0, fmt.Errorf("listen address %q has no port", addr)
	}
	return port, nil
}
