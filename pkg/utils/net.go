package utils

import (
	"fmt"
	"net"
	"strings"
)

// GetLocalIPs lists the non-loopback interface addresses of this host
func GetLocalIPs(onlyIPv4 bool) ([]string, error) {
	var ips []string

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}

		ip := ipnet.IP
		if ip4 := ip.To4(); ip4 != nil {
			ips = append(ips, ip4.String())
			continue
		}
		if !onlyIPv4 && ip.To16() != nil && !ip.IsLinkLocalUnicast() {
			ips = append(ips, ip.String())
		}
	}

	if len(ips) == 0 {
		return nil, fmt.Errorf("no non-loopback interface addresses found")
	}
	return ips, nil
}

// ListenURLs expands a listen address such as ":3000" into the URLs a
// participant on the LAN could open. Specific hosts are returned as-is.
func ListenURLs(addr string) []string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return []string{addr}
	}
	if host != "" && host != "::" && host != "0.0.0.0" {
		return []string{fmt.Sprintf("http://%s", net.JoinHostPort(host, port))}
	}

	urls := []string{fmt.Sprintf("http://localhost:%s", port)}
	ips, err := GetLocalIPs(true)
	if err != nil {
		return urls
	}
	for _, ip := range ips {
		urls = append(urls, "http://"+net.JoinHostPort(ip, port))
	}
	return urls
}

// WebsocketURL converts an http(s) base URL into the ws(s) URL for path
func WebsocketURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	if after, ok := strings.CutPrefix(base, "http://"); ok {
		base = "ws://" + after
	} else if after, ok := strings.CutPrefix(base, "https://"); ok {
		base = "wss://" + after
	}
	return base + path
}
