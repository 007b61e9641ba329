package domain

import (
	"net"
	"regexp"
)

var hostnameRE = regexp.MustCompile(
	`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*$`,
)

// ValidateTargetHost принимает IP ("192.168.1.5"), CIDR ("192.168.1.0/24")
// или hostname ("example.com"); отвергает пустые строки, "/0" и прочий мусор.
func ValidateTargetHost(host string) bool {
	if host == "" {
		return false
	}

	if ip, ipNet, err := net.ParseCIDR(host); err == nil {
		ones, bits := ipNet.Mask.Size()
		if ones == 0 && bits != 0 {
			return false // "/0" отвергается
		}
		return ip != nil
	}

	if net.ParseIP(host) != nil {
		return true
	}

	return hostnameRE.MatchString(host)
}

// ValidatePorts проверяет непустой список портов, каждый в диапазоне 1..65535.
func ValidatePorts(ports []int) bool {
	if len(ports) == 0 {
		return false
	}
	for _, p := range ports {
		if p < 1 || p > 65535 {
			return false
		}
	}
	return true
}
