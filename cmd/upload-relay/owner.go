// owner.go — имя сервиса для topologymetrics из hostname пода.
package main

import (
	"os"
	"strings"
)

// podHashAlphabet — алфавит суффиксов, генерируемых Kubernetes.
const podHashAlphabet = "bcdfghjklmnpqrstvwxz2456789"

// hostname возвращает имя хоста или "upload-relay", если оно недоступно.
func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "upload-relay"
	}
	return name
}

// parseOwnerName извлекает имя владельца пода из hostname:
//   - Deployment: <name>-<replicaset hash>-<pod suffix> → <name>
//   - StatefulSet: <name>-<ordinal> → <name>
//   - иначе hostname возвращается без изменений.
func parseOwnerName(host string) string {
	parts := strings.Split(host, "-")
	n := len(parts)

	if n >= 3 && isPodHash(parts[n-2], 6, 10) && isPodHash(parts[n-1], 5, 5) {
		return strings.Join(parts[:n-2], "-")
	}
	if n >= 2 && isOrdinal(parts[n-1]) {
		return strings.Join(parts[:n-1], "-")
	}
	return host
}

func isPodHash(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(podHashAlphabet, r) {
			return false
		}
	}
	return true
}

func isOrdinal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
