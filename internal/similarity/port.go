package similarity

import (
	"strconv"
	"strings"

	"alertrank/pkg/models"
)

const (
	portPrivate    = "private"
	portRegistered = "registered"
)

// BucketSourcePort collapses a source port into its port class.
// 1024-49151 is "private", 49152-65535 is "registered"; anything else is kept verbatim.
func BucketSourcePort(port string) string {
	n, err := strconv.Atoi(strings.TrimSpace(port))
	if err != nil {
		return port
	}
	switch {
	case n >= 1024 && n <= 49151:
		return portPrivate
	case n >= 49152 && n <= 65535:
		return portRegistered
	default:
		return port
	}
}

// BucketDestPort collapses a destination port in 1024-65535 into "private".
func BucketDestPort(port string) string {
	n, err := strconv.Atoi(strings.TrimSpace(port))
	if err != nil {
		return port
	}
	if n >= 1024 && n <= 65535 {
		return portPrivate
	}
	return port
}

// BucketPorts rewrites both ports of an alert in place. It must run once per alert.
func BucketPorts(a *models.Alert) {
	if a == nil {
		return
	}
	a.SourcePort = BucketSourcePort(a.SourcePort)
	a.DestPort = BucketDestPort(a.DestPort)
}

// PortSimilarity is 1 for equal port classes and 0 otherwise.
func PortSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	return 0
}
