package similarity

import (
	"net/netip"
	"strings"
)

// prefixBits is the divisor for the common bit-prefix length. IPv6 pairs can
// therefore score above 1.
const prefixBits = 32.0

// IPSimilarity returns the common leading bit run of two addresses divided by 32.
// Unparsable addresses fall back to case-insensitive string equality.
func IPSimilarity(a, b string) float64 {
	x, okA := addressBits(a)
	y, okB := addressBits(b)
	if !okA || !okB {
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
			return 1
		}
		return 0
	}

	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	common := 0
	for i := 0; i < n; i++ {
		if x[i] != y[i] {
			break
		}
		common++
	}
	return float64(common) / prefixBits
}

// addressBits renders an address as one bit per entry. Within each byte the
// least significant bit comes first, then bytes follow network order.
func addressBits(raw string) ([]bool, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return nil, false
	}
	addr = addr.Unmap()
	raw16 := addr.AsSlice()
	bits := make([]bool, 0, len(raw16)*8)
	for _, b := range raw16 {
		for i := 0; i < 8; i++ {
			bits = append(bits, b&(1<<i) != 0)
		}
	}
	return bits, true
}
