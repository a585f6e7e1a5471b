package similarity

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"alertrank/pkg/models"
)

func TestIPSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical ipv4", a: "192.168.1.10", b: "192.168.1.10", want: 1},
		{name: "first octet differs in low bit", a: "10.0.0.1", b: "11.0.0.1", want: 0},
		{name: "last octet differs", a: "10.0.0.1", b: "10.0.0.2", want: 24.0 / 32},
		{name: "last octet differs late", a: "10.0.0.1", b: "10.0.0.129", want: 31.0 / 32},
		{name: "mapped ipv4 equals plain ipv4", a: "::ffff:10.1.2.3", b: "10.1.2.3", want: 1},
		{name: "identical ipv6 exceeds one", a: "2001:db8::1", b: "2001:db8::1", want: 4},
		{name: "unparsable equal ignoring case", a: "Host-A", b: "host-a", want: 1},
		{name: "unparsable differs", a: "host-a", b: "host-b", want: 0},
		{name: "one side unparsable", a: "10.0.0.1", b: "not-an-ip", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IPSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestIPSimilarityMixedFamiliesComparesCommonLength(t *testing.T) {
	// 0.0.0.0 and :: share the first 32 zero bits.
	assert.InDelta(t, 1.0, IPSimilarity("0.0.0.0", "::"), 1e-9)
}

func TestPortBuckets(t *testing.T) {
	assert.Equal(t, "80", BucketSourcePort("80"))
	assert.Equal(t, "private", BucketSourcePort("1024"))
	assert.Equal(t, "private", BucketSourcePort("49151"))
	assert.Equal(t, "registered", BucketSourcePort("49152"))
	assert.Equal(t, "registered", BucketSourcePort("65535"))
	assert.Equal(t, "70000", BucketSourcePort("70000"))
	assert.Equal(t, "icmp", BucketSourcePort("icmp"))

	assert.Equal(t, "443", BucketDestPort("443"))
	assert.Equal(t, "private", BucketDestPort("1024"))
	assert.Equal(t, "private", BucketDestPort("60000"))
	assert.Equal(t, "-1", BucketDestPort("-1"))
	assert.Equal(t, "", BucketDestPort(""))
}

func TestBucketPortsRewritesAlert(t *testing.T) {
	a := &models.Alert{SourcePort: "50000", DestPort: "8080"}
	BucketPorts(a)
	assert.Equal(t, "registered", a.SourcePort)
	assert.Equal(t, "private", a.DestPort)
	BucketPorts(nil)
}

func TestPortSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, PortSimilarity("private", "private"))
	assert.Equal(t, 0.0, PortSimilarity("private", "80"))
}

func TestTimeDecay(t *testing.T) {
	base := time.Date(2014, 9, 8, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, TimeDecay(base, base, 30))
	assert.InDelta(t, 1/math.Exp(1), TimeDecay(base, base.Add(30*time.Millisecond), 30), 1e-12)
	assert.InDelta(t, TimeDecay(base, base.Add(time.Second), 30), TimeDecay(base.Add(time.Second), base, 30), 1e-12)
	assert.Equal(t, 0.0, TimeDecay(base, base, 0))
}

func TestScoreIdenticalAlertsOneMinuteApartCorrelate(t *testing.T) {
	base := time.Date(2014, 9, 8, 10, 0, 0, 0, time.UTC)
	a := models.NewAlert(base, base, "1", "scan", "", "10.0.0.1", "private", "10.0.0.2", "private")
	b := models.NewAlert(base.Add(time.Minute), base.Add(time.Minute), "2", "scan", "", "10.0.0.1", "private", "10.0.0.2", "private")

	s := NewScorer(DefaultWeights(), 30)
	score := s.Score(a, b)
	assert.GreaterOrEqual(t, score, 0.8)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestScoreUsesCrossedAddressesWhenLarger(t *testing.T) {
	base := time.Date(2014, 9, 8, 10, 0, 0, 0, time.UTC)
	older := &models.Alert{SourceIP: "172.16.0.9", DestIP: "10.0.0.5", DestPort: "80", StartTime: base}
	newer := &models.Alert{SourceIP: "10.0.0.5", DestIP: "172.16.0.9", DestPort: "22", StartTime: base.Add(time.Hour)}

	s := NewScorer(DefaultWeights(), 30)
	// crossed = 1*1 + 1*1, no decay, ports differ but the weight offset is added.
	assert.InDelta(t, (2.0+0+0+1)/4, s.Score(older, newer), 1e-9)
}

func TestScoreZeroWeightsIsZero(t *testing.T) {
	s := NewScorer(Weights{}, 30)
	a := &models.Alert{SourceIP: "10.0.0.1"}
	assert.Equal(t, 0.0, s.Score(a, a))
	assert.Equal(t, 0.0, s.Score(nil, a))
}
