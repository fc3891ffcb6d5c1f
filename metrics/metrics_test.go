package metrics_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	libmet "github.com/nabbar/polysrv/metrics"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "metrics suite")
}

var _ = Describe("Metrics", func() {
	It("registers every collector against the supplied registerer", func() {
		reg := prometheus.NewRegistry()
		m := libmet.New(reg)

		m.ConnectionsOpen.Set(3)
		m.ConnectionsExpired.Inc()
		m.HeartbeatPingsSent.Add(2)
		m.HeartbeatDisconnects.Inc()

		Expect(testutil.ToFloat64(m.ConnectionsOpen)).To(Equal(3.0))
		Expect(testutil.ToFloat64(m.ConnectionsExpired)).To(Equal(1.0))
		Expect(testutil.ToFloat64(m.HeartbeatPingsSent)).To(Equal(2.0))
		Expect(testutil.ToFloat64(m.HeartbeatDisconnects)).To(Equal(1.0))

		count, err := testutil.GatherAndCount(reg)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(4))
	})

	It("is safe to use without a registerer", func() {
		m := libmet.New(nil)
		Expect(func() { m.ConnectionsOpen.Inc() }).NotTo(Panic())
	})
})
