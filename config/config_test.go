package config_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libcfg "github.com/nabbar/polysrv/config"
	libdur "github.com/nabbar/polysrv/duration"
	libptc "github.com/nabbar/polysrv/network/protocol"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "config suite")
}

func valid() libcfg.Options {
	return libcfg.Options{
		Name: "core",
		Hosts: []libcfg.Host{
			{Name: "public", Network: libptc.TCP, Address: "0.0.0.0", Port: 9443},
		},
		RequestTimeout: libdur.FromSeconds(5),
	}
}

var _ = Describe("Options", func() {
	It("accepts a minimal valid configuration", func() {
		Expect(valid().Validate()).To(Succeed())
	})

	It("rejects an empty hosts list", func() {
		o := valid()
		o.Hosts = nil
		Expect(o.Validate()).To(HaveOccurred())
	})

	It("rejects a missing name", func() {
		o := valid()
		o.Name = ""
		Expect(o.Validate()).To(HaveOccurred())
	})

	It("rejects TLS enabled on a non-TCP network", func() {
		o := valid()
		o.Hosts[0].Network = libptc.UDP
		o.Hosts[0].TLSEnabled = true
		Expect(o.Validate()).To(HaveOccurred())
	})

	It("allows TLS enabled on a TCP network", func() {
		o := valid()
		o.Hosts[0].TLSEnabled = true
		Expect(o.Hosts[0].Validate()).To(Succeed())
	})
})
