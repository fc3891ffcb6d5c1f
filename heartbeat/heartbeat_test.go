package heartbeat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libhb "github.com/nabbar/polysrv/heartbeat"
)

func TestHeartbeat(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "heartbeat suite")
}

type fakeSocket struct {
	mu           sync.Mutex
	id           string
	lastActivity time.Time
	smart        bool
	pongRequired bool
	pings        int
	closed       bool
	// active makes LastActivity always report the current time, as for a
	// socket that keeps receiving traffic.
	active bool
}

func (f *fakeSocket) ID() string { return f.id }

func (f *fakeSocket) LastActivity() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active {
		return time.Now()
	}
	return f.lastActivity
}

func (f *fakeSocket) SmartHealthCheck() bool { return f.smart }

func (f *fakeSocket) PongRequired() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pongRequired
}

func (f *fakeSocket) SetPongRequired(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pongRequired = v
}

func (f *fakeSocket) Ping() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return true
}

func (f *fakeSocket) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSocket) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func (f *fakeSocket) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

var _ = Describe("Manager", func() {
	It("pings a registered socket with no recent activity", func() {
		s := &fakeSocket{id: "s1", lastActivity: time.Now().Add(-time.Hour)}
		m := libhb.New(20*time.Millisecond, nil, nil)
		m.Register(s)

		Expect(m.Start(context.Background())).To(Succeed())
		Eventually(s.pingCount).Should(BeNumerically(">=", 1))
		Expect(m.Stop(context.Background())).To(Succeed())
	})

	It("skips a socket with recent activity when smart health check is on", func() {
		s := &fakeSocket{id: "s1", active: true, smart: true}
		m := libhb.New(20*time.Millisecond, nil, nil)
		m.Register(s)

		Expect(m.Start(context.Background())).To(Succeed())
		Consistently(s.pingCount, 100*time.Millisecond).Should(Equal(0))
		Expect(m.Stop(context.Background())).To(Succeed())
	})

	It("disconnects a socket whose prior ping went unanswered", func() {
		s := &fakeSocket{id: "s1", lastActivity: time.Now().Add(-time.Hour), pongRequired: true}
		m := libhb.New(20*time.Millisecond, nil, nil)
		m.Register(s)

		Expect(m.Start(context.Background())).To(Succeed())
		Eventually(s.isClosed).Should(BeTrue())
		Expect(m.Stop(context.Background())).To(Succeed())
	})

	It("never starts its ticker when interval is zero (disabled)", func() {
		m := libhb.New(0, nil, nil)
		Expect(m.Start(context.Background())).To(Succeed())
	})

	It("Unregister removes a socket from future scans", func() {
		s := &fakeSocket{id: "s1", lastActivity: time.Now().Add(-time.Hour)}
		m := libhb.New(20*time.Millisecond, nil, nil)
		m.Register(s)
		m.Unregister("s1")

		Expect(m.Start(context.Background())).To(Succeed())
		Consistently(s.pingCount, 100*time.Millisecond).Should(Equal(0))
		Expect(m.Stop(context.Background())).To(Succeed())
	})
})
