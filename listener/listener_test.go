package listener_test

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libhb "github.com/nabbar/polysrv/heartbeat"
	liblis "github.com/nabbar/polysrv/listener"
	libptc "github.com/nabbar/polysrv/network/protocol"
	libproto "github.com/nabbar/polysrv/protocol"
)

func TestListener(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "listener suite")
}

// echoProtocol accepts a stream whose first peeked byte is 'E', replies
// "OK\n", and echoes each subsequent line -- spec.md §8 scenario 2.
type echoProtocol struct{}

func (echoProtocol) Name() string { return "echo" }

func (echoProtocol) AttemptHandshake(c libproto.Conn, peeked []byte) libproto.HandshakeResult {
	if len(peeked) == 0 || peeked[0] != 'E' {
		return libproto.HandshakeResult{}
	}

	return libproto.HandshakeResult{Accepted: true, Reply: []byte("OK\n"), Replay: peeked[1:]}
}

func (echoProtocol) SwitchTo(c libproto.Conn, data []byte) libproto.HandshakeResult {
	return libproto.HandshakeResult{Accepted: true}
}

func (echoProtocol) HandleConnection(c libproto.Conn, r libproto.HandshakeResult) {
	if cc, ok := c.(interface{ Conn() net.Conn }); ok {
		br := bufio.NewReader(cc.Conn())
		if len(r.Replay) > 0 {
			c.Send(r.Replay)
		}
		for {
			line, err := br.ReadString('\n')
			if len(line) > 0 {
				c.Send([]byte(line))
			}
			if err != nil {
				return
			}
		}
	}
}

// pingSocket is the protocol-supplied socket object heartbeatProtocol
// returns from its handshake; it implements the pinger hook the Heartbeat
// Manager looks for on a connection's UserSocket.
type pingSocket struct {
	pings int32
}

func (s *pingSocket) Ping() bool {
	atomic.AddInt32(&s.pings, 1)
	return true
}

// heartbeatProtocol accepts a stream whose first peeked byte is 'H', opts
// the connection into the Heartbeat Manager via the widened protocol.Conn
// surface (spec.md §4.F opt-in), and clears pong-required via KeepAlive
// whenever it reads a 'P' pong byte (spec.md §4.F "Pong receipt ... calls
// keep-alive()").
type heartbeatProtocol struct {
	mu   sync.Mutex
	sock *pingSocket
}

func (heartbeatProtocol) Name() string { return "heartbeat" }

func (p *heartbeatProtocol) AttemptHandshake(c libproto.Conn, peeked []byte) libproto.HandshakeResult {
	if len(peeked) == 0 || peeked[0] != 'H' {
		return libproto.HandshakeResult{}
	}

	s := &pingSocket{}

	p.mu.Lock()
	p.sock = s
	p.mu.Unlock()

	c.SetHeartbeatOptIn(true)

	return libproto.HandshakeResult{Accepted: true, Socket: s, Replay: peeked[1:]}
}

func (heartbeatProtocol) SwitchTo(c libproto.Conn, data []byte) libproto.HandshakeResult {
	return libproto.HandshakeResult{}
}

func (heartbeatProtocol) HandleConnection(c libproto.Conn, r libproto.HandshakeResult) {
	cc, ok := c.(interface{ Conn() net.Conn })
	if !ok {
		return
	}

	buf := make([]byte, 1)
	for {
		n, err := cc.Conn().Read(buf)
		if n > 0 && buf[0] == 'P' {
			c.KeepAlive()
		}
		if err != nil {
			return
		}
	}
}

func (p *heartbeatProtocol) pingCount() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sock == nil {
		return 0
	}

	return atomic.LoadInt32(&p.sock.pings)
}

var _ = Describe("Listener", func() {
	It("rejects Start on a non-TCP network", func() {
		reg := libproto.NewRegistry()
		l := liblis.New(liblis.Config{
			Name:    "t0",
			Network: libptc.UDP,
			Address: "127.0.0.1",
			Port:    0,
		}, reg, nil, nil, nil)

		Expect(l.Start(context.Background())).To(HaveOccurred())
	})

	It("closes a connection that never sends bytes once request-timeout elapses", func() {
		reg := libproto.NewRegistry()
		l := liblis.New(liblis.Config{
			Name:           "t1",
			Network:        libptc.TCP,
			Address:        "127.0.0.1",
			Port:           0,
			RequestTimeout: 150 * time.Millisecond,
		}, reg, nil, nil, nil)

		Expect(l.Start(context.Background())).To(Succeed())
		defer l.Stop(context.Background())

		client, err := net.Dial("tcp", l.Addr().String())
		Expect(err).NotTo(HaveOccurred())
		defer client.Close()

		buf := make([]byte, 1)
		client.SetReadDeadline(time.Now().Add(time.Second))
		_, err = client.Read(buf)
		Expect(err).To(HaveOccurred())
	})

	It("runs the echo protocol's handshake reply before handle-connection", func() {
		reg := libproto.NewRegistry()
		reg.Add(echoProtocol{})

		l := liblis.New(liblis.Config{
			Name:           "t2",
			Network:        libptc.TCP,
			Address:        "127.0.0.1",
			Port:           0,
			RequestTimeout: 5 * time.Second,
		}, reg, nil, nil, nil)

		Expect(l.Start(context.Background())).To(Succeed())
		defer l.Stop(context.Background())

		client, err := net.Dial("tcp", l.Addr().String())
		Expect(err).NotTo(HaveOccurred())
		defer client.Close()

		_, err = client.Write([]byte("Ehello\n\n"))
		Expect(err).NotTo(HaveOccurred())

		client.SetReadDeadline(time.Now().Add(time.Second))
		br := bufio.NewReader(client)

		first, err := br.ReadString('\n')
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal("OK\n"))
	})

	It("closes a connection with no matching protocol", func() {
		reg := libproto.NewRegistry()
		reg.Add(echoProtocol{})

		l := liblis.New(liblis.Config{
			Name:           "t3",
			Network:        libptc.TCP,
			Address:        "127.0.0.1",
			Port:           0,
			RequestTimeout: 5 * time.Second,
		}, reg, nil, nil, nil)

		Expect(l.Start(context.Background())).To(Succeed())
		defer l.Stop(context.Background())

		client, err := net.Dial("tcp", l.Addr().String())
		Expect(err).NotTo(HaveOccurred())
		defer client.Close()

		_, err = client.Write([]byte("Xhello\n\n"))
		Expect(err).NotTo(HaveOccurred())

		buf := make([]byte, 1)
		client.SetReadDeadline(time.Now().Add(time.Second))
		_, err = client.Read(buf)
		Expect(err).To(HaveOccurred())
	})

	It("registers a heartbeat-opted-in connection and pings it", func() {
		reg := libproto.NewRegistry()
		proto := &heartbeatProtocol{}
		reg.Add(proto)

		l := liblis.New(liblis.Config{
			Name:           "t4",
			Network:        libptc.TCP,
			Address:        "127.0.0.1",
			Port:           0,
			RequestTimeout: 5 * time.Second,
		}, reg, nil, nil, nil)

		hb := libhb.New(20*time.Millisecond, nil, nil)
		l.SetHeartbeat(hb)

		Expect(l.Start(context.Background())).To(Succeed())
		defer l.Stop(context.Background())
		Expect(hb.Start(context.Background())).To(Succeed())
		defer hb.Stop(context.Background())

		client, err := net.Dial("tcp", l.Addr().String())
		Expect(err).NotTo(HaveOccurred())
		defer client.Close()

		_, err = client.Write([]byte("H"))
		Expect(err).NotTo(HaveOccurred())

		Eventually(proto.pingCount, time.Second, 10*time.Millisecond).Should(BeNumerically(">=", 1))
	})
})
