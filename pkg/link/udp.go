package link

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UDPConfig configures a UDPLink.
type UDPConfig struct {
	// RemoteAddr is the device's address, e.g. "192.168.1.50:51000".
	RemoteAddr string
	// ReadTimeout bounds each poll of the underlying socket. It defaults to
	// 50ms when zero, short enough not to stall the caller's process() tick.
	ReadTimeout time.Duration
}

// UDPLink is a point-to-point UDP transport. Because the core's process()
// model never blocks, reads happen on a background goroutine that feeds a
// buffer Receive drains non-blockingly.
type UDPLink struct {
	conn         *net.UDPConn
	mu           sync.Mutex
	rx           [][]byte
	open         bool
	closeCh      chan struct{}
	wg           sync.WaitGroup
	connectionID string
}

// NewUDPLink creates an unopened UDP link.
func NewUDPLink() *UDPLink {
	return &UDPLink{}
}

// Open dials the remote address named in cfg (a UDPConfig) and starts the
// background read loop.
func (l *UDPLink) Open(cfg any) error {
	udpCfg, ok := cfg.(UDPConfig)
	if !ok {
		return fmt.Errorf("link: udp link requires UDPConfig, got %T", cfg)
	}
	raddr, err := net.ResolveUDPAddr("udp", udpCfg.RemoteAddr)
	if err != nil {
		return fmt.Errorf("link: resolve %q: %w", udpCfg.RemoteAddr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("link: dial %q: %w", udpCfg.RemoteAddr, err)
	}
	timeout := udpCfg.ReadTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}

	l.conn = conn
	l.open = true
	l.connectionID = uuid.New().String()
	l.closeCh = make(chan struct{})
	l.wg.Add(1)
	go l.readLoop(timeout)
	return nil
}

// ConnectionID returns a unique identifier minted for this open, for
// correlating log events and diagnostics across a single connection
// attempt. Empty until Open succeeds.
func (l *UDPLink) ConnectionID() string {
	return l.connectionID
}

func (l *UDPLink) readLoop(timeout time.Duration) {
	defer l.wg.Done()
	buf := make([]byte, 65535)
	for {
		select {
		case <-l.closeCh:
			return
		default:
		}
		_ = l.conn.SetReadDeadline(time.Now().Add(timeout))
		n, err := l.conn.Read(buf)
		if err != nil {
			continue
		}
		frame := append([]byte(nil), buf[:n]...)
		l.mu.Lock()
		l.rx = append(l.rx, frame)
		l.mu.Unlock()
	}
}

// Send writes frame to the socket.
func (l *UDPLink) Send(frame []byte) error {
	if !l.open {
		return ErrNotOpen
	}
	_, err := l.conn.Write(frame)
	return err
}

// Receive pops the oldest frame read by the background loop, if any.
func (l *UDPLink) Receive() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.rx) == 0 {
		return nil, false
	}
	frame := l.rx[0]
	l.rx = l.rx[1:]
	return frame, true
}

// IsOpen reports whether the socket is currently open.
func (l *UDPLink) IsOpen() bool {
	return l.open
}

// Close stops the read loop and closes the socket.
func (l *UDPLink) Close() error {
	if !l.open {
		return nil
	}
	l.open = false
	close(l.closeCh)
	err := l.conn.Close()
	l.wg.Wait()
	return err
}
