// Package telemetry forwards fused estimates to downstream consumers as
// line-oriented text over UDP or TCP. Delivery is best effort: a slow or
// unreachable consumer never stalls the estimation loop.
package telemetry

import (
	"log"
	"net"
	"sync"
	"time"
)

type udpTarget struct {
	addr *net.UDPAddr
}

type tcpClient struct {
	addr  string
	queue chan []byte
	wg    sync.WaitGroup
}

// Sender fans one estimate line out to every configured target.
type Sender struct {
	udpTargets []*udpTarget
	tcpClients []*tcpClient
	connUDP    *net.UDPConn
	running    bool
}

func NewSender() *Sender {
	return &Sender{}
}

// AddUDPTarget registers a fire-and-forget UDP destination.
func (s *Sender) AddUDPTarget(addr string) error {
	uaddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	s.udpTargets = append(s.udpTargets, &udpTarget{addr: uaddr})
	return nil
}

// AddTCPTarget registers a queued TCP destination. The connection is dialed
// lazily and redialed after write failures.
func (s *Sender) AddTCPTarget(addr string) {
	s.tcpClients = append(s.tcpClients, &tcpClient{
		addr:  addr,
		queue: make(chan []byte, 1000),
	})
}

// Start opens the shared UDP socket and launches the TCP client loops.
func (s *Sender) Start() error {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	s.connUDP = conn
	s.running = true

	for _, c := range s.tcpClients {
		c.start()
	}
	return nil
}

// Stop closes the UDP socket and drains the TCP clients.
func (s *Sender) Stop() {
	if !s.running {
		return
	}
	s.running = false
	if s.connUDP != nil {
		s.connUDP.Close()
	}
	for _, c := range s.tcpClients {
		c.stop()
	}
}

// Send queues data for every target. UDP writes happen inline; TCP messages
// are dropped when a client's queue is full.
func (s *Sender) Send(data []byte) {
	if !s.running {
		return
	}
	for _, t := range s.udpTargets {
		s.connUDP.WriteToUDP(data, t.addr)
	}
	for _, c := range s.tcpClients {
		select {
		case c.queue <- data:
		default:
		}
	}
}

func (c *tcpClient) start() {
	c.wg.Add(1)
	go c.loop()
}

func (c *tcpClient) stop() {
	close(c.queue)
	c.wg.Wait()
}

func (c *tcpClient) loop() {
	defer c.wg.Done()
	var conn net.Conn

	connect := func() bool {
		if conn != nil {
			return true
		}
		var err error
		conn, err = net.DialTimeout("tcp", c.addr, 2*time.Second)
		return err == nil
	}

	for msg := range c.queue {
		if !connect() {
			time.Sleep(500 * time.Millisecond)
			if !connect() {
				continue
			}
		}

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if _, err := conn.Write(msg); err != nil {
			log.Printf("telemetry write to %s failed: %v", c.addr, err)
			conn.Close()
			conn = nil
			time.Sleep(100 * time.Millisecond)
		}
	}
	if conn != nil {
		conn.Close()
	}
}
