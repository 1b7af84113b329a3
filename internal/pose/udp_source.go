// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pose

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/relabs-tech/headtrack/internal/log"
)

// DatagramSize is the size of one pose datagram: six little-endian
// float64 values in x, y, z, yaw, pitch, roll order.
const DatagramSize = NumAxes * 8

// UDPSource receives poses sent by another tracker over UDP, one pose per
// datagram. Only the newest datagram is kept.
type UDPSource struct {
	addr       string
	staleAfter time.Duration

	mu       sync.Mutex
	conn     net.PacketConn
	latest   Pose
	fresh    bool
	received time.Time
	done     chan struct{}
}

// NewUDPSource listens on addr (e.g. ":4242"). A source that has not
// received anything for staleAfter reports ErrSourceUnavailable; zero
// disables the check.
func NewUDPSource(addr string, staleAfter time.Duration) *UDPSource {
	return &UDPSource{addr: addr, staleAfter: staleAfter}
}

func (s *UDPSource) Start() error {
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("udp source listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.done = make(chan struct{})
	s.mu.Unlock()

	log.Info("udp source listening", "addr", conn.LocalAddr().String())
	go s.receive(conn, s.done)
	return nil
}

// LocalAddr returns the bound address, or nil before Start.
func (s *UDPSource) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *UDPSource) receive(conn net.PacketConn, done chan struct{}) {
	defer close(done)
	buf := make([]byte, 512)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn("udp source read error", "err", err)
			continue
		}
		p, err := DecodeDatagram(buf[:n])
		if err != nil {
			log.Debug("udp source dropped datagram", "err", err)
			continue
		}
		s.mu.Lock()
		s.latest = p
		s.fresh = true
		s.received = time.Now()
		s.mu.Unlock()
	}
}

func (s *UDPSource) Next() (Pose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return Pose{}, ErrSourceUnavailable
	}
	if s.received.IsZero() {
		return Pose{}, ErrNoSample
	}
	if s.staleAfter > 0 && time.Since(s.received) > s.staleAfter {
		return Pose{}, fmt.Errorf("no datagram within %v: %w", s.staleAfter, ErrSourceUnavailable)
	}
	if !s.fresh {
		return Pose{}, ErrNoSample
	}
	s.fresh = false
	return s.latest, nil
}

func (s *UDPSource) Stop() error {
	s.mu.Lock()
	conn, done := s.conn, s.done
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	<-done
	return err
}

// DecodeDatagram parses one pose datagram.
func DecodeDatagram(b []byte) (Pose, error) {
	if len(b) != DatagramSize {
		return Pose{}, fmt.Errorf("datagram is %d bytes, want %d", len(b), DatagramSize)
	}
	var p Pose
	for i := range p {
		v := math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Pose{}, fmt.Errorf("non-finite %s value", Axis(i))
		}
		p[i] = v
	}
	return p, nil
}

// EncodeDatagram is the inverse of DecodeDatagram.
func EncodeDatagram(p Pose) []byte {
	b := make([]byte, DatagramSize)
	for i, v := range p {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}
