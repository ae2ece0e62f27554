// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"freqmeter/internal/grid"
	applog "freqmeter/internal/log"
	"freqmeter/internal/svgpath"
)

/*
UDP Packet Structure (BigEndian), one packet per rendered frame

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Path Count        | uint16         | 2            | Number of channels (N)  |
| Paths             | N x (uint32 length, bytes)    | SVG path data per channel|
+-----------------------------------------------------------------------------+

Visual Layout:

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<-- 4 Bytes -->|<-- len -->| ...
+-------------------+-----------------------+---------------+---------------+-----------+
|  Sequence Number  |       Timestamp       |  Path Count   |   Length 0    |  Path 0   | ...
+-------------------+-----------------------+---------------+---------------+-----------+
*/

// MaxPacketSize is the largest payload a UDP datagram can carry.
const MaxPacketSize = 65507

// HeaderSize is the size of the fixed packet header.
const HeaderSize = 4 + 8 + 2

// MaxFrameSize bounds the packet size of a frame of taps paths, each with
// bins samples in a width x height box.
func MaxFrameSize(taps, bins, width, height int) int {
	return HeaderSize + taps*(4+svgpath.MaxPathLen(bins, width, height))
}

// Packet is a decoded frame packet.
type Packet struct {
	Seq       uint32
	Timestamp int64
	Paths     []string
}

// packetSender is satisfied by UDPSender.
type packetSender interface {
	Send(data []byte) error
	Close() error
}

// UDPSink packs every rendered frame into one binary packet and sends it
// with a UDPSender. The overlay is static and not sent.
type UDPSink struct {
	sender packetSender
	now    func() time.Time

	mu           sync.Mutex    // Protects everything below.
	sequenceNum  uint32        // Monotonically increasing sequence number for packets.
	packetBuffer *bytes.Buffer // Reusable buffer for constructing the binary packet.
	closed       bool
}

// NewUDPSink dials targetAddress and returns a sink sending to it.
func NewUDPSink(targetAddress string) (*UDPSink, error) {
	sender, err := NewUDPSender(targetAddress)
	if err != nil {
		return nil, err
	}
	return newUDPSink(sender), nil
}

func newUDPSink(sender packetSender) *UDPSink {
	return &UDPSink{
		sender:       sender,
		now:          time.Now,
		packetBuffer: new(bytes.Buffer),
	}
}

// Overlay is accepted and ignored.
func (s *UDPSink) Overlay(o grid.Overlay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSenderClosed
	}
	applog.Debugf("UDPSink: Overlay %dx%d is not sent over UDP", o.Width, o.Height)
	return nil
}

// Render packs paths into a packet and sends it.
func (s *UDPSink) Render(paths svgpath.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSenderClosed
	}

	// Only sent packets consume a sequence number.
	seq := s.sequenceNum + 1
	if err := EncodePacket(s.packetBuffer, seq, s.now().UnixNano(), paths); err != nil {
		return err
	}

	packetBytes := s.packetBuffer.Bytes()
	if err := s.sender.Send(packetBytes); err != nil {
		return err
	}
	s.sequenceNum = seq
	applog.Debugf("UDPSink: Sent packet %d (%d bytes)", seq, len(packetBytes))
	return nil
}

// Close closes the sender.
func (s *UDPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.sender.Close()
}

// EncodePacket resets buf and writes one packet into it.
func EncodePacket(buf *bytes.Buffer, seq uint32, timestamp int64, paths []string) error {
	if len(paths) > math.MaxUint16 {
		return fmt.Errorf("too many paths for one packet: %d", len(paths))
	}
	size := HeaderSize
	for _, p := range paths {
		size += 4 + len(p)
	}
	if size > MaxPacketSize {
		return fmt.Errorf("packet of %d bytes exceeds the UDP limit of %d", size, MaxPacketSize)
	}

	buf.Reset()
	buf.Grow(size)

	var scratch [8]byte
	binary.BigEndian.PutUint32(scratch[:4], seq)
	buf.Write(scratch[:4])
	binary.BigEndian.PutUint64(scratch[:8], uint64(timestamp))
	buf.Write(scratch[:8])
	binary.BigEndian.PutUint16(scratch[:2], uint16(len(paths)))
	buf.Write(scratch[:2])
	for _, p := range paths {
		binary.BigEndian.PutUint32(scratch[:4], uint32(len(p)))
		buf.Write(scratch[:4])
		buf.WriteString(p)
	}
	return nil
}

// DecodePacket parses a packet written by EncodePacket.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, fmt.Errorf("packet too short: %d bytes", len(data))
	}
	pkt := Packet{
		Seq:       binary.BigEndian.Uint32(data[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(data[4:12])),
	}
	count := int(binary.BigEndian.Uint16(data[12:14]))
	rest := data[HeaderSize:]

	pkt.Paths = make([]string, 0, count)
	for i := range count {
		if len(rest) < 4 {
			return Packet{}, fmt.Errorf("path %d: truncated length", i)
		}
		n := int(binary.BigEndian.Uint32(rest[:4]))
		rest = rest[4:]
		if len(rest) < n {
			return Packet{}, fmt.Errorf("path %d: truncated data (%d of %d bytes)", i, len(rest), n)
		}
		pkt.Paths = append(pkt.Paths, string(rest[:n]))
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return Packet{}, fmt.Errorf("%d trailing bytes", len(rest))
	}
	return pkt, nil
}
