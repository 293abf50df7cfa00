// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	applog "wavviz/internal/log"
	"wavviz/internal/render"
)

// Packet kinds.
const (
	KindBars uint8 = 1 // Values are raw bar magnitudes.
	KindWave uint8 = 2 // Values are trace heights relative to the centre line.
)

// UDPPublisher keeps the values of the most recent frame and sends them over
// UDP at a fixed interval, independent of the render rate. It runs in a
// separate goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   *UDPSender    // The underlying UDP sender instance.
	interval time.Duration // The interval at which packets are sent.

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	frameMu sync.Mutex // Protects latest, kind and fresh.
	latest  []float32  // Values of the newest frame, written by Draw calls.
	kind    uint8
	fresh   bool // latest changed since the last packet.

	sequenceNum uint32 // Monotonically increasing sequence number for packets.

	// Reused by the publisher goroutine only.
	udpF32Buffer []float32
	packetBuffer *bytes.Buffer
}

var _ render.Renderer = (*UDPPublisher)(nil)

// NewUDPPublisher creates a publisher sending through sender. If the
// provided interval is invalid (<= 0), it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, errors.New("UDPPublisher: UDP sender cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond // Default to ~60Hz if invalid
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	applog.Infof("UDPPublisher: Initializing (Target: %s, Interval: %s)", sender.Target(), interval)

	return &UDPPublisher{
		sender:       sender,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// DrawBars records the bar magnitudes of f for the next packet.
func (p *UDPPublisher) DrawBars(f render.BarsFrame) error {
	p.frameMu.Lock()
	p.latest = p.latest[:0]
	for _, b := range f.Bars {
		p.latest = append(p.latest, float32(b.Magnitude))
	}
	p.kind = KindBars
	p.fresh = true
	p.frameMu.Unlock()
	return nil
}

// DrawWave records the trace of f, centred on zero, for the next packet.
func (p *UDPPublisher) DrawWave(f render.WaveFrame) error {
	center := f.TextureHeight / 2
	p.frameMu.Lock()
	p.latest = p.latest[:0]
	for _, pt := range f.Trace {
		p.latest = append(p.latest, float32(pt.Y-center))
	}
	p.kind = KindWave
	p.fresh = true
	p.frameMu.Unlock()
	return nil
}

// Start begins the periodic publishing process.
// It launches a goroutine that ticks at the configured interval, calling
// buildAndSendPacket on each tick until Stop is called.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture local variables for the goroutine to avoid data races on p.ticker/p.doneChan
	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				applog.Debugf("UDPPublisher: Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop gracefully signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		applog.Debugf("UDPPublisher: Stop called but not running.")
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})

	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: Publisher goroutine finished.")
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Kind              | uint8          | 1            | 1 = bars, 2 = wave      |
| Value Count       | uint16         | 2            | Number of floats (N)    |
| Values            | []float32      | N * 4        | Magnitudes or heights   |
+-----------------------------------------------------------------------------+
*/

// HeaderSize is the number of bytes before the values.
const HeaderSize = 4 + 8 + 1 + 2

// buildAndSendPacket packs the newest frame values, if any arrived since the
// last packet, and sends them.
func (p *UDPPublisher) buildAndSendPacket() {
	p.frameMu.Lock()
	if !p.fresh {
		p.frameMu.Unlock()
		return
	}
	p.udpF32Buffer = append(p.udpF32Buffer[:0], p.latest...)
	kind := p.kind
	p.fresh = false
	p.frameMu.Unlock()

	if len(p.udpF32Buffer) > 0xFFFF {
		applog.Errorf("UDPPublisher: %d values do not fit a packet", len(p.udpF32Buffer))
		return
	}

	p.sequenceNum++
	timestamp := time.Now().UnixNano()

	p.packetBuffer.Reset()

	// Chain error checks for cleaner code.
	err := binary.Write(p.packetBuffer, binary.BigEndian, p.sequenceNum)
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, timestamp)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, kind)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, uint16(len(p.udpF32Buffer)))
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, p.udpF32Buffer)
	}
	if err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}

	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packetBytes))
	}
}

// Packet is a decoded publisher packet.
type Packet struct {
	Sequence  uint32
	Timestamp time.Time
	Kind      uint8
	Values    []float32
}

// DecodePacket parses a packet produced by UDPPublisher.
func DecodePacket(b []byte) (*Packet, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("packet too short: %d bytes", len(b))
	}
	pkt := &Packet{
		Sequence:  binary.BigEndian.Uint32(b[0:4]),
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(b[4:12]))),
		Kind:      b[12],
	}
	n := int(binary.BigEndian.Uint16(b[13:15]))
	if len(b) != HeaderSize+n*4 {
		return nil, fmt.Errorf("packet length %d does not match %d values", len(b), n)
	}
	pkt.Values = make([]float32, n)
	if err := binary.Read(bytes.NewReader(b[HeaderSize:]), binary.BigEndian, pkt.Values); err != nil {
		return nil, err
	}
	return pkt, nil
}

// Close stops the publisher goroutine and closes the sender.
func (p *UDPPublisher) Close() error {
	applog.Debugf("UDPPublisher: Close called, stopping publisher...")
	return errors.Join(p.Stop(), p.sender.Close())
}
