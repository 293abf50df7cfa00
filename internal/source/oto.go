// SPDX-License-Identifier: MIT
package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	applog "wavviz/internal/log"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, fixed to the format it was
// created with.
var (
	otoOnce    sync.Once
	otoCtx     *oto.Context
	otoFormat  [2]int
	otoInitErr error
)

func otoContext(channels, sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   40 * time.Millisecond,
		})
		if otoInitErr == nil {
			<-ready
			otoFormat = [2]int{channels, sampleRate}
		}
	})
	if otoInitErr != nil {
		return nil, otoInitErr
	}
	if otoFormat != [2]int{channels, sampleRate} {
		return nil, fmt.Errorf("%w: %d ch @ %d Hz", ErrSampleRateFixed, otoFormat[0], otoFormat[1])
	}
	return otoCtx, nil
}

// otoPlayerBuffer bounds how far oto reads ahead of what is heard.
const otoPlayerBuffer = 50 * time.Millisecond

// OtoSink plays through ebitengine/oto. Oto pulls bytes through an io.Reader,
// which is adapted onto the FillFunc here.
type OtoSink struct {
	out atomic.Pointer[otoOutput]
}

type otoOutput struct {
	player     *oto.Player
	frameBytes int
}

var _ BufferedSink = (*OtoSink)(nil)

func NewOtoSink() *OtoSink {
	return &OtoSink{}
}

func (s *OtoSink) Open(channels, sampleRate int, fill FillFunc) error {
	if s.out.Load() != nil {
		return errors.New("oto sink: already open")
	}

	ctx, err := otoContext(channels, sampleRate)
	if err != nil {
		return err
	}

	frameBytes := 2 * channels
	player := ctx.NewPlayer(&fillReader{fill: fill, channels: channels})
	player.SetBufferSize(int(otoPlayerBuffer) * sampleRate / int(time.Second) * frameBytes)
	player.Play()
	s.out.Store(&otoOutput{player: player, frameBytes: frameBytes})

	applog.Infof("OtoSink: Streaming %d ch @ %d Hz", channels, sampleRate)
	return nil
}

// Buffered returns the frames oto has read but not yet played.
func (s *OtoSink) Buffered() int {
	out := s.out.Load()
	if out == nil {
		return 0
	}
	return out.player.BufferedSize() / out.frameBytes
}

func (s *OtoSink) Close() error {
	out := s.out.Swap(nil)
	if out == nil {
		return nil
	}
	out.player.Pause()
	return out.player.Close()
}

// fillReader encodes FillFunc output as little-endian 16-bit PCM. It never
// returns io.EOF: silence is produced while the Player is not playing.
type fillReader struct {
	fill     FillFunc
	channels int
	samples  []int16
}

func (r *fillReader) Read(p []byte) (int, error) {
	// Whole frames only, so channels stay aligned across reads.
	n := len(p) / 2
	n -= n % r.channels
	if n == 0 {
		return 0, nil
	}
	if cap(r.samples) < n {
		r.samples = make([]int16, n)
	}
	samples := r.samples[:n]
	r.fill(samples)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(v))
	}
	return n * 2, nil
}
