package ui

import (
	"encoding/binary"
	"math"

	"github.com/ebitengine/oto/v3"
)

// Oto 不依赖portaudio的输出
type Oto struct {
	ctx        *oto.Context
	player     *oto.Player
	sampleRate float64
	channel    chan float32
}

func NewOto(sampleRate int) (*Oto, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	o := &Oto{
		ctx:        ctx,
		sampleRate: float64(sampleRate),
		channel:    make(chan float32, audioBuffer),
	}
	o.player = ctx.NewPlayer(o)
	o.player.Play()
	return o, nil
}

func (o *Oto) SampleRate() float64 {
	return o.sampleRate
}

func (o *Oto) Push(samples []float32) {
	for _, s := range samples {
		select {
		case o.channel <- s:
		default:
			return
		}
	}
}

func (o *Oto) Close() error {
	return o.player.Close()
}

// Read 给oto拉取数据，没有采样时补0
func (o *Oto) Read(p []byte) (int, error) {
	n := len(p) / 4
	for i := 0; i < n; i++ {
		var sample float32
		select {
		case sample = <-o.channel:
		default:
		}
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(sample))
	}
	return n * 4, nil
}
