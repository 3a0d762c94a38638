package ui

import (
	"github.com/gordonklaus/portaudio"
)

// Speaker 消费console输出的采样
type Speaker interface {
	SampleRate() float64
	Push(samples []float32)
	Close() error
}

// channel通道作为缓存区，越大声音延迟越大
const audioBuffer = 8192

type PortAudio struct {
	stream         *portaudio.Stream
	sampleRate     float64
	outputChannels int
	channel        chan float32
}

func NewPortAudio() (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	audio := &PortAudio{channel: make(chan float32, audioBuffer)}

	api, err := portaudio.DefaultHostApi()
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	parameters := portaudio.HighLatencyParameters(nil, api.DefaultOutputDevice)
	stream, err := portaudio.OpenStream(parameters, audio.callback)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	audio.stream = stream
	audio.sampleRate = parameters.SampleRate
	audio.outputChannels = parameters.Output.Channels

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, err
	}
	return audio, nil
}

func (audio *PortAudio) SampleRate() float64 {
	return audio.sampleRate
}

// Push 缓冲区满时丢弃，不阻塞模拟
func (audio *PortAudio) Push(samples []float32) {
	for _, s := range samples {
		select {
		case audio.channel <- s:
		default:
			return
		}
	}
}

func (audio *PortAudio) Close() error {
	err := audio.stream.Close()
	portaudio.Terminate()
	return err
}

func (audio *PortAudio) callback(out []float32) {
	var output float32
	for i := range out {
		if i%audio.outputChannels == 0 {
			select {
			case sample := <-audio.channel:
				output = sample
			default:
				output = 0
			}
		}
		out[i] = output
	}
}

func Check(err error) {
	if err != nil {
		panic(err)
	}
}
