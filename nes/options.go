package nes

import (
	"io"
	"log"
	"os"

	"github.com/pkg/errors"
)

// Option 创建Console时的可选配置
type Option func(*Console) error

func defaultLogger() *log.Logger {
	return log.New(os.Stderr, "nes: ", log.LstdFlags)
}

// WithLogger nil 时丢弃日志
func WithLogger(logger *log.Logger) Option {
	return func(console *Console) error {
		if logger == nil {
			logger = log.New(io.Discard, "", 0)
		}
		console.logger = logger
		return nil
	}
}

func WithTracer(tracer Tracer) Option {
	return func(console *Console) error {
		console.CPU.SetTracer(tracer)
		return nil
	}
}

// WithAudioSampleRate 输出采样率，0 为APU原生速率
func WithAudioSampleRate(rate float64) Option {
	return func(console *Console) error {
		if rate < 0 || rate > CPUFrequency {
			return errors.Errorf("nes: invalid audio sample rate %v", rate)
		}
		console.sampleRate = rate
		return nil
	}
}

// WithSpriteLimit 关闭后每行精灵不再限制为8个
func WithSpriteLimit(enabled bool) Option {
	return func(console *Console) error {
		console.PPU.spriteLimit = enabled
		return nil
	}
}
