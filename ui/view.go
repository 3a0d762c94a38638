package ui

import (
	"image"
	"sync"
	"time"

	"github.com/55utah/fc-simulator/nes"
)

// Recorder 额外保存一份采样，比如写wav
type Recorder interface {
	Write(samples []float32)
}

// View 模拟循环，console只在锁内访问
type View struct {
	mu       sync.Mutex
	console  *nes.Console
	speaker  Speaker
	recorder Recorder
	buttons  [8]bool
	frame    *image.RGBA
	err      error
	stop     chan struct{}
	done     chan struct{} // Run退出后关闭
	stopOnce sync.Once
}

func NewView(console *nes.Console, speaker Speaker, recorder Recorder) *View {
	return &View{
		console:  console,
		speaker:  speaker,
		recorder: recorder,
		frame:    image.NewRGBA(image.Rect(0, 0, nes.ScreenWidth, nes.ScreenHeight)),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run 按真实时间推进console，直到Stop或CPU停机
func (view *View) Run() error {
	defer close(view.done)
	timestamp := time.Now()
	ticker := time.NewTicker(time.Millisecond * 4)
	defer ticker.Stop()
	for {
		select {
		case <-view.stop:
			return nil
		case now := <-ticker.C:
			elapsed := now.Sub(timestamp).Seconds()
			timestamp = now
			// 窗口拖动等导致的长停顿不追帧
			if elapsed > 0.1 {
				elapsed = 0.1
			}
			if err := view.step(elapsed); err != nil {
				return err
			}
		}
	}
}

func (view *View) step(seconds float64) error {
	view.mu.Lock()
	defer view.mu.Unlock()
	if view.err != nil {
		return view.err
	}
	view.console.SetButton1(view.buttons)
	view.err = view.console.StepSeconds(seconds)

	samples := view.console.DrainAudio()
	if view.speaker != nil {
		view.speaker.Push(samples)
	}
	if view.recorder != nil {
		view.recorder.Write(samples)
	}
	copy(view.frame.Pix, view.console.Buffer().Pix)
	return view.err
}

// Stop 通知Run退出并等待，返回后不会再有Push/Write
func (view *View) Stop() {
	view.stopOnce.Do(func() { close(view.stop) })
	<-view.done
}

func (view *View) SetButton(index int, pressed bool) {
	view.mu.Lock()
	view.buttons[index] = pressed
	view.mu.Unlock()
}

// Frame 当前画面的放大副本
func (view *View) Frame(scale int) image.Image {
	view.mu.Lock()
	defer view.mu.Unlock()
	return Resize(view.frame, nes.ScreenWidth, nes.ScreenHeight, scale)
}
