/*
负责ui渲染，声音输出，接受控制的模块
*/

package ui

import (
	"log"
	"time"

	"fyne.io/fyne"
	"fyne.io/fyne/app"
	"fyne.io/fyne/canvas"
	"fyne.io/fyne/driver/desktop"

	"github.com/55utah/fc-simulator/nes"
)

// J K U I 对应 A B Select Start，WSAD 方向
func keyParse(ev *fyne.KeyEvent) int {
	switch ev.Name {
	case fyne.KeyJ:
		return nes.ButtonA
	case fyne.KeyK:
		return nes.ButtonB
	case fyne.KeyU:
		return nes.ButtonSelect
	case fyne.KeyI:
		return nes.ButtonStart
	case fyne.KeyW:
		return nes.ButtonUp
	case fyne.KeyS:
		return nes.ButtonDown
	case fyne.KeyA:
		return nes.ButtonLeft
	case fyne.KeyD:
		return nes.ButtonRight
	}
	return -1
}

func OpenWindow(view *View, scale int) {
	myApp := app.New()
	w := myApp.NewWindow("TinyFC")
	w.Resize(fyne.NewSize(nes.ScreenWidth*scale, nes.ScreenHeight*scale))
	myCanvas := w.Canvas()

	go func() {
		if err := view.Run(); err != nil {
			log.Printf("emulation stopped: %v", err)
		}
	}()

	if deskCanvas, ok := myCanvas.(desktop.Canvas); ok {
		deskCanvas.SetOnKeyDown(func(ev *fyne.KeyEvent) {
			if index := keyParse(ev); index >= 0 {
				view.SetButton(index, true)
			}
		})
		deskCanvas.SetOnKeyUp(func(ev *fyne.KeyEvent) {
			if index := keyParse(ev); index >= 0 {
				view.SetButton(index, false)
			}
		})
	}

	go changeContent(myCanvas, view, scale)

	w.ShowAndRun()
	view.Stop()
}

func changeContent(can fyne.Canvas, view *View, scale int) {
	for {
		// 模拟接近60fps的图像刷新率
		time.Sleep(time.Millisecond * 16)
		res := canvas.NewImageFromImage(view.Frame(scale))
		res.FillMode = canvas.ImageFillContain
		can.SetContent(res)
	}
}
