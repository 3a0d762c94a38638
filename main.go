package main

import (
	"flag"
	"fmt"
	"hash/crc32"
	"log"
	"os"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"

	"github.com/55utah/fc-simulator/nes"
	"github.com/55utah/fc-simulator/ui"
	"github.com/55utah/fc-simulator/wavwriter"
)

const statsAddress = "localhost:12600"

const defaultSampleRate = 44100

func main() {
	scale := flag.Int("scale", 2, "window scale")
	audioDev := flag.String("audio", "portaudio", "audio output: portaudio, oto or none")
	wavFile := flag.String("wav", "", "record audio to a wav file")
	headless := flag.Int("headless", 0, "run n frames without a window and print the frame crc32")
	trace := flag.Bool("trace", false, "print every executed instruction")
	stats := flag.Bool("statsview", false, "serve runtime stats on "+statsAddress)
	flag.Parse()

	log.SetFlags(0)
	if flag.NArg() < 1 {
		log.Fatal("usage: fc-simulator [flags] rom.nes")
	}
	filePath := flag.Arg(0)
	info, err := os.Stat(filePath)
	if err != nil {
		log.Fatal(err)
	}
	if info.IsDir() {
		log.Fatalf("%s: invalid path", filePath)
	}
	fileData, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatal(err)
	}

	if *stats {
		go func() {
			viewer.SetConfiguration(viewer.WithAddr(statsAddress))
			statsview.New().Start()
		}()
		log.Printf("stats server available at %s/debug/statsview", statsAddress)
	}

	var speaker ui.Speaker
	if *headless == 0 {
		switch *audioDev {
		case "portaudio":
			speaker, err = ui.NewPortAudio()
		case "oto":
			speaker, err = ui.NewOto(defaultSampleRate)
		case "none":
		default:
			log.Fatalf("unknown audio output %q", *audioDev)
		}
		ui.Check(err)
		if speaker != nil {
			defer speaker.Close()
		}
	}

	sampleRate := float64(defaultSampleRate)
	if speaker != nil {
		sampleRate = speaker.SampleRate()
	}

	opts := []nes.Option{nes.WithAudioSampleRate(sampleRate)}
	if *trace {
		opts = append(opts, nes.WithTracer(nes.TracerFunc(func(e nes.TraceEvent) {
			fmt.Println(e.String())
		})))
	}
	console, err := nes.NewConsole(fileData, opts...)
	if err != nil {
		log.Fatal(err)
	}

	var recorder *wavwriter.WavWriter
	if *wavFile != "" {
		recorder, err = wavwriter.New(*wavFile, int(sampleRate))
		if err != nil {
			log.Fatal(err)
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				log.Print(err)
			}
		}()
	}

	if *headless > 0 {
		if err := runHeadless(console, *headless, recorder); err != nil {
			log.Print(err)
		}
		return
	}

	var rec ui.Recorder
	if recorder != nil {
		rec = recorder
	}
	view := ui.NewView(console, speaker, rec)
	ui.OpenWindow(view, *scale)
}

// 无窗口运行n帧，输出最后一帧的crc32用于回归对比
func runHeadless(console *nes.Console, frames int, recorder *wavwriter.WavWriter) error {
	for i := 0; i < frames; i++ {
		err := console.StepFrame()
		samples := console.DrainAudio()
		if recorder != nil {
			recorder.Write(samples)
		}
		if err != nil {
			return err
		}
	}
	fmt.Printf("frame %d crc32 %08x\n", console.PPU.Frame, crc32.ChecksumIEEE(console.Buffer().Pix))
	return nil
}
