// Package audio drains the APU's sample ring buffer into a live portaudio
// output stream. The emulator core only produces samples (bus.GetAudioSamples);
// actually sounding them is a frontend concern, so this package lives under
// cmd/gones's import graph rather than internal/app.
package audio

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/gordonklaus/portaudio"
)

// Sink is a portaudio-backed output stream fed from a buffered channel. The
// producer goroutine in cmd/gones calls Push every 10 ms; the portaudio
// callback is the sole consumer, run on portaudio's own audio thread.
type Sink struct {
	stream  *portaudio.Stream
	samples chan float32
	volume  float32
	channels int
}

// NewSink opens a default portaudio output stream at sampleRate with the
// given channel count (1 = mono, 2 = stereo — the NES mixer is mono, so a
// stereo sink just duplicates each sample across channels).
func NewSink(sampleRate, channels int, volume float32) (*Sink, error) {
	if channels != 1 && channels != 2 {
		channels = 2
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	s := &Sink{
		samples:  make(chan float32, sampleRate), // ~1s of backlog
		volume:   volume,
		channels: channels,
	}

	cb := func(out []float32) {
		for i := 0; i < len(out); i += s.channels {
			var v float32
			select {
			case v = <-s.samples:
				v *= s.volume
			default:
				v = 0
			}
			for c := 0; c < s.channels; c++ {
				out[i+c] = v
			}
		}
	}

	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), 0, cb)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open default stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start stream: %w", err)
	}
	s.stream = stream
	return s, nil
}

// Push enqueues freshly generated samples for playback, dropping the oldest
// backlog rather than blocking the emulation loop if the sink falls behind.
func (s *Sink) Push(pcm []float32) {
	for _, v := range pcm {
		select {
		case s.samples <- v:
		default:
			select {
			case <-s.samples:
			default:
			}
			select {
			case s.samples <- v:
			default:
			}
		}
	}
}

// SetVolume adjusts playback volume (0.0-1.0) without reopening the stream.
func (s *Sink) SetVolume(volume float32) {
	s.volume = volume
}

// Close stops and releases the portaudio stream.
func (s *Sink) Close() {
	if s.stream != nil {
		if err := s.stream.Stop(); err != nil {
			glog.Warningf("audio stream stop: %v", err)
		}
		if err := s.stream.Close(); err != nil {
			glog.Warningf("audio stream close: %v", err)
		}
	}
	portaudio.Terminate()
}
