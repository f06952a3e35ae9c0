package apu

import "sync/atomic"

// sampleRingCapacity must be a power of two so index wrapping can use a mask.
const sampleRingCapacity = 4096

// sampleRing is a single-producer single-consumer lock-free FIFO of mixed
// PCM samples (§5): the emulator thread is the sole producer, the audio
// sink thread is the sole consumer. Overflow drops the oldest unread
// sample rather than blocking the producer; underflow yields silence.
type sampleRing struct {
	buf      [sampleRingCapacity]float32
	writeIdx uint32 // advanced only by Push (producer)
	readIdx  uint32 // advanced only by Drain (consumer); Push may also advance it on overflow
}

func (r *sampleRing) Push(sample float32) {
	w := atomic.LoadUint32(&r.writeIdx)
	read := atomic.LoadUint32(&r.readIdx)
	if w-read >= sampleRingCapacity {
		atomic.StoreUint32(&r.readIdx, read+1)
	}
	r.buf[w&(sampleRingCapacity-1)] = sample
	atomic.StoreUint32(&r.writeIdx, w+1)
}

// Drain removes and returns every currently available sample.
func (r *sampleRing) Drain() []float32 {
	read := atomic.LoadUint32(&r.readIdx)
	w := atomic.LoadUint32(&r.writeIdx)
	n := w - read
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	for i := uint32(0); i < n; i++ {
		out[i] = r.buf[(read+i)&(sampleRingCapacity-1)]
	}
	atomic.StoreUint32(&r.readIdx, w)
	return out
}

func (r *sampleRing) reset() {
	atomic.StoreUint32(&r.writeIdx, 0)
	atomic.StoreUint32(&r.readIdx, 0)
}
