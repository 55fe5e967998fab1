package recognizer

import "time"

// ring keeps copies of the last few frames seen while listening so the
// frames that triggered speech start are part of the utterance.
type ring struct {
	frames [][]int16
	next   int
	n      int
}

func newRing(size int) *ring {
	return &ring{frames: make([][]int16, size)}
}

// push stores a copy of frame, evicting the oldest one when full.
func (r *ring) push(frame []int16) {
	slot := r.frames[r.next][:0]
	r.frames[r.next] = append(slot, frame...)
	r.next = (r.next + 1) % len(r.frames)
	if r.n < len(r.frames) {
		r.n++
	}
}

// appendTo appends the stored frames, oldest first, to dst.
func (r *ring) appendTo(dst []int16) []int16 {
	start := (r.next - r.n + len(r.frames)) % len(r.frames)
	for i := range r.n {
		dst = append(dst, r.frames[(start+i)%len(r.frames)]...)
	}
	return dst
}

// duration is the audio length held by the ring, excluding the newest frame.
func (r *ring) duration(sampleRate int) time.Duration {
	if r.n < 2 || sampleRate <= 0 {
		return 0
	}
	samples := 0
	start := (r.next - r.n + len(r.frames)) % len(r.frames)
	for i := range r.n - 1 {
		samples += len(r.frames[(start+i)%len(r.frames)])
	}
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

func (r *ring) reset() {
	r.next = 0
	r.n = 0
}
