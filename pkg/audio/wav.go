package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

const (
	wavBitDepth  = 16
	wavPCMFormat = 1
)

// ErrUnsupportedWAV is returned for WAV files that are not 16-bit PCM.
var ErrUnsupportedWAV = errors.New("audio: unsupported wav format")

// WriteWAV writes mono 16-bit samples to path on fs as a PCM WAV file.
func WriteWAV(fs afero.Fs, path string, samples []int16, sampleRate int) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create %q: %w", path, err)
	}
	if err := encodeWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return fmt.Errorf("audio: write %q: %w", path, err)
	}
	return f.Close()
}

// EncodeWAV returns samples wrapped in a RIFF/WAV container, suitable for
// multipart uploads.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	fs := afero.NewMemMapFs()
	f, err := fs.Create("utterance.wav")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := encodeWAV(f, samples, sampleRate); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}

func encodeWAV(w io.WriteSeeker, samples []int16, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, wavBitDepth, 1, wavPCMFormat)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// WAVReader streams mono 16-bit samples out of a PCM WAV file. Multi-channel
// files are downmixed.
type WAVReader struct {
	dec        *wav.Decoder
	closer     io.Closer
	sampleRate int
	channels   int
	buf        *goaudio.IntBuffer
}

// OpenWAV opens path on fs for streaming.
func OpenWAV(fs afero.Fs, path string) (*WAVReader, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %q: %w", path, err)
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("audio: %q: %w: not a wav file", path, ErrUnsupportedWAV)
	}
	if dec.BitDepth != wavBitDepth || dec.WavAudioFormat != wavPCMFormat {
		f.Close()
		return nil, fmt.Errorf("audio: %q: %w: format %d, %d bit", path, ErrUnsupportedWAV, dec.WavAudioFormat, dec.BitDepth)
	}
	return &WAVReader{
		dec:        dec,
		closer:     f,
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
	}, nil
}

// SampleRate returns the file's sample rate in Hz.
func (r *WAVReader) SampleRate() int { return r.sampleRate }

// Read fills dst with up to len(dst) mono samples. It returns io.EOF once the
// data chunk is exhausted.
func (r *WAVReader) Read(dst []int16) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	want := len(dst) * r.channels
	if r.buf == nil || cap(r.buf.Data) < want {
		r.buf = &goaudio.IntBuffer{
			Format: &goaudio.Format{NumChannels: r.channels, SampleRate: r.sampleRate},
			Data:   make([]int, want),
		}
	}
	r.buf.Data = r.buf.Data[:want]
	n, err := r.dec.PCMBuffer(r.buf)
	if err != nil {
		return 0, fmt.Errorf("audio: read wav: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	raw := make([]int16, n)
	for i := range n {
		raw[i] = int16(r.buf.Data[i])
	}
	mono := DownmixInt16(raw, r.channels)
	return copy(dst, mono), nil
}

// Close releases the underlying file.
func (r *WAVReader) Close() error { return r.closer.Close() }

// ReadWAV loads a whole PCM WAV file as mono samples.
func ReadWAV(fs afero.Fs, path string) ([]int16, int, error) {
	r, err := OpenWAV(fs, path)
	if err != nil {
		return nil, 0, err
	}
	defer r.Close()

	var out []int16
	chunk := make([]int16, 4096)
	for {
		n, err := r.Read(chunk)
		out = append(out, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			return out, r.SampleRate(), nil
		}
		if err != nil {
			return nil, 0, err
		}
	}
}
