package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/voicekey/internal/command"
	"github.com/MrWong99/voicekey/internal/control"
	"github.com/MrWong99/voicekey/internal/observe"
	"github.com/MrWong99/voicekey/internal/recognizer"
	"github.com/MrWong99/voicekey/pkg/audio"
	"github.com/MrWong99/voicekey/pkg/types"
)

// controlWorker is the only writer of the gate.
func (p *Pipeline) controlWorker(ctx context.Context, edges <-chan control.Edge) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-edges:
			if !p.gate.Apply(e) {
				slog.Debug("ignoring redundant edge", "edge", e.String())
				continue
			}
			if e == control.EdgePress {
				p.metrics.ActiveRecordings.Add(ctx, 1)
				slog.Info("recording started")
			} else {
				p.metrics.ActiveRecordings.Add(ctx, -1)
				slog.Info("recording stopped")
			}
		}
	}
}

// captureWorker owns the source and the frames channel. It follows the gate:
// an opening gate starts the source and a new session, a closing gate stops
// it and enqueues an end-of-utterance marker.
func (p *Pipeline) captureWorker(ctx context.Context, frames chan<- audio.Frame) error {
	defer close(frames)

	var (
		active  bool
		seq     uint64
		samples int64
		buffers int
		session string
		buf     = make([]int16, p.cfg.FrameSamples)
	)
	stop := func() {
		if err := p.source.Stop(); err != nil {
			slog.Warn("failed to stop capture source", "session_id", session, "error", err)
		}
		active = false
		p.endMarker(ctx, frames, session)
	}
	defer func() {
		if active {
			if err := p.source.Stop(); err != nil {
				slog.Warn("failed to stop capture source", "session_id", session, "error", err)
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		enabled := p.gate.Enabled()
		switch {
		case enabled && !active:
			if err := p.source.Start(); err != nil {
				slog.Error("failed to start capture source", "error", err)
				p.count(func(s *Stats) { s.ReadErrors++ })
				if !sleep(ctx, p.cfg.IdlePoll) {
					return nil
				}
				continue
			}
			active = true
			seq, samples, buffers = 0, 0, 0
			session = uuid.NewString()
			p.count(func(s *Stats) {
				s.SessionID = session
				s.Sessions++
			})
			slog.Debug("capture started", "session_id", session)
		case !enabled && active:
			stop()
			slog.Debug("capture stopped", "session_id", session)
			continue
		case !enabled:
			if !sleep(ctx, p.cfg.IdlePoll) {
				return nil
			}
			continue
		}

		n, err := p.source.Read(buf)
		if errors.Is(err, io.EOF) {
			slog.Info("capture source exhausted", "session_id", session)
			stop()
			return nil
		}
		if err != nil {
			p.metrics.ReadErrors.Add(ctx, 1)
			p.count(func(s *Stats) { s.ReadErrors++ })
			slog.Warn("capture read failed", "session_id", session, "error", err)
			if !sleep(ctx, p.cfg.IdlePoll) {
				return nil
			}
			continue
		}
		if n == 0 {
			continue
		}

		rate := p.source.SampleRate()
		out := make([]int16, n)
		copy(out, buf[:n])
		seq++
		frame := audio.Frame{
			Samples:    out,
			SampleRate: rate,
			Seq:        seq,
			Timestamp:  time.Duration(samples) * time.Second / time.Duration(rate),
		}
		samples += int64(n)
		buffers++

		level := audio.RMS(out)
		p.count(func(s *Stats) {
			s.Buffers++
			s.Level = level
		})
		if p.cfg.LevelLogInterval > 0 && buffers%p.cfg.LevelLogInterval == 0 {
			slog.Info("audio level", "session_id", session, "rms", level, "buffers", buffers)
		}

		if offer(ctx, frames, frame, p.cfg.FrameWait) {
			p.count(func(s *Stats) { s.FramesQueued++ })
		} else {
			p.dropped(ctx, "frames", func(s *Stats) { s.FramesDropped++ })
		}
	}
}

func (p *Pipeline) endMarker(ctx context.Context, frames chan<- audio.Frame, session string) {
	marker := audio.Frame{EndOfUtterance: true, SampleRate: p.source.SampleRate()}
	if offer(ctx, frames, marker, p.cfg.FrameWait) {
		p.count(func(s *Stats) { s.EndMarkers++ })
		return
	}
	slog.Warn("end-of-utterance marker dropped", "session_id", session)
	p.dropped(ctx, "frames", func(s *Stats) { s.FramesDropped++ })
}

func (p *Pipeline) dropped(ctx context.Context, queue string, fn func(*Stats)) {
	p.metrics.RecordDrop(context.WithoutCancel(ctx), queue)
	p.count(fn)
}

// recognitionWorker feeds frames to the recognizer. An orchestrator stuck in
// its error state is restarted so one bad stretch of audio does not end
// recognition for the rest of the run.
func (p *Pipeline) recognitionWorker(ctx context.Context, frames <-chan audio.Frame, done chan<- struct{}) error {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			err := p.rec.ProcessAudio(ctx, frame)
			if err == nil {
				continue
			}
			p.count(func(s *Stats) { s.ProcessErrors++ })
			if p.rec.State() == recognizer.StateError {
				p.recover()
				continue
			}
			if errors.Is(err, types.ErrInvalidState) {
				slog.Debug("frame rejected", "seq", frame.Seq, "error", err)
				continue
			}
			slog.Warn("frame processing failed", "seq", frame.Seq, "error", err)
		}
	}
}

func (p *Pipeline) recover() {
	slog.Warn("restarting recognizer after error state")
	if err := p.rec.Stop(); err != nil {
		slog.Error("failed to stop recognizer", "error", err)
		return
	}
	if err := p.rec.Start(); err != nil {
		slog.Error("failed to restart recognizer", "error", err)
		return
	}
	p.count(func(s *Stats) { s.Recoveries++ })
}

// commandWorker matches results and forwards commands, unknown ones
// included, to the dispatch worker. It exits once recognition is done and no
// results remain.
func (p *Pipeline) commandWorker(ctx context.Context, recDone <-chan struct{}, commands chan<- command.Command) error {
	defer close(commands)
	results := p.rec.Results()
	for {
		select {
		case <-ctx.Done():
			return nil
		case res := <-results:
			p.handleResult(ctx, res, commands)
		case <-recDone:
			for {
				select {
				case res := <-results:
					p.handleResult(ctx, res, commands)
				default:
					return nil
				}
			}
		}
	}
}

func (p *Pipeline) handleResult(ctx context.Context, res recognizer.Result, commands chan<- command.Command) {
	p.count(func(s *Stats) { s.Results++ })
	log := observe.Logger(observe.WithUtterance(ctx, res.ID))

	if res.Confidence < p.cfg.ConfidenceThreshold {
		p.count(func(s *Stats) { s.LowConfidence++ })
		p.metrics.RecordCommand(ctx, observe.CommandLowConfidence, command.TypeUnknown.String())
		log.Info("result below confidence threshold",
			"text", res.Text,
			"confidence", res.Confidence,
			"threshold", p.cfg.ConfidenceThreshold)
		return
	}

	cmd, ok := p.matcher.Load().m.Match(res.Text, res.Confidence)
	switch {
	case !ok:
		cmd = command.Command{Type: command.TypeUnknown, Text: res.Text, Confidence: res.Confidence}
		p.count(func(s *Stats) { s.Unknown++ })
		p.metrics.RecordCommand(ctx, observe.CommandUnknown, cmd.Type.String())
	case cmd.Fuzzy:
		p.metrics.RecordCommand(ctx, observe.CommandFuzzy, cmd.Type.String())
	default:
		p.metrics.RecordCommand(ctx, observe.CommandMatched, cmd.Type.String())
	}

	cmd.UtteranceID = res.ID
	if offer(ctx, commands, cmd, p.cfg.CommandWait) {
		p.count(func(s *Stats) { s.CommandsQueued++ })
		return
	}
	log.Warn("command dropped", "token", cmd.Token, "type", cmd.Type.String())
	p.dropped(ctx, "commands", func(s *Stats) { s.CommandsDropped++ })
}

func (p *Pipeline) dispatchWorker(ctx context.Context, commands <-chan command.Command) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-commands:
			if !ok {
				return nil
			}
			err := p.disp.Dispatch(observe.WithUtterance(ctx, cmd.UtteranceID), cmd)
			p.count(func(s *Stats) {
				s.Dispatched++
				if err != nil {
					s.DispatchErrors++
				}
			})
			if err != nil {
				slog.Warn("dispatch failed",
					"utterance_id", cmd.UtteranceID,
					"token", cmd.Token,
					"type", cmd.Type.String(),
					"error", err)
			}
		}
	}
}
