package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MrWong99/synergy/internal/tools"
	"github.com/MrWong99/synergy/pkg/audio"
	"github.com/MrWong99/synergy/pkg/provider/s2s"
)

// callbacks binds the transport callbacks to r.
func (e *Engine) callbacks(r *run) s2s.Callbacks {
	return s2s.Callbacks{
		OnOpen:    func() { e.onOpen(r) },
		OnMessage: func(msg *s2s.ServerMessage) { e.onMessage(r, msg) },
		OnError: func(err error) {
			e.fail(r, &TransportError{Op: "session", Err: err})
		},
		OnClose: func(ev s2s.CloseEvent) { e.onClose(r, ev) },
	}
}

func (e *Engine) onOpen(r *run) {
	e.change(func() bool {
		if e.cur != r || e.status != StatusConnecting {
			return false
		}
		r.opened = true
		e.status = StatusListening
		if e.metrics != nil {
			e.metrics.ActiveSessions.Add(r.ctx, 1)
		}
		e.maybeCaptureLocked(r)
		if r.profile.Greeting == "" {
			return false
		}
		e.tr.greet(r.profile.Greeting)
		return true
	})
	r.log.Info("voice session open")
}

func (e *Engine) onClose(r *run, ev s2s.CloseEvent) {
	ended := false
	e.change(func() bool {
		if e.cur != r {
			return false
		}
		ended = true
		e.cur = nil
		e.status = StatusIdle
		e.releaseLocked(r)
		return false
	})
	if ended {
		r.log.Info("voice session closed by remote", "code", ev.Code, "reason", ev.Reason)
	}
}

// onMessage applies one inbound message. The parts of a message are handled
// in a fixed order: model transcription, user transcription, turn complete,
// tool calls, audio, interruption.
func (e *Engine) onMessage(r *run, msg *s2s.ServerMessage) {
	if msg == nil {
		return
	}
	e.change(func() bool {
		if e.cur != r || !e.status.live() {
			return false
		}
		changed := false
		sc := msg.ServerContent

		if sc != nil {
			if t := sc.OutputTranscription; t != nil && t.Text != "" {
				e.tr.add(SpeakerModel, t.Text)
				changed = true
			}
			if t := sc.InputTranscription; t != nil && t.Text != "" {
				e.status = StatusThinking
				e.tr.add(SpeakerUser, t.Text)
				changed = true
			}
			if sc.TurnComplete {
				e.tr.endTurn()
				e.status = StatusListening
			}
		}

		if tc := msg.ToolCall; tc != nil && len(tc.FunctionCalls) > 0 {
			e.status = StatusThinking
			calls := make([]s2s.FunctionCall, len(tc.FunctionCalls))
			copy(calls, tc.FunctionCalls)
			e.wg.Add(1)
			go e.runTools(r, calls)
		}

		if sc != nil {
			if sc.ModelTurn != nil && e.playLocked(r, sc.ModelTurn.Parts) {
				e.status = StatusSpeaking
			}
			if sc.Interrupted {
				e.sched.Interrupt()
				if e.status == StatusSpeaking {
					e.status = StatusListening
				}
			}
		}
		return changed
	})
}

// playLocked decodes the inline audio of parts and schedules it. Chunks that
// fail to decode are dropped. It reports whether anything was scheduled.
func (e *Engine) playLocked(r *run, parts []s2s.Part) bool {
	scheduled := false
	for _, part := range parts {
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}
		raw, err := audio.Decode(part.InlineData.Data)
		var buf *audio.Buffer
		if err == nil {
			buf, err = audio.DecodeAudioData(raw, s2s.OutputSampleRate, 1)
		}
		if err == nil {
			_, err = e.sched.Schedule(buf)
		}
		if err != nil {
			r.log.Warn("dropping audio chunk", "bytes", len(part.InlineData.Data), "err", err)
			if e.metrics != nil {
				e.metrics.AudioChunksDropped.Add(r.ctx, 1)
			}
			continue
		}
		scheduled = true
		if e.metrics != nil {
			e.metrics.AudioChunksDecoded.Add(r.ctx, 1)
		}
	}
	return scheduled
}

// onDrained runs when the last scheduled chunk finished playing. A chunk
// scheduled between the drain and this call keeps the status at speaking.
func (e *Engine) onDrained() {
	e.change(func() bool {
		if e.cur != nil && e.status == StatusSpeaking && e.sched.Active() == 0 {
			e.status = StatusListening
		}
		return false
	})
}

// ── Capture ──────────────────────────────────────────────────────────────────

// maybeCaptureLocked starts the capture goroutine once r is open and both its
// stream and transport are attached.
func (e *Engine) maybeCaptureLocked(r *run) {
	if !r.opened || r.stream == nil || r.sess == nil || r.capturing {
		return
	}
	r.capturing = true
	e.wg.Add(1)
	go e.capture(r, r.stream, r.sess)
}

// capture forwards microphone audio as fixed-size PCM16 frames, in capture
// order, until the session ends or the stream closes.
func (e *Engine) capture(r *run, stream audio.Stream, sess s2s.Session) {
	defer e.wg.Done()

	e.input.mu.Lock()
	defer e.input.mu.Unlock()
	defer e.input.framer.Reset()

	rate := stream.SampleRate()
	send := func(frame []float32) {
		blob := s2s.Blob{
			MIMEType: s2s.PCMInputMIME,
			Data:     audio.Encode(audio.FloatToPCM16(frame)),
		}
		if err := sess.SendRealtimeInput(blob); err != nil {
			r.log.Warn("sending audio frame", "err", err)
			return
		}
		if e.metrics != nil {
			e.metrics.AudioFramesSent.Add(r.ctx, 1)
		}
	}

	dc, _ := stream.(audio.DropCounter)
	var reported uint64
	countDrops := func() {
		if dc == nil {
			return
		}
		n := dc.Dropped()
		if n == reported {
			return
		}
		if reported == 0 {
			r.log.Warn("microphone blocks dropped, capture is falling behind", "dropped", n)
		}
		if e.metrics != nil {
			e.metrics.CaptureBlocksDropped.Add(r.ctx, int64(n-reported))
		}
		reported = n
	}
	defer func() {
		countDrops()
		if reported > 0 {
			r.log.Info("microphone capture ended", "dropped", reported)
		}
	}()

	samples := stream.Samples()
	for {
		select {
		case <-r.ctx.Done():
			return
		case block, ok := <-samples:
			if !ok {
				return
			}
			countDrops()
			if rate != InputSampleRate {
				block = audio.ResampleFloat(block, rate, InputSampleRate)
			}
			e.input.framer.Write(block, send)
		}
	}
}

// ── Tools ────────────────────────────────────────────────────────────────────

// runTools resolves one tool-call batch and answers it with a single response
// holding one entry per call, in request order. Calls run one after another
// and batches never overlap, so handlers that read then write the store
// always see the previous call's write. Results of a session that ended
// meanwhile are discarded.
func (e *Engine) runTools(r *run, calls []s2s.FunctionCall) {
	defer e.wg.Done()
	e.toolMu.Lock()
	defer e.toolMu.Unlock()

	responses := make([]s2s.FunctionResponse, len(calls))
	effects := make([]tools.Effects, len(calls))
	for i, fc := range calls {
		if r.ctx.Err() != nil {
			r.log.Debug("discarding tool batch of ended session", "calls", len(calls))
			return
		}
		responses[i], effects[i] = e.callTool(r.ctx, r, fc)
	}

	sess, ok := e.current(r)
	if !ok {
		r.log.Debug("discarding tool responses of ended session", "calls", len(calls))
		return
	}
	if err := sess.SendToolResponse(responses); err != nil {
		r.log.Warn("sending tool responses", "calls", len(calls), "err", err)
		return
	}
	for _, fx := range effects {
		e.applyEffects(r, fx)
	}
}

// callTool executes one call. A successful result is returned to the model
// as {"result": "<JSON>"}; any failure, including an unknown tool name, as
// {"error": "<message>"}.
func (e *Engine) callTool(ctx context.Context, r *run, fc s2s.FunctionCall) (s2s.FunctionResponse, tools.Effects) {
	start := time.Now()
	resp := s2s.FunctionResponse{ID: fc.ID, Name: fc.Name}

	res, err := r.profile.Tools.Execute(ctx, fc.Name, fc.Args)
	var raw []byte
	if err == nil {
		raw, err = json.Marshal(res.Response)
	}

	status := "ok"
	if err != nil {
		status = "error"
		r.log.Warn("tool call failed", "tool", fc.Name, "id", fc.ID, "err", err)
		resp.Response = map[string]any{"error": err.Error()}
		res.Effects = tools.Effects{}
	} else {
		r.log.Debug("tool call", "tool", fc.Name, "id", fc.ID, "duration", time.Since(start))
		resp.Response = map[string]any{"result": string(raw)}
	}
	if e.metrics != nil {
		e.metrics.RecordToolCall(ctx, fc.Name, status)
		e.metrics.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds())
	}
	return resp, res.Effects
}

// applyEffects performs the UI side effects a tool requested.
func (e *Engine) applyEffects(r *run, fx tools.Effects) {
	if fx.Navigate != "" && e.navigate != nil {
		e.navigate(fx.Navigate)
	}
	if fx.ClosePanelAfter <= 0 || e.closePanel == nil {
		return
	}
	t := time.AfterFunc(fx.ClosePanelAfter, func() {
		if _, ok := e.current(r); ok {
			e.closePanel()
		}
	})
	context.AfterFunc(r.ctx, func() { t.Stop() })
}
