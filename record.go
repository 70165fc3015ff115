// FILE: lixenwraith/logpipe/record.go
package logpipe

import (
	"errors"
	"slices"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/pattern"
	"github.com/lixenwraith/logpipe/writer"
)

// Log formats msg with args and hands the entry to every accepting writer.
// Placeholders are "{}" as understood by pattern.FormatMessage.
func (e *Engine) Log(level entry.Level, tag, msg string, args ...any) {
	e.log(0, e.mainThread, level, tag, nil, nil, msg, args)
}

// LogError logs msg with err attached as the entry's exception
func (e *Engine) LogError(level entry.Level, tag string, err error, msg string, args ...any) {
	e.log(0, e.mainThread, level, tag, err, nil, msg, args)
}

// LogContext logs msg with ordered context pairs
func (e *Engine) LogContext(level entry.Level, tag string, kv []entry.KV, msg string, args ...any) {
	e.log(0, e.mainThread, level, tag, nil, kv, msg, args)
}

// LogDepth is the general form for wrappers. depth counts the frames between
// the wrapper's caller and LogDepth, so caller tokens resolve to the wrapper's caller.
func (e *Engine) LogDepth(depth int, level entry.Level, tag string, err error, kv []entry.KV, msg string, args ...any) {
	e.log(depth, e.mainThread, level, tag, err, kv, msg, args)
}

// log builds an entry with only the fields some writer requires and submits it.
// skip is the number of frames above the exported caller of log.
func (e *Engine) log(skip int, th *entry.Thread, level entry.Level, tag string, err error, kv []entry.KV, msg string, args []any) {
	if !e.Enabled(level, tag) {
		return
	}

	req := e.required
	ent := &entry.Entry{Level: level, Tag: tag}

	if req&entry.ValueDate != 0 {
		ent.Timestamp = e.now()
	}
	if req&entry.ValueProcessID != 0 {
		ent.ProcessID = processID
	}
	if req&entry.ValueThread != 0 {
		ent.Thread = th
	}
	if req&entry.ValueContext != 0 && len(kv) > 0 {
		ent.Context = slices.Clone(kv)
	}
	if req.NeedsCaller() {
		// frames: ResolveCaller, log, exported method, its caller
		c := entry.ResolveCaller(skip + 2)
		e.stats.StackWalks.Add(1)
		ent.ClassName = c.ClassName
		ent.MethodName = c.Method
		ent.FileName = c.File
		ent.LineNumber = c.Line
	}
	if req&entry.ValueMessage != 0 {
		ent.Message = pattern.FormatMessage(msg, args...)
	}
	if req&(entry.ValueException|entry.ValueMessage) != 0 {
		ent.Exception = err
	}

	e.dispatch(ent)
}

// Submit hands a caller-populated entry to every accepting writer.
// Fields outside RequiredValues may be left empty.
func (e *Engine) Submit(ent *entry.Entry) error {
	if ent == nil {
		return errors.New("logpipe: nil entry")
	}
	if e.state.Load() != stateRunning {
		return ErrNotInitialized
	}
	if ent.Level < e.level || ent.Level >= entry.LevelOff {
		return nil
	}
	e.dispatch(ent)
	return nil
}

// dispatch writes to synchronous writers on the calling goroutine, then
// queues the entry for asynchronous ones. Synchronous writes complete before
// the entry is published to the writing thread, so a shared rendering cached
// on the entry is never written concurrently.
func (e *Engine) dispatch(ent *entry.Entry) {
	e.closeMu.RLock()
	defer e.closeMu.RUnlock()

	if e.state.Load() != stateRunning {
		return
	}
	e.stats.Submitted.Add(1)

	for i := range e.sinks {
		s := &e.sinks[i]
		if s.mode != writer.ModeSync || !s.accepts(ent.Level, ent.Tag) {
			continue
		}
		if err := s.w.Write(ent); err != nil {
			e.stats.WriterErrors.Add(1)
			e.diag.Printf("writer '%s' failed: %v", s.name, err)
		} else {
			e.stats.Written.Add(1)
		}
	}

	if !e.hasAsync {
		return
	}
	for i := range e.sinks {
		s := &e.sinks[i]
		if s.mode != writer.ModeAsync || !s.accepts(ent.Level, ent.Tag) {
			continue
		}
		if !e.thread.Enqueue(s.w, s.name, ent) {
			e.stats.Dropped.Add(1)
		}
	}
}
