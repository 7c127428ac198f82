package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes events to an io.Writer, one line per event, either in a
// human-readable key=value form or as JSONL.
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter returns a LogEmitter writing to w. A nil w defaults to
// os.Stdout.
func NewLogEmitter(w io.Writer, jsonMode bool) *LogEmitter {
	if w == nil {
		w = os.Stdout
	}
	return &LogEmitter{writer: w, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.writeJSON(event)
		return
	}
	l.writeText(event)
}

func (l *LogEmitter) writeJSON(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"emit_error\":%q}\n", err.Error())
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) writeText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] thread=%s step=%d node=%s", event.Msg, event.ThreadID, event.Step, event.NodeID)
	if len(event.Meta) > 0 {
		if meta, err := json.Marshal(event.Meta); err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", meta)
		}
	}
	_, _ = fmt.Fprintln(l.writer)
}

// EmitBatch writes each event in order; batching saves nothing for a plain
// writer but keeps the Emitter contract uniform across implementations.
func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		l.Emit(e)
	}
	return nil
}

// Flush is a no-op: LogEmitter never buffers.
func (l *LogEmitter) Flush(context.Context) error { return nil }
