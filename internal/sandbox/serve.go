package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"modelforge/internal/services"
)

const maxFrameBytes = 16 << 20

// Serve speaks the sandbox protocol as newline-delimited JSON: a ready frame
// on start, then for each evaluate frame read from r the same frames a
// Worker would send. The parent process owns the timeout and kills this one
// when it expires.
func Serve(ctx context.Context, r io.Reader, w io.Writer, opts Options) error {
	out := frameWriter{w: w}
	sc, err := NewContext(opts)
	if err != nil {
		_ = out.write(Message{Type: TypeError, Error: &ErrorInfo{Kind: services.Kind(err), Message: err.Error()}})
		return err
	}
	if err := out.write(Message{Type: TypeReady}); err != nil {
		return err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Message
		if err := json.Unmarshal(line, &req); err != nil {
			if err := out.write(Message{Type: TypeError, Error: &ErrorInfo{
				Kind:    services.KindValidation,
				Message: "malformed frame: " + err.Error(),
			}}); err != nil {
				return err
			}
			continue
		}
		for _, frame := range handle(ctx, sc, req) {
			if err := out.write(frame); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}

// frameWriter writes one JSON line per frame. An unencodable parameters frame
// is dropped; any other unencodable frame is replaced by an EvaluationError.
// Only write failures are returned.
type frameWriter struct {
	w io.Writer
}

func (f frameWriter) write(m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		if m.Type == TypeParameters {
			return nil
		}
		data, err = json.Marshal(Message{Type: TypeError, Error: &ErrorInfo{
			Kind:    services.KindEvaluation,
			Message: "result could not be encoded: " + err.Error(),
		}})
		if err != nil {
			return err
		}
	}
	_, err = f.w.Write(append(data, '\n'))
	return err
}
