// Package sse decodes the newline-delimited "data: " record stream returned by
// the streaming completion endpoint into incremental text fragments.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

const (
	dataPrefix = "data: "
	doneToken  = "[DONE]"
)

type recordKind int

const (
	recordSkip recordKind = iota
	recordFragment
	recordDone
	recordMalformed
)

// Decoder turns successive byte chunks into text fragments. It keeps a pending
// buffer across chunks until a newline-terminated record is available.
//
// A Decoder is single use: once the termination token has been seen, further
// chunks are ignored. Create a new Decoder per response.
type Decoder struct {
	pending []byte
	done    bool
	// held is set when a malformed record was pushed back to the front of
	// pending; the next drain gives it exactly one more attempt.
	held bool
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the pending buffer and returns the fragments of every
// complete record now available.
func (d *Decoder) Feed(chunk []byte) []string {
	if d.done {
		return nil
	}
	d.pending = append(d.pending, chunk...)
	return d.drain(false)
}

// Finish is called when the transport signals end of stream. Any trailing
// record without a newline is decoded, and records that still fail to parse
// are dropped.
func (d *Decoder) Finish() []string {
	if d.done {
		return nil
	}
	out := d.drain(true)
	d.done = true
	return out
}

// Done reports whether the termination token has been observed or Finish
// has been called.
func (d *Decoder) Done() bool {
	return d.done
}

// Remaining returns the buffered text that has not been consumed. After the
// termination token this is whatever followed it in the same chunk.
func (d *Decoder) Remaining() string {
	return string(d.pending)
}

func (d *Decoder) drain(final bool) []string {
	var out []string
	retrying := d.held
	d.held = false

	for !d.done && len(d.pending) > 0 {
		var line []byte
		i := bytes.IndexByte(d.pending, '\n')
		switch {
		case i >= 0:
			line = d.pending[:i:i]
			d.pending = d.pending[i+1:]
		case final:
			line = d.pending
			d.pending = nil
		default:
			return out
		}

		fragment, kind := classify(line)
		switch kind {
		case recordFragment:
			if fragment != "" {
				out = append(out, fragment)
			}
		case recordDone:
			d.done = true
		case recordMalformed:
			if retrying || final {
				// second failure, or no more bytes will arrive: drop it
				retrying = false
				continue
			}
			restored := make([]byte, 0, len(line)+1+len(d.pending))
			restored = append(restored, line...)
			restored = append(restored, '\n')
			d.pending = append(restored, d.pending...)
			d.held = true
			return out
		}
		retrying = false
	}
	return out
}

func classify(line []byte) (string, recordKind) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(bytes.TrimSpace(line)) == 0 || line[0] == ':' {
		return "", recordSkip
	}
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return "", recordSkip
	}
	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if string(payload) == doneToken {
		return "", recordDone
	}

	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", recordMalformed
	}
	if len(chunk.Choices) == 0 {
		return "", recordFragment
	}
	return chunk.Choices[0].Delta.Content, recordFragment
}

// Stream reads r chunk by chunk, decoding it with a fresh Decoder and calling
// yield for every fragment in arrival order. It returns nil when the
// termination token is seen or r reaches EOF. Each Read is a suspension
// point; ctx is checked between reads.
func Stream(ctx context.Context, r io.Reader, yield func(fragment string) error) error {
	d := NewDecoder()
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			for _, f := range d.Feed(buf[:n]) {
				if err := yield(f); err != nil {
					return err
				}
			}
			if d.Done() {
				return nil
			}
		}

		if readErr == io.EOF {
			for _, f := range d.Finish() {
				if err := yield(f); err != nil {
					return err
				}
			}
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read stream: %w", readErr)
		}
	}
}
