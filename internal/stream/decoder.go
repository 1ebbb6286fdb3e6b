package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
	readSize   = 4096
)

// ErrIncompleteStream is returned by Finish when buffered data never became
// a parseable frame
var ErrIncompleteStream = errors.New("stream ended with an incomplete frame")

// ErrMalformedFrame marks a data line that was skipped because it never parsed
var ErrMalformedFrame = errors.New("malformed stream frame")

// FunctionDelta is the function part of a streamed tool call
type FunctionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolCallDelta is a streamed tool call fragment. Fragments with the same
// Index belong to the same call.
type ToolCallDelta struct {
	Index    int           `json:"index"`
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type,omitempty"`
	Function FunctionDelta `json:"function"`
}

// Delta is the incremental part of one choice
type Delta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// Choice wraps one delta
type Choice struct {
	Delta Delta `json:"delta"`
}

// ErrorFrame reports a failure that happened after the stream started
type ErrorFrame struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Chunk is one decoded `data:` frame
type Chunk struct {
	Choices []Choice    `json:"choices,omitempty"`
	Error   *ErrorFrame `json:"error,omitempty"`
}

// Content returns the text delta of the first choice
func (c Chunk) Content() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// Decoder turns server-sent-event bytes into chunks. Input may be split at
// any byte. A data line that does not parse is held back and joined with the
// following line, which covers JSON split by a stray newline; once a new
// field line arrives the held line is dropped as malformed.
type Decoder struct {
	buf       string
	pending   string
	done      bool
	malformed []error
}

// NewDecoder creates an empty decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Done reports whether the [DONE] marker has been seen
func (d *Decoder) Done() bool {
	return d.done
}

// Err reports the frames dropped so far because they never parsed
func (d *Decoder) Err() error {
	return errors.Join(d.malformed...)
}

// Feed appends data to the buffer and returns every chunk that became
// complete. Blank lines, comment lines and non-data fields are skipped.
func (d *Decoder) Feed(data []byte) []Chunk {
	if d.done {
		return nil
	}
	d.buf += string(data)

	var chunks []Chunk
	for !d.done {
		idx := strings.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSuffix(d.buf[:idx], "\r")
		d.buf = d.buf[idx+1:]
		if chunk, ok := d.line(line); ok {
			chunks = append(chunks, chunk)
		}
	}
	if d.done {
		d.buf = ""
	}
	return chunks
}

func (d *Decoder) line(line string) (Chunk, bool) {
	if line == "" || strings.HasPrefix(line, ":") {
		return Chunk{}, false
	}

	if d.pending != "" {
		if !isField(line) {
			return d.parse(d.pending + line)
		}
		d.drop()
	}

	if !strings.HasPrefix(line, dataPrefix) {
		return Chunk{}, false
	}
	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == doneMarker {
		d.done = true
		return Chunk{}, false
	}
	return d.parse(payload)
}

// parse decodes payload or holds it back for the next line
func (d *Decoder) parse(payload string) (Chunk, bool) {
	var chunk Chunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		d.pending = payload
		return Chunk{}, false
	}
	d.pending = ""
	return chunk, true
}

func (d *Decoder) drop() {
	d.malformed = append(d.malformed, fmt.Errorf("%w: %q", ErrMalformedFrame, truncate(d.pending, 120)))
	d.pending = ""
}

func isField(line string) bool {
	for _, field := range []string{"data:", "event:", "id:", "retry:"} {
		if strings.HasPrefix(line, field) {
			return true
		}
	}
	return false
}

// Finish flushes a final unterminated line and reports data that never parsed
func (d *Decoder) Finish() ([]Chunk, error) {
	var chunks []Chunk
	if !d.done {
		if rest := strings.TrimSpace(d.buf); rest != "" {
			d.buf = ""
			chunks = d.Feed([]byte(rest + "\n"))
		}
	}
	d.buf = ""

	err := d.Err()
	if d.pending != "" {
		err = errors.Join(err, fmt.Errorf("%w: %q", ErrIncompleteStream, truncate(d.pending, 120)))
		d.pending = ""
	}
	return chunks, err
}

// Read decodes r until [DONE] or EOF and passes every chunk to onChunk
func Read(r io.Reader, onChunk func(Chunk) error) error {
	dec := NewDecoder()
	buf := make([]byte, readSize)

	for !dec.Done() {
		n, err := r.Read(buf)
		if n > 0 {
			for _, chunk := range dec.Feed(buf[:n]) {
				if cbErr := onChunk(chunk); cbErr != nil {
					return cbErr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read stream: %w", err)
		}
	}

	chunks, err := dec.Finish()
	for _, chunk := range chunks {
		if cbErr := onChunk(chunk); cbErr != nil {
			return cbErr
		}
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
