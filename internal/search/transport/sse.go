package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

const maxFrameSize = 1 << 20

var (
	dataPrefix = []byte("data:")
	doneFrame  = []byte("[DONE]")
)

// readSSE reads "data:" frames from body and decodes each one into a chunk.
// The channel is closed when the stream ends, the body fails, or ctx is
// cancelled; the body is always closed.
func readSSE(ctx context.Context, backend types.BackendID, body io.ReadCloser) <-chan types.StreamChunk {
	ch := make(chan types.StreamChunk, 16)

	go func() {
		defer close(ch)
		defer body.Close()

		send := func(c types.StreamChunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		reader := bufio.NewReaderSize(body, 64*1024)
		for {
			line, oversized, err := readLine(reader)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if err != io.EOF {
					code := apperrors.ErrStreamInterrupted
					if apperrors.IsTimeout(err) {
						code = apperrors.ErrTimeout
					}
					send(types.StreamChunk{Err: apperrors.Wrap(err, code).WithBackend(string(backend))})
				}
				return
			}

			if len(line) == 0 || line[0] == ':' {
				continue
			}
			if !bytes.HasPrefix(line, dataPrefix) {
				continue
			}
			// an oversized frame cannot be decoded but does not end the stream
			if oversized {
				if !send(types.StreamChunk{Malformed: true}) {
					return
				}
				continue
			}
			data := bytes.TrimSpace(line[len(dataPrefix):])
			if len(data) == 0 {
				continue
			}

			if bytes.Equal(data, doneFrame) {
				send(types.StreamChunk{Terminal: true})
				return
			}

			chunk := DecodeFrame(backend, data)
			if !send(chunk) || chunk.Err != nil {
				return
			}
		}
	}()

	return ch
}

// readLine returns the next line without its terminator. A line longer than
// maxFrameSize is read to its end, only its first maxFrameSize bytes are
// kept, and it is reported as oversized.
func readLine(r *bufio.Reader) ([]byte, bool, error) {
	var line []byte
	size := 0
	for {
		frag, more, err := r.ReadLine()
		if err != nil {
			return line, size > maxFrameSize, err
		}
		size += len(frag)
		if size <= maxFrameSize {
			line = append(line, frag...)
		}
		if !more {
			return line, size > maxFrameSize, nil
		}
	}
}
