package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// maxLineSize caps one message. A longer line is answered with an internal
// error envelope and skipped; the loop keeps serving.
const maxLineSize = 1024 * 1024

type inbound struct {
	data    []byte
	tooLong bool
}

// ServeStdio runs the newline-delimited JSON-RPC loop. Messages are handled
// one at a time so responses keep request order. It returns when r reaches
// EOF or ctx is cancelled.
func ServeStdio(ctx context.Context, d *Dispatcher, r io.Reader, w io.Writer) error {
	lines := make(chan inbound)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		br := bufio.NewReader(r)
		for {
			line, tooLong, err := readLine(br)
			msg := inbound{tooLong: tooLong}
			if !tooLong {
				msg.data = bytes.TrimSpace(line)
			}
			if msg.tooLong || len(msg.data) > 0 {
				select {
				case lines <- msg:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err == io.EOF {
					err = nil
				}
				readErr <- err
				return
			}
		}
	}()

	out := bufio.NewWriter(w)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("read stdin: %w", err)
					}
				default:
				}
				return nil
			}
			var resp *Response
			if msg.tooLong {
				d.logger.Warn("oversized message skipped", "limit", maxLineSize)
				resp = errorResponse(nil, &RPCError{
					Code:    CodeInternalError,
					Message: fmt.Sprintf("internal error: message exceeds %d bytes", maxLineSize),
				})
			} else {
				resp = d.HandleMessage(ctx, msg.data)
			}
			if resp == nil {
				continue
			}
			if err := writeMessage(out, resp); err != nil {
				return err
			}
		}
	}
}

// readLine returns the next line, or tooLong with the rest of the line
// discarded when it exceeds maxLineSize.
func readLine(r *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > maxLineSize {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return line, tooLong, err
	}
}

func writeMessage(w *bufio.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return w.Flush()
}
