package util

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// CommandLogger is an io.Writer suitable for an exec.Cmd's Stdout/Stderr. It
// hands every complete line to Log and remembers the last few lines so
// callers can report what a failing tool printed.
type CommandLogger struct {
	Log      func(string)
	TailSize int

	buf   bytes.Buffer
	tail  []string
	mutex sync.Mutex
}

const defaultTailSize = 5

var _ io.WriteCloser = (*CommandLogger)(nil) // ensures we conform to the WriteCloser interface

func (cl *CommandLogger) Write(data []byte) (n int, err error) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	n, err = cl.buf.Write(data)
	if err != nil {
		return
	}

	for {
		var line *string
		line, err = cl.getLine()
		if err != nil {
			return
		}

		if line == nil {
			return // no line found in the buffer yet...
		}

		if *line != "" {
			cl.emit(*line)
		}
	}
}

func (cl *CommandLogger) Close() error {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	if cl.buf.Len() > 0 {
		cl.emit(cl.buf.String()) // flush
	}

	cl.buf.Truncate(0)
	return nil
}

// Tail returns the most recent lines written, joined by "; ".
func (cl *CommandLogger) Tail() string {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	return strings.Join(cl.tail, "; ")
}

//--------------------------------------------------------------------------------
// private

func (cl *CommandLogger) emit(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if cl.Log != nil {
		cl.Log(line)
	}

	size := cl.TailSize
	if size <= 0 {
		size = defaultTailSize
	}

	cl.tail = append(cl.tail, line)
	if len(cl.tail) > size {
		cl.tail = cl.tail[len(cl.tail)-size:]
	}
}

// using our own instead of bufio.NewScanner as that will return all the bytes,
// but we want to wait for more writes to get the next newline
func (cl *CommandLogger) getLine() (*string, error) {
	i := bytes.IndexRune(cl.buf.Bytes(), '\n')
	if i < 0 {
		return nil, nil
	}

	i++ // length is offset plus one

	buf := make([]byte, i)
	n, err := cl.buf.Read(buf)
	if err != nil {
		return nil, err
	}

	if n != i {
		return nil, io.ErrShortBuffer
	}

	str := string(buf[0 : i-1]) // do not include the newline
	return &str, nil
}
