// Package archive reads messages out of mbox files
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	mboxlib "github.com/emersion/go-mbox"
)

// Message is one raw message from an mbox, numbered from zero
type Message struct {
	Index int
	Raw   []byte
}

// Read calls fn for every message in r, in file order. It stops at the
// first error from the reader or from fn.
func Read(ctx context.Context, r io.Reader, fn func(Message) error) error {
	reader := mboxlib.NewReader(r)

	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return fmt.Errorf("message %d read: %w", idx, err)
		}

		if err := fn(Message{Index: idx, Raw: raw}); err != nil {
			return err
		}
	}
}

// ReadFile opens path and calls Read on it
func ReadFile(ctx context.Context, path string, fn func(Message) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	return Read(ctx, file, fn)
}
