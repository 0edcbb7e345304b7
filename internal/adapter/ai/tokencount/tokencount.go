// Package tokencount estimates prompt sizes for LLM calls.
//
// Gemini does not publish a local tokenizer, so prompts are measured with
// tiktoken's cl100k_base encoding as an approximation. The BPE ranks ship with
// the binary through the offline loader, so counting never touches the network.
package tokencount

import (
	"log/slog"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const defaultEncoding = "cl100k_base"

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Counter provides thread-safe token counting.
type Counter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// NewCounter creates a counter that lazily loads its encoding.
func NewCounter() *Counter { return &Counter{} }

// DefaultCounter is a process-wide counter.
var DefaultCounter = NewCounter()

func (c *Counter) encoding() (*tiktoken.Tiktoken, error) {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding(defaultEncoding)
	})
	return c.enc, c.err
}

// CountTokens returns the number of tokens in text.
func (c *Counter) CountTokens(text string) (int, error) {
	enc, err := c.encoding()
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// Estimate counts tokens, falling back to ~4 characters per token when the
// encoding cannot be loaded.
func (c *Counter) Estimate(text string) int {
	n, err := c.CountTokens(text)
	if err != nil {
		slog.Debug("token count fallback", slog.Any("error", err))
		return len(text) / 4
	}
	return n
}
