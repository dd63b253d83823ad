package loader

import (
	"errors"
	"sync/atomic"

	"github.com/vanderheijden86/treescope/pkg/debug"
)

// ErrStale marks a response that was overtaken by a newer request.
var ErrStale = errors.New("stale response discarded")

// Token identifies one in-flight fetch.
type Token uint64

// Sequencer hands out tokens so that only the response to the most recent
// request is applied. It is safe for concurrent use.
type Sequencer struct {
	cur atomic.Uint64
}

// Next starts a new request. Every earlier token becomes stale.
func (s *Sequencer) Next() Token {
	return Token(s.cur.Add(1))
}

// Current reports whether t is still the latest token.
func (s *Sequencer) Current(t Token) bool {
	return s.cur.Load() == uint64(t)
}

// Check returns ErrStale unless t is current.
func (s *Sequencer) Check(t Token) error {
	if !s.Current(t) {
		debug.Log("loader: dropping response %d, current is %d", t, s.cur.Load())
		return ErrStale
	}
	return nil
}
