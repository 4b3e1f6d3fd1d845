package aggregator

import (
	"context"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

// State is the reducer state
type State int

const (
	Open State = iota
	Closed
)

func (s State) String() string {
	if s == Closed {
		return "closed"
	}
	return "open"
}

// Accumulator is the folded state of one stream. It is a plain value:
// Reduce never mutates its input.
type Accumulator struct {
	State     State
	Answer    string
	Citations []types.Citation
	Usage     *types.Usage
	Model     string

	// Received counts every chunk, Malformed the skipped ones
	Received  int
	Malformed int

	// Failure is the I/O error that closed the stream, if any
	Failure error
}

// Reduce folds one chunk into acc. Text concatenates in arrival order;
// citations and usage are replaced by the latest value. Malformed chunks
// are counted and otherwise ignored. Chunks after Closed are ignored.
func Reduce(acc Accumulator, chunk types.StreamChunk) Accumulator {
	if acc.State == Closed {
		return acc
	}
	acc.Received++

	if chunk.Malformed {
		acc.Malformed++
		return acc
	}
	if chunk.Err != nil {
		acc.Failure = chunk.Err
		acc.State = Closed
		return acc
	}

	acc.Answer += chunk.Text
	if c, ok := chunk.Citations.Get(); ok {
		acc.Citations = append([]types.Citation(nil), c...)
	}
	if u, ok := chunk.Usage.Get(); ok {
		acc.Usage = &u
	}
	if chunk.Model != "" {
		acc.Model = chunk.Model
	}
	if chunk.Terminal {
		acc.State = Closed
	}
	return acc
}

// Close marks the stream finished, as on connection close
func Close(acc Accumulator) Accumulator {
	acc.State = Closed
	return acc
}

// HasContent reports whether the stream produced an answer or sources
func (a Accumulator) HasContent() bool {
	return a.Answer != "" || len(a.Citations) > 0
}

// Corrupted reports a stream that yielded nothing usable because frames
// were unreadable. A clean stream with an empty answer is not corrupted.
func (a Accumulator) Corrupted() bool {
	return !a.HasContent() && a.Malformed > 0
}

// Degraded reports a usable stream that lost frames
func (a Accumulator) Degraded() bool {
	return a.HasContent() && a.Malformed > 0
}

// Check returns the error a closed accumulator represents, if any
func (a Accumulator) Check() error {
	if a.Failure != nil {
		return a.Failure
	}
	if a.Corrupted() {
		return apperrors.Newf(apperrors.ErrStreamCorrupted, "%d of %d frames malformed", a.Malformed, a.Received)
	}
	return nil
}

// Aggregate drains chunks until the terminal marker or channel close. If
// ctx ends first, the partial state is discarded and ctx's error returned.
func Aggregate(ctx context.Context, chunks <-chan types.StreamChunk) (Accumulator, error) {
	var acc Accumulator
	for {
		if err := ctx.Err(); err != nil {
			return Accumulator{}, err
		}
		select {
		case <-ctx.Done():
			return Accumulator{}, ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				acc = Close(acc)
				return acc, acc.Check()
			}
			acc = Reduce(acc, chunk)
			if acc.State == Closed {
				return acc, acc.Check()
			}
		}
	}
}
