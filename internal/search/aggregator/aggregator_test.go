package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

var cite = types.Citation{Ordinal: 1, URL: "https://x.example"}

func text(s string) types.StreamChunk { return types.StreamChunk{Text: s} }

func citations(c ...types.Citation) types.StreamChunk {
	return types.StreamChunk{Citations: types.Some(c)}
}

func fold(chunks ...types.StreamChunk) Accumulator {
	var acc Accumulator
	for _, c := range chunks {
		acc = Reduce(acc, c)
	}
	return acc
}

func feed(chunks ...types.StreamChunk) <-chan types.StreamChunk {
	ch := make(chan types.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func TestReduce(t *testing.T) {
	terminal := types.StreamChunk{Terminal: true}
	malformed := types.StreamChunk{Malformed: true}
	other := types.Citation{Ordinal: 1, URL: "https://y.example"}

	tests := []struct {
		name      string
		chunks    []types.StreamChunk
		answer    string
		citations []types.Citation
		malformed int
		state     State
		corrupted bool
		degraded  bool
	}{
		{
			name:      "text concatenates and citations arrive whole",
			chunks:    []types.StreamChunk{text("A"), text("B"), citations(cite), terminal},
			answer:    "AB",
			citations: []types.Citation{cite},
			state:     Closed,
		},
		{
			name:      "one corrupted frame between valid frames",
			chunks:    []types.StreamChunk{text("A"), malformed, text("B"), terminal},
			answer:    "AB",
			malformed: 1,
			state:     Closed,
			degraded:  true,
		},
		{
			name:      "later citations replace earlier ones",
			chunks:    []types.StreamChunk{citations(cite), text("x"), citations(other)},
			answer:    "x",
			citations: []types.Citation{other},
			state:     Open,
		},
		{
			name:      "only malformed frames",
			chunks:    []types.StreamChunk{malformed, malformed, terminal},
			malformed: 2,
			state:     Closed,
			corrupted: true,
		},
		{
			name:   "clean empty answer",
			chunks: []types.StreamChunk{terminal},
			state:  Closed,
		},
		{
			name:   "chunks after terminal are ignored",
			chunks: []types.StreamChunk{text("A"), terminal, text("B")},
			answer: "A",
			state:  Closed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := fold(tt.chunks...)
			assert.Equal(t, tt.answer, acc.Answer)
			assert.Equal(t, tt.citations, acc.Citations)
			assert.Equal(t, tt.malformed, acc.Malformed)
			assert.Equal(t, tt.state, acc.State)
			assert.Equal(t, tt.corrupted, acc.Corrupted())
			assert.Equal(t, tt.degraded, acc.Degraded())
		})
	}
}

func TestReduce_UsageAndModelLastWins(t *testing.T) {
	acc := fold(
		types.StreamChunk{Usage: types.Some(types.Usage{TotalTokens: 1}), Model: "a"},
		types.StreamChunk{Usage: types.Some(types.Usage{TotalTokens: 9}), Model: "b"},
		text("done"),
	)
	require.NotNil(t, acc.Usage)
	assert.Equal(t, 9, acc.Usage.TotalTokens)
	assert.Equal(t, "b", acc.Model)
	assert.Equal(t, 3, acc.Received)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	before := fold(citations(cite))
	after := Reduce(before, citations(types.Citation{Ordinal: 1, URL: "https://z.example"}))
	assert.Equal(t, "https://x.example", before.Citations[0].URL)
	assert.Equal(t, "https://z.example", after.Citations[0].URL)
}

func TestAggregate(t *testing.T) {
	acc, err := Aggregate(context.Background(), feed(text("A"), text("B"), citations(cite), types.StreamChunk{Terminal: true}))
	require.NoError(t, err)
	assert.Equal(t, "AB", acc.Answer)
	assert.Equal(t, []types.Citation{cite}, acc.Citations)
}

func TestAggregate_ConnectionCloseIsTerminal(t *testing.T) {
	acc, err := Aggregate(context.Background(), feed(text("partial"), text(" answer")))
	require.NoError(t, err)
	assert.Equal(t, Closed, acc.State)
	assert.Equal(t, "partial answer", acc.Answer)
}

func TestAggregate_Corrupted(t *testing.T) {
	_, err := Aggregate(context.Background(), feed(types.StreamChunk{Malformed: true}))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrStreamCorrupted))
	assert.Equal(t, apperrors.KindStreamCorrupted, apperrors.GetKind(apperrors.ExtractCode(err)))
}

func TestAggregate_EmptyStreamSucceeds(t *testing.T) {
	acc, err := Aggregate(context.Background(), feed())
	require.NoError(t, err)
	assert.Empty(t, acc.Answer)
	assert.False(t, acc.Corrupted())
}

func TestAggregate_IOFailure(t *testing.T) {
	failure := apperrors.Wrap(errors.New("connection reset"), apperrors.ErrStreamInterrupted)
	acc, err := Aggregate(context.Background(), feed(text("A"), types.StreamChunk{Err: failure}, text("B")))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrStreamInterrupted))
	assert.Equal(t, "A", acc.Answer)
}

func TestAggregate_CancellationDiscardsState(t *testing.T) {
	ch := make(chan types.StreamChunk)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var (
		acc Accumulator
		err error
	)
	go func() {
		defer close(done)
		acc, err = Aggregate(ctx, ch)
	}()

	ch <- text("A")
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("aggregate did not return after cancellation")
	}
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, acc.Answer)
	assert.Zero(t, acc.Received)
}
