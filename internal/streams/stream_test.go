package streams

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendStream_AppendsAfterSource(t *testing.T) {
	base := SliceStream([]int{1, 2, 3})
	appended := AppendStream[int](base, 4, 5)

	got, err := All(appended)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestAppendStream_EmptyBase(t *testing.T) {
	base := SliceStream([]int{})
	appended := AppendStream[int](base, 1, 2)

	got, err := All(appended)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, got)
}

func TestAppendStream_ErrorInSourceSkipsTail(t *testing.T) {
	testErr := errors.New("boom")
	base := &erroringStream[int]{items: []int{1, 2}, err: testErr}
	appended := AppendStream[int](base, 3, 4)

	got, err := All(appended)
	require.ErrorIs(t, err, testErr)
	require.Equal(t, []int{1, 2}, got)
}

func TestMapErr_PropagatesError(t *testing.T) {
	base := SliceStream([]int{1, 2, 0, 3})
	mapped := MapErr(base, func(i int) (int, error) {
		if i == 0 {
			return 0, errors.New("zero not allowed")
		}

		return i * 2, nil
	})

	got, err := All(mapped)
	require.Error(t, err)
	require.Equal(t, []int{2, 4}, got)
}

func TestFilterMapErr_SkipsFilteredItems(t *testing.T) {
	base := SliceStream([]int{1, 2, 3, 4})
	mapped := FilterMapErr(base, func(i int) (int, bool, error) {
		if i%2 != 0 {
			return 0, false, nil
		}

		return i, true, nil
	})

	got, err := All(mapped)
	require.NoError(t, err)
	require.Equal(t, []int{2, 4}, got)
}

func TestChannelStream_DrainsUntilClose(t *testing.T) {
	items := make(chan int, 3)
	items <- 1
	items <- 2
	items <- 3
	close(items)

	s := NewChannelStream[int](items, nil, nil)

	got, err := All(s)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, got)
	require.NoError(t, s.Close())
}

// erroringStream is a test helper that yields items then a terminal error.
type erroringStream[T any] struct {
	items []T
	index int
	err   error
}

func (s *erroringStream[T]) Next() bool {
	if s.index < len(s.items) {
		s.index++
		return true
	}

	return false
}

func (s *erroringStream[T]) Current() T {
	if s.index > 0 && s.index <= len(s.items) {
		return s.items[s.index-1]
	}

	var zero T

	return zero
}

func (s *erroringStream[T]) Err() error {
	if s.index >= len(s.items) {
		return s.err
	}

	return nil
}

func (s *erroringStream[T]) Close() error { return nil }
