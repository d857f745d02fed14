package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentKey_RoundTrip(t *testing.T) {
	keys := []CommentKey{
		{CreatedNanos: 1714550400000000000, AuthorTag: "alice"},
		{CreatedNanos: 1, AuthorTag: "a-b@c"},
		{CreatedNanos: 42, AuthorTag: "김철수"},
	}
	for _, k := range keys {
		got, err := ParseCommentKey(k.String())
		require.NoError(t, err, k.String())
		assert.Equal(t, k, got)
	}
}

func TestParseCommentKey_Malformed(t *testing.T) {
	for _, raw := range []string{"", "-abc", "abc-def", "0-abc", "12-", "12-toolongtag", "-1-x"} {
		_, err := ParseCommentKey(raw)
		assert.Error(t, err, raw)
	}
}

func TestCommentKey_OrderIsNumeric(t *testing.T) {
	// a shorter decimal must still sort first
	small := CommentKey{CreatedNanos: 999, AuthorTag: "zzz"}
	big := CommentKey{CreatedNanos: 1000, AuthorTag: "aaa"}
	assert.True(t, small.Less(big))
	assert.False(t, big.Less(small))
	assert.True(t, CommentKey{CreatedNanos: 5, AuthorTag: "a"}.Less(CommentKey{CreatedNanos: 5, AuthorTag: "b"}))
}

func TestAuthorTag(t *testing.T) {
	assert.Equal(t, "alice", authorTag("alice@example.com"))
	assert.Equal(t, "bob", authorTag("bob"))
	assert.Equal(t, "김철수님안", authorTag("김철수님안녕하세요"))
}

func TestMonotonicNanos_StrictlyIncreasing(t *testing.T) {
	frozen := time.Unix(1700000000, 0)
	const workers, perWorker = 8, 200
	seen := make(chan int64, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := int64(0)
			for i := 0; i < perWorker; i++ {
				n := monotonicNanos(frozen)
				assert.Greater(t, n, prev)
				prev = n
				seen <- n
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for n := range seen {
		unique[n] = true
	}
	assert.Len(t, unique, workers*perWorker)
}
