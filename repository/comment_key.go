package repository

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// authorTagLen is how many leading runes of the author id go into a comment key.
const authorTagLen = 5

// CommentKey identifies a comment within its post and orders comments chronologically.
// Ordering compares CreatedNanos numerically, then AuthorTag.
type CommentKey struct {
	CreatedNanos int64
	AuthorTag    string
}

// String renders the key as the external comment_id: <nanos>-<tag>.
func (k CommentKey) String() string {
	return strconv.FormatInt(k.CreatedNanos, 10) + "-" + k.AuthorTag
}

// Time returns the creation instant encoded in the key.
func (k CommentKey) Time() time.Time {
	return time.Unix(0, k.CreatedNanos).UTC()
}

// Less reports whether k sorts before other.
func (k CommentKey) Less(other CommentKey) bool {
	if k.CreatedNanos != other.CreatedNanos {
		return k.CreatedNanos < other.CreatedNanos
	}
	return k.AuthorTag < other.AuthorTag
}

// ParseCommentKey parses a comment_id produced by CommentKey.String.
func ParseCommentKey(raw string) (CommentKey, error) {
	idx := strings.IndexByte(raw, '-')
	if idx <= 0 {
		return CommentKey{}, errors.New("malformed comment id")
	}
	nanos, err := strconv.ParseInt(raw[:idx], 10, 64)
	if err != nil || nanos <= 0 {
		return CommentKey{}, fmt.Errorf("malformed comment id timestamp %q", raw[:idx])
	}
	tag := raw[idx+1:]
	if tag == "" || utf8.RuneCountInString(tag) > authorTagLen {
		return CommentKey{}, errors.New("malformed comment id author tag")
	}
	return CommentKey{CreatedNanos: nanos, AuthorTag: tag}, nil
}

// authorTag returns the first few runes of the author id.
func authorTag(author string) string {
	n := 0
	for i := range author {
		if n == authorTagLen {
			return author[:i]
		}
		n++
	}
	return author
}

// lastNanos backs monotonicNanos. Keys from one process never repeat or go backwards.
var lastNanos atomic.Int64

func monotonicNanos(now time.Time) int64 {
	candidate := now.UnixNano()
	for {
		prev := lastNanos.Load()
		next := candidate
		if next <= prev {
			next = prev + 1
		}
		if lastNanos.CompareAndSwap(prev, next) {
			return next
		}
	}
}
