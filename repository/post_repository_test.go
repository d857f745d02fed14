package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/healthbbs/models"
)

func createPost(t *testing.T, repo *PostRepository, owner, title, content string) *models.Post {
	t.Helper()
	p, err := repo.Create(context.Background(), NewPost{
		UserID:   owner,
		Category: models.CategoryCommunity,
		Title:    title,
		Content:  content,
	})
	require.NoError(t, err)
	return p
}

func TestPostCreate_ZeroCountersAndEqualTimestamps(t *testing.T) {
	repo := NewPostRepository(newTestDB(t))
	ctx := context.Background()

	p, err := repo.Create(ctx, NewPost{
		ID:       "p-1",
		UserID:   "a@example.com",
		Category: models.CategoryDiet,
		Title:    "오늘의 식단",
		Content:  "현미밥",
		FileURLs: []string{"/static/uploads/posts/p-1/x.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)
	assert.Zero(t, p.ViewCount)
	assert.Zero(t, p.CommentCount)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)

	stored, err := repo.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Zero(t, stored.ViewCount)
	assert.Zero(t, stored.CommentCount)
	assert.True(t, stored.CreatedAt.Equal(stored.UpdatedAt))
	assert.Equal(t, models.StringList{"/static/uploads/posts/p-1/x.jpg"}, stored.FileURLs)
}

func TestPostCreate_GeneratesIDAndEmptyFileList(t *testing.T) {
	repo := NewPostRepository(newTestDB(t))
	p := createPost(t, repo, "a@example.com", "title", "body")
	assert.NotEmpty(t, p.ID)

	stored, err := repo.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.FileURLs)
	assert.Empty(t, stored.FileURLs)
}

func TestPostCreate_Validation(t *testing.T) {
	repo := NewPostRepository(newTestDB(t))
	ctx := context.Background()

	tests := []struct {
		name  string
		in    NewPost
		field string
	}{
		{"empty title", NewPost{UserID: "a", Category: models.CategoryCommunity}, "title"},
		{"long title", NewPost{UserID: "a", Category: models.CategoryCommunity, Title: strings.Repeat("가", 101)}, "title"},
		{"unknown board", NewPost{UserID: "a", Category: "자유", Title: "t"}, "post_type"},
		{"missing owner", NewPost{Category: models.CategoryCommunity, Title: "t"}, "user_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Create(ctx, tt.in)
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Fields[0].Field)
		})
	}

	_, err := repo.Create(ctx, NewPost{UserID: "a", Category: models.CategoryCommunity, Title: strings.Repeat("가", 100)})
	assert.NoError(t, err)
}

func TestPostCreate_DuplicateID(t *testing.T) {
	repo := NewPostRepository(newTestDB(t))
	ctx := context.Background()
	in := NewPost{ID: "dup", UserID: "a", Category: models.CategoryCommunity, Title: "first"}
	_, err := repo.Create(ctx, in)
	require.NoError(t, err)

	in.Title = "second"
	_, err = repo.Create(ctx, in)
	assert.ErrorIs(t, err, ErrConflict)

	stored, err := repo.Get(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Title)
}

func TestGetDetail_CountsEveryRead(t *testing.T) {
	repo := NewPostRepository(newTestDB(t))
	ctx := context.Background()
	p := createPost(t, repo, "a", "t", "c")

	for i := 1; i <= 5; i++ {
		got, err := repo.GetDetail(ctx, p.ID)
		require.NoError(t, err)
		assert.EqualValues(t, i, got.ViewCount)
		assert.Equal(t, "t", got.Title)
	}
}

// The SQLite test database has a single connection, so callers are serialized at the pool
// and this cannot reproduce a lost update. What it does check is that each caller sees the
// count its own increment produced: the returned values are exactly 1..N with no repeats.
func TestGetDetail_ConcurrentReadsLoseNoIncrements(t *testing.T) {
	repo := NewPostRepository(newTestDB(t))
	ctx := context.Background()
	p := createPost(t, repo, "a", "t", "c")

	const callers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make([]int64, 0, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := repo.GetDetail(ctx, p.ID)
			if err != nil {
				return
			}
			mu.Lock()
			seen = append(seen, got.ViewCount)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, callers)
	sort.Slice(seen, func(i, j int) bool { return seen[i] < seen[j] })
	for i, v := range seen {
		assert.EqualValues(t, i+1, v, "each caller observes its own increment")
	}

	stored, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, callers, stored.ViewCount)
}

func TestGetDetail_Missing(t *testing.T) {
	repo := NewPostRepository(newTestDB(t))
	_, err := repo.GetDetail(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_OwnerOnly(t *testing.T) {
	clock := stepClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), time.Minute)
	repo := NewPostRepository(newTestDB(t), WithClock(clock))
	ctx := context.Background()
	p := createPost(t, repo, "owner@example.com", "before", "body")

	_, err := repo.Update(ctx, PostUpdate{ID: p.ID, UserID: "other@example.com", Title: "hijack", Category: models.CategoryCommunity})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = repo.Update(ctx, PostUpdate{ID: "missing", UserID: "other@example.com", Title: "hijack", Category: models.CategoryCommunity})
	assert.ErrorIs(t, err, ErrForbidden, "missing and foreign posts must be indistinguishable")

	stored, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "before", stored.Title)

	updated, err := repo.Update(ctx, PostUpdate{ID: p.ID, UserID: "owner@example.com", Title: "after", Content: "new", Category: models.CategoryLibrary})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Title)
	assert.Equal(t, models.CategoryLibrary, updated.Category)
	assert.Equal(t, "owner@example.com", updated.UserID)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
}

func TestUpdate_FileListReplacement(t *testing.T) {
	repo := NewPostRepository(newTestDB(t))
	ctx := context.Background()
	p, err := repo.Create(ctx, NewPost{UserID: "a", Category: models.CategoryCommunity, Title: "t", FileURLs: []string{"old"}})
	require.NoError(t, err)

	kept, err := repo.Update(ctx, PostUpdate{ID: p.ID, UserID: "a", Title: "t2", Category: models.CategoryCommunity})
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"old"}, kept.FileURLs)

	fresh := []string{"new-1", "new-2"}
	replaced, err := repo.Update(ctx, PostUpdate{ID: p.ID, UserID: "a", Title: "t3", Category: models.CategoryCommunity, FileURLs: &fresh})
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"new-1", "new-2"}, replaced.FileURLs)

	// unchanged values still count as a match
	same, err := repo.Update(ctx, PostUpdate{ID: p.ID, UserID: "a", Title: "t3", Category: models.CategoryCommunity, FileURLs: &fresh})
	require.NoError(t, err)
	assert.Equal(t, "t3", same.Title)
}

func TestDelete_OwnerOnly(t *testing.T) {
	repo := NewPostRepository(newTestDB(t))
	ctx := context.Background()
	p := createPost(t, repo, "a", "t", "c")

	assert.ErrorIs(t, repo.Delete(ctx, p.ID, "b"), ErrForbidden)
	assert.ErrorIs(t, repo.Delete(ctx, "missing", "b"), ErrForbidden)

	require.NoError(t, repo.Delete(ctx, p.ID, "a"))
	_, err := repo.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearch_LiteralCaseSensitive(t *testing.T) {
	repo := NewPostRepository(newTestDB(t))
	ctx := context.Background()
	inTitle := createPost(t, repo, "a", "Protein shake", "body")
	inBody := createPost(t, repo, "b", "lunch", "more Protein please")
	createPost(t, repo, "c", "protein lowercase", "nothing")
	// keyword only in an unrelated field
	createPost(t, repo, "Protein@example.com", "unrelated", "unrelated")
	createPost(t, repo, "d", "100% juice", "a_b")

	got, err := repo.Search(ctx, "Protein")
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{inTitle.ID, inBody.ID}, ids)

	pct, err := repo.Search(ctx, "%")
	require.NoError(t, err)
	assert.Len(t, pct, 1)

	none, err := repo.Search(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListByOwner_NewestFirst(t *testing.T) {
	clock := stepClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), time.Second)
	repo := NewPostRepository(newTestDB(t), WithClock(clock))
	first := createPost(t, repo, "a", "first", "")
	createPost(t, repo, "b", "other", "")
	second := createPost(t, repo, "a", "second", "")
	third := createPost(t, repo, "a", "third", "")

	got, err := repo.ListByOwner(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, []string{got[0].ID, got[1].ID, got[2].ID})

	empty, err := repo.ListByOwner(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestListByCategory(t *testing.T) {
	clock := stepClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), time.Second)
	repo := NewPostRepository(newTestDB(t), WithClock(clock))
	ctx := context.Background()
	older, err := repo.Create(ctx, NewPost{UserID: "a", Category: models.CategoryDiet, Title: "older"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, NewPost{UserID: "a", Category: models.CategoryCommunity, Title: "elsewhere"})
	require.NoError(t, err)
	newer, err := repo.Create(ctx, NewPost{UserID: "b", Category: models.CategoryDiet, Title: "newer"})
	require.NoError(t, err)

	got, err := repo.ListByCategory(ctx, models.CategoryDiet)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)

	_, err = repo.ListByCategory(ctx, "자유")
	assert.True(t, IsValidation(err))
}

func TestAllIDs(t *testing.T) {
	repo := NewPostRepository(newTestDB(t))
	a := createPost(t, repo, "a", "1", "")
	b := createPost(t, repo, "a", "2", "")
	ids, err := repo.AllIDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
}
