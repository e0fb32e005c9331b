package reaction

import (
	"bytes"
	"context"
	"log/slog"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/hnreact/internal/database"
	"github.com/hitoshi/hnreact/internal/model"
	"github.com/hitoshi/hnreact/internal/repository"
)

// newSQLiteService はSQLiteに記事1件（ID=1）とユーザーを用意したServiceを返す。
func newSQLiteService(t *testing.T, emails ...string) *Service {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(database.DriverSQLite, filepath.Join(t.TempDir(), "reaction.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(database.DriverSQLite, db))

	dbx := database.WrapSQLite(db)
	items := repository.NewSQLiteItemRepo(dbx)
	users := repository.NewSQLiteUserRepo(dbx)

	require.NoError(t, items.ReplaceAll(ctx, []*model.Item{{ID: 1, Title: "item", Kind: "story"}}))
	for _, email := range emails {
		_, err := users.Ensure(ctx, &model.User{ID: uuid.New().String(), Email: email, CreatedAt: time.Now().UTC()})
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	return NewService(repository.NewSQLiteReactionRepo(dbx), nil, slog.New(slog.NewJSONHandler(&buf, nil)))
}

// TestSQLite_SetReactionTwiceEqualsOnce は同じ評価を2回設定しても1回と同じ集計になることを検証する。
func TestSQLite_SetReactionTwiceEqualsOnce(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t, alice.Email)

	once, err := svc.SetReaction(ctx, 1, alice, model.ReactionLiked)
	require.NoError(t, err)
	twice, err := svc.SetReaction(ctx, 1, alice, model.ReactionLiked)
	require.NoError(t, err)

	assert.Equal(t, model.Counts{Liked: 1}, once)
	assert.Equal(t, once, twice)

	list, err := svc.ListByUser(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// TestSQLite_MutualExclusion は任意の評価操作の後でもユーザーが片方にしか数えられないことを検証する。
func TestSQLite_MutualExclusion(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t, alice.Email)
	rnd := rand.New(rand.NewSource(1))

	for i := 0; i < 30; i++ {
		switch rnd.Intn(3) {
		case 0:
			_, err := svc.SetReaction(ctx, 1, alice, model.ReactionLiked)
			require.NoError(t, err)
		case 1:
			_, err := svc.SetReaction(ctx, 1, alice, model.ReactionDisliked)
			require.NoError(t, err)
		case 2:
			require.NoError(t, svc.ClearReaction(ctx, 1, alice))
		}

		counts, err := svc.GetCounts(ctx, 1)
		require.NoError(t, err)
		assert.LessOrEqual(t, counts.Liked+counts.Disliked, 1, "step %d: %+v", i, counts)
	}
}

// TestSQLite_ConcurrentToggles は同一ユーザーの同時切り替えが1行に収束することを検証する。
func TestSQLite_ConcurrentToggles(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t, alice.Email)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		state := model.ReactionLiked
		if i%2 == 0 {
			state = model.ReactionDisliked
		}
		wg.Add(1)
		go func(s model.ReactionState) {
			defer wg.Done()
			_, err := svc.SetReaction(ctx, 1, alice, s)
			assert.NoError(t, err)
		}(state)
	}
	wg.Wait()

	counts, err := svc.GetCounts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Liked+counts.Disliked)
}

// TestSQLite_AdminClearRemovesEveryUser は管理者の取り消しで記事の全評価が消えることを検証する。
func TestSQLite_AdminClearRemovesEveryUser(t *testing.T) {
	ctx := context.Background()
	bob := model.Identity{Email: "bob@example.com"}
	svc := newSQLiteService(t, alice.Email, bob.Email)

	_, err := svc.SetReaction(ctx, 1, alice, model.ReactionLiked)
	require.NoError(t, err)
	_, err = svc.SetReaction(ctx, 1, bob, model.ReactionDisliked)
	require.NoError(t, err)

	require.NoError(t, svc.ClearReaction(ctx, 1, bob))
	counts, err := svc.GetCounts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.Counts{Liked: 1}, counts)

	require.NoError(t, svc.ClearReaction(ctx, 1, admin))
	counts, err = svc.GetCounts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.Counts{}, counts)
}

func TestSQLite_SetReaction_UnknownItem(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t, alice.Email)

	_, err := svc.SetReaction(ctx, 404, alice, model.ReactionLiked)
	assert.True(t, model.IsCode(err, model.ErrCodeItemNotFound), "err = %v", err)

	list, err := svc.ListByUser(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, list)
}
