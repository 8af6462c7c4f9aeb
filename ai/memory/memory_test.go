package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	driver, err := NewFileDriver(t.TempDir())
	require.NoError(t, err)
	store := NewStore(driver, DefaultLimits())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNameExtraction(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{"name mid-sentence", "hi my name is Zara nice to meet you", "Zara"},
		{"lowercase name capitalized", "my name is aria", "Aria"},
		{"interior capitalization kept", "My Name Is McKenzie", "McKenzie"},
		{"trailing punctuation stripped", "my name is Aria, i like painting", "Aria"},
		{"no match leaves name empty", "what's my name", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			rec, err := store.Update(context.Background(), "c1", tt.message)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, rec.UserName)
		})
	}
}

func TestNameOverwrittenOnSubsequentMatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, "c1", "my name is Aria")
	require.NoError(t, err)
	rec, err := store.Update(ctx, "c1", "actually my name is Zara now")
	require.NoError(t, err)
	assert.Equal(t, "Zara", rec.UserName)
}

func TestPreferenceCapture(t *testing.T) {
	store := newTestStore(t)
	rec, err := store.Update(context.Background(), "c1", "my name is Aria, i like painting")
	require.NoError(t, err)

	require.Len(t, rec.Preferences, 1)
	assert.Contains(t, rec.Preferences[0], "painting")
}

func TestRememberCommand(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Update(ctx, "c1", "remember my sister's birthday is in June")
	require.NoError(t, err)
	require.Len(t, rec.Facts, 1)
	assert.Equal(t, "my sister's birthday is in June", rec.Facts[0])

	// The command only fires at the start of a message.
	rec, err = store.Update(ctx, "c1", "do you remember what i said?")
	require.NoError(t, err)
	assert.Len(t, rec.Facts, 1)

	// Bare command with no fact is ignored.
	rec, err = store.Update(ctx, "c1", "remember")
	require.NoError(t, err)
	assert.Len(t, rec.Facts, 1)

	assert.Contains(t, rec.ContextSummary(), "my sister's birthday is in June")
}

func TestEmotionAndTopicRules(t *testing.T) {
	store := newTestStore(t)
	rec, err := store.Update(context.Background(), "c1", "i feel tired and sad after work")
	require.NoError(t, err)

	assert.Contains(t, rec.EmotionalTrends, "user often feels tired")
	assert.Contains(t, rec.EmotionalTrends, "user often feels sad")
	assert.Contains(t, rec.TopicInterests, "user talks about work")
}

func TestKeywordMatchesWholeWordsOnly(t *testing.T) {
	store := newTestStore(t)
	rec, err := store.Update(context.Background(), "c1", "the saddle needs repair")
	require.NoError(t, err)
	assert.Empty(t, rec.EmotionalTrends)
}

func TestTruncationInvariant(t *testing.T) {
	limits := Limits{
		MaxPreferences:     3,
		MaxEmotionalTrends: 3,
		MaxTopicInterests:  3,
		MaxHistory:         5,
		MaxShortTermTurns:  4,
	}
	driver, err := NewFileDriver(t.TempDir())
	require.NoError(t, err)
	store := NewStore(driver, limits)
	ctx := context.Background()

	var rec *Record
	for i := 0; i < 20; i++ {
		rec, err = store.Update(ctx, "c1", fmt.Sprintf("i like hobby%d", i))
		require.NoError(t, err)
	}

	assert.Len(t, rec.Preferences, 3)
	assert.Len(t, rec.History, 5)
	// Truncation drops the oldest entries, never the newest.
	assert.Equal(t, []string{"hobby17", "hobby18", "hobby19"}, rec.Preferences)
	assert.Equal(t, "i like hobby19", rec.History[len(rec.History)-1])
}

func TestContextSummaryIdempotent(t *testing.T) {
	store := newTestStore(t)
	rec, err := store.Update(context.Background(), "c1", "my name is Aria, i like painting and i feel happy")
	require.NoError(t, err)

	first := rec.ContextSummary()
	second := rec.ContextSummary()
	assert.Equal(t, first, second)
	assert.Contains(t, first, "Aria")
	assert.Contains(t, first, "painting")
}

func TestContextSummaryEmptyRecord(t *testing.T) {
	rec := NewRecord("c1")
	assert.Equal(t, "Nothing is known about the user yet.", rec.ContextSummary())
}

func TestLoadCreatesAndPersistsDefaultRecord(t *testing.T) {
	dir := t.TempDir()
	driver, err := NewFileDriver(dir)
	require.NoError(t, err)
	store := NewStore(driver, DefaultLimits())
	ctx := context.Background()

	rec, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, rec.UserName)
	assert.Empty(t, rec.History)

	// The default must have been persisted, not just returned.
	persisted, err := driver.Load(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, persisted)
}

func TestConversationIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conv-%d", i)
			name := fmt.Sprintf("User%d", i)
			for j := 0; j < 25; j++ {
				_, err := store.Update(ctx, id, fmt.Sprintf("my name is %s message %d", name, j))
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	rec0, err := store.Load(ctx, "conv-0")
	require.NoError(t, err)
	rec1, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)

	assert.Equal(t, "User0", rec0.UserName)
	assert.Equal(t, "User1", rec1.UserName)
	for _, h := range rec0.History {
		assert.NotContains(t, h, "User1")
	}
}

func TestUpdateSurfacesStorageError(t *testing.T) {
	store := NewStore(&failingDriver{}, DefaultLimits())
	_, err := store.Update(context.Background(), "c1", "hello")
	require.Error(t, err)

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "c1", storageErr.ConversationID)
}

type failingDriver struct{}

func (d *failingDriver) Load(ctx context.Context, conversationID string) (*Record, error) {
	return nil, fmt.Errorf("disk unavailable")
}

func (d *failingDriver) Save(ctx context.Context, rec *Record) error {
	return fmt.Errorf("disk unavailable")
}

func (d *failingDriver) Close() error { return nil }

func TestSessionContextBounds(t *testing.T) {
	s := NewSessionContext(3)
	for i := 0; i < 10; i++ {
		s.AddTurn("user", fmt.Sprintf("m%d", i))
	}

	turns := s.RecentTurns(10)
	require.Len(t, turns, 3)
	assert.Equal(t, "m7", turns[0].Content)
	assert.Equal(t, "m9", turns[2].Content)
}

func TestSessionEmotionalMemoryEviction(t *testing.T) {
	s := NewSessionContext(5)
	for i := 0; i < 15; i++ {
		s.AddEmotions([]string{fmt.Sprintf("tag%d", i)})
	}

	summary := s.EmotionalSummary()
	assert.NotContains(t, summary, "tag0,")
	assert.Contains(t, summary, "tag14")
}

func TestSQLiteDriverRoundtrip(t *testing.T) {
	driver, err := NewSQLiteDriver(t.TempDir() + "/memory.db")
	require.NoError(t, err)
	defer driver.Close()
	ctx := context.Background()

	missing, err := driver.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	rec := NewRecord("c1")
	rec.UserName = "Aria"
	rec.Preferences = append(rec.Preferences, "painting")
	require.NoError(t, driver.Save(ctx, rec))

	// Upsert path
	rec.UserName = "Zara"
	require.NoError(t, driver.Save(ctx, rec))

	loaded, err := driver.Load(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "Zara", loaded.UserName)
	assert.Equal(t, []string{"painting"}, loaded.Preferences)
}
