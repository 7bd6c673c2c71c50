package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taedam/internal/shared/timeutil"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMessageRoundtrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveMessage(ctx, Message{SessionID: "s1", Role: "user", Text: "안녕", CreatedAt: "2026-08-26T10:00:00Z"}))
	require.NoError(t, db.SaveMessage(ctx, Message{SessionID: "s1", Role: "assistant", Text: "엄마 안녕!", CreatedAt: "2026-08-26T10:00:05Z"}))
	require.NoError(t, db.SaveMessage(ctx, Message{SessionID: "s2", Role: "user", Text: "다른 세션", CreatedAt: "2026-08-26T11:00:00Z"}))

	msgs, err := db.RecentMessages(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	// chronological order
	assert.Equal(t, "안녕", msgs[0].Text)
	assert.Equal(t, "엄마 안녕!", msgs[1].Text)

	msgs, err = db.RecentMessages(ctx, "s1", 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "엄마 안녕!", msgs[0].Text)
}

func TestMessagesByDate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveMessage(ctx, Message{SessionID: "s1", Role: "user", Text: "어제", CreatedAt: "2026-08-25T22:00:00Z"}))
	require.NoError(t, db.SaveMessage(ctx, Message{SessionID: "s1", Role: "user", Text: "오늘", CreatedAt: "2026-08-26T09:00:00Z"}))

	msgs, err := db.MessagesByDate(ctx, "s1", "2026-08-26")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "오늘", msgs[0].Text)

	msgs, err = db.MessagesByDate(ctx, "s1", "2026-08-27")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSaveMessageStampsLogicalDay(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// No CreatedAt: the store stamps it. The stamp must land on the KST
	// logical day so MessagesByDate finds the message regardless of the
	// host timezone.
	require.NoError(t, db.SaveMessage(ctx, Message{SessionID: "s1", Role: "user", Text: "안녕"}))

	msgs, err := db.MessagesByDate(ctx, "s1", timeutil.Today())
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	ts, err := time.Parse(time.RFC3339, msgs[0].CreatedAt)
	require.NoError(t, err)
	_, offset := ts.Zone()
	assert.Equal(t, 9*60*60, offset)
}

func TestDeleteMessages(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveMessage(ctx, Message{SessionID: "s1", Role: "user", Text: "하나", CreatedAt: "2026-08-26T09:00:00Z"}))
	require.NoError(t, db.SaveMessage(ctx, Message{SessionID: "s1", Role: "user", Text: "둘", CreatedAt: "2026-08-26T09:01:00Z"}))

	deleted, err := db.DeleteLastMessage(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, deleted)

	msgs, err := db.RecentMessages(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "하나", msgs[0].Text)

	require.NoError(t, db.DeleteSessionMessages(ctx, "s1"))
	msgs, err = db.RecentMessages(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	deleted, err = db.DeleteLastMessage(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestProfileUpserts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	baby, err := db.GetBaby(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, baby)

	require.NoError(t, db.UpsertBaby(ctx, BabyProfile{SessionID: "s1", Name: "콩이", Week: 20, Gender: "F"}))
	require.NoError(t, db.UpsertBaby(ctx, BabyProfile{SessionID: "s1", Name: "콩이", Week: 22, Gender: "F"}))

	baby, err = db.GetBaby(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, baby)
	assert.Equal(t, 22, baby.Week)

	require.NoError(t, db.UpsertMother(ctx, MotherProfile{SessionID: "s1", Name: "지은", Age: 32}))
	mother, err := db.GetMother(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, mother)
	assert.Equal(t, "지은", mother.Name)
}

func TestPersonaVersioning(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p, err := db.LatestPersona(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, p)

	v, err := db.InsertPersonaVersion(ctx, "s1", `{"name":"콩이"}`)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = db.InsertPersonaVersion(ctx, "s1", `{"name":"콩이","traits":["호기심"]}`)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	p, err = db.LatestPersona(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 2, p.Version)
	assert.Contains(t, p.PersonaJSON, "호기심")
}

func TestWeeklySummaryUpsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	w, err := db.GetWeeklySummary(ctx, "s1", "2026-08-24")
	require.NoError(t, err)
	assert.Nil(t, w)

	require.NoError(t, db.UpsertWeeklySummary(ctx, WeeklySummary{
		SessionID: "s1", WeekStart: "2026-08-24", WeekEnd: "2026-08-30", Summary: "첫 요약",
	}))
	require.NoError(t, db.UpsertWeeklySummary(ctx, WeeklySummary{
		SessionID: "s1", WeekStart: "2026-08-24", WeekEnd: "2026-08-30", Summary: "고친 요약",
	}))

	w, err = db.GetWeeklySummary(ctx, "s1", "2026-08-24")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "고친 요약", w.Summary)
}

func TestDiaryRoundtrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveDiary(ctx, DiaryEntry{
		SessionID: "s1", Date: "2026-08-26", Title: "첫 태동", Content: "오늘 엄마가 나를 느꼈대", UsedChatsJSON: "[1,2]",
	}))
	// Regenerating the same day replaces the entry.
	require.NoError(t, db.SaveDiary(ctx, DiaryEntry{
		SessionID: "s1", Date: "2026-08-26", Title: "첫 태동!", Content: "다시 쓴 일기",
	}))
	require.NoError(t, db.SaveDiary(ctx, DiaryEntry{
		SessionID: "s1", Date: "2026-08-25", Title: "산책", Content: "엄마랑 산책했어",
	}))

	entry, err := db.DiaryByDate(ctx, "s1", "2026-08-26")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "다시 쓴 일기", entry.Content)

	entries, err := db.ListDiaries(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2026-08-26", entries[0].Date, "newest date first")

	deleted, err := db.DeleteDiary(ctx, "s1", "2026-08-25")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = db.DeleteDiary(ctx, "s1", "2026-08-25")
	require.NoError(t, err)
	assert.False(t, deleted)
}
