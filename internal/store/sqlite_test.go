package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/truthguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(id, identity string, ch domain.Channel, status domain.Status, verdict domain.Verdict, at time.Time) *domain.VerificationRecord {
	rec := &domain.VerificationRecord{
		ID:        id,
		Identity:  identity,
		Channel:   ch,
		Query:     "claim " + id,
		Status:    status,
		Verdict:   verdict,
		CreatedAt: at,
	}
	if status == domain.StatusOK {
		rec.Confidence = 0.5
	} else {
		rec.Diagnostic = "timeout"
	}
	return rec
}

func TestSQLite_RecordAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)

	require.NoError(t, s.RecordVerification(ctx, record("a", "alice", domain.ChannelTelegram, domain.StatusOK, domain.VerdictVerified, base)))
	require.NoError(t, s.RecordVerification(ctx, record("b", "bob", domain.ChannelWhatsApp, domain.StatusError, domain.VerdictUnverified, base.Add(time.Minute))))
	require.NoError(t, s.RecordVerification(ctx, record("c", "alice", domain.ChannelExtension, domain.StatusOK, domain.VerdictUnverified, base.Add(2*time.Minute))))

	all, err := s.ListHistory(ctx, domain.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)
	assert.Equal(t, base.UnixMilli(), all[2].CreatedAt.UnixMilli())

	assert.Equal(t, "timeout", all[1].Diagnostic)
	assert.Equal(t, domain.ChannelWhatsApp, all[1].Channel)
	assert.Empty(t, all[0].Diagnostic)

	alice, err := s.ListHistory(ctx, domain.HistoryFilter{Identity: "alice", Limit: 1})
	require.NoError(t, err)
	require.Len(t, alice, 1)
	assert.Equal(t, "c", alice[0].ID)
}

func TestSQLite_ListEmptyIsNotNil(t *testing.T) {
	s := newTestStore(t)

	recs, err := s.ListHistory(context.Background(), domain.HistoryFilter{Identity: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestSQLite_DuplicateIDRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := record("dup", "alice", domain.ChannelTelegram, domain.StatusOK, domain.VerdictVerified, time.Now())

	require.NoError(t, s.RecordVerification(ctx, rec))
	assert.Error(t, s.RecordVerification(ctx, rec))
}

func TestSQLite_Summary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	empty, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.Accuracy)
	assert.NotNil(t, empty.ByChannel)

	require.NoError(t, s.RecordVerification(ctx, record("1", "a", domain.ChannelTelegram, domain.StatusOK, domain.VerdictVerified, now)))
	require.NoError(t, s.RecordVerification(ctx, record("2", "a", domain.ChannelTelegram, domain.StatusOK, domain.VerdictUnverified, now)))
	require.NoError(t, s.RecordVerification(ctx, record("3", "b", domain.ChannelWhatsApp, domain.StatusOK, domain.VerdictVerified, now)))
	require.NoError(t, s.RecordVerification(ctx, record("4", "c", domain.ChannelExtension, domain.StatusError, domain.VerdictUnverified, now)))

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), sum.Total)
	assert.Equal(t, int64(2), sum.Verified)
	assert.Equal(t, int64(1), sum.Unverified)
	assert.Equal(t, int64(1), sum.Errors)
	assert.InDelta(t, 75.0, sum.Accuracy, 1e-9)
	assert.Equal(t, map[string]int64{"telegram": 2, "whatsapp": 1, "extension": 1}, sum.ByChannel)
}

func TestSQLite_PruneBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.RecordVerification(ctx, record("old", "a", domain.ChannelTelegram, domain.StatusOK, domain.VerdictVerified, now.Add(-48*time.Hour))))
	require.NoError(t, s.RecordVerification(ctx, record("new", "a", domain.ChannelTelegram, domain.StatusOK, domain.VerdictVerified, now)))

	deleted, err := s.PruneBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	recs, err := s.ListHistory(ctx, domain.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "new", recs[0].ID)
}

func TestSQLite_ConcurrentWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.RecordVerification(ctx, record(fmt.Sprintf("r-%d", i), "load", domain.ChannelExtension, domain.StatusOK, domain.VerdictUnverified, time.Now()))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), sum.Total)
}

func TestSQLite_Ping(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, clampLimit(0))
	assert.Equal(t, DefaultListLimit, clampLimit(-3))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, MaxListLimit, clampLimit(10_000))
}
