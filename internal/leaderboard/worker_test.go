package leaderboard

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/cyberhoot/internal/db/repository"
	ws "github.com/gokatarajesh/cyberhoot/pkg/http/ws"
)

type mockSnapshotStore struct {
	mock.Mock
}

func (m *mockSnapshotStore) Insert(ctx context.Context, s repository.Snapshot) (bool, error) {
	args := m.Called(ctx, s)
	return args.Bool(0), args.Error(1)
}

func (m *mockSnapshotStore) Latest(ctx context.Context, window string) (repository.Snapshot, error) {
	args := m.Called(ctx, window)
	return args.Get(0).(repository.Snapshot), args.Error(1)
}

func TestSnapshotWindowPersistsEntries(t *testing.T) {
	svc, _ := newTestService(t, ServiceOptions{})
	ctx := context.Background()
	require.NoError(t, svc.RecordResult(ctx, RecordRequest{Participant: "alice", Score: 150, CorrectCount: 1, QuestionCount: 1}))

	store := new(mockSnapshotStore)
	var saved repository.Snapshot
	store.On("Insert", mock.Anything, mock.AnythingOfType("repository.Snapshot")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(repository.Snapshot) }).
		Return(true, nil).Once()

	w := NewSnapshotWorker(svc, store, 0, 10, zerolog.Nop())
	require.NoError(t, w.snapshotWindow(ctx, WindowDaily))

	assert.Equal(t, WindowDaily, saved.Window)
	assert.Len(t, saved.SourceHash, 64)
	var entries []ws.LeaderboardEntry
	require.NoError(t, json.Unmarshal(saved.Entries, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "alice", entries[0].Participant)
	store.AssertExpectations(t)
}

func TestSnapshotWindowSkipsEmpty(t *testing.T) {
	svc, _ := newTestService(t, ServiceOptions{})
	store := new(mockSnapshotStore)

	w := NewSnapshotWorker(svc, store, 0, 10, zerolog.Nop())
	require.NoError(t, w.snapshotWindow(context.Background(), WindowMonthly))
	store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestSnapshotWorkerRunStopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t, ServiceOptions{})
	w := NewSnapshotWorker(svc, new(mockSnapshotStore), 0, 10, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Run(ctx))
}
