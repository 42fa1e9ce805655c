package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"wagerbook/database"
	"wagerbook/models"
	"wagerbook/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedParty(t *testing.T, db *database.DB, id string) {
	t.Helper()
	_, err := NewPartyRepository(db).GetOrCreate(context.Background(), id, id)
	require.NoError(t, err)
}

func seedEscrow(t *testing.T, db *database.DB, creatorAmount, opponentAmount int64) *models.EscrowAccount {
	t.Helper()
	account := testutil.CreateTestEscrowAccount(creatorAmount, opponentAmount)
	require.NoError(t, NewEscrowRepository(db).Create(context.Background(), account))
	return account
}

func TestWagerRepository_CreateAndGet(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	seedParty(t, testDB.DB, "creator-1")
	escrow := seedEscrow(t, testDB.DB, 10000, 0)

	repo := NewWagerRepository(testDB.DB)
	wager := testutil.CreateTestWager("creator-1", escrow.ID)
	require.NoError(t, repo.Create(ctx, wager))
	require.NotZero(t, wager.ID)
	require.False(t, wager.CreatedAt.IsZero())

	saved, err := repo.GetByID(ctx, wager.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "creator-1", saved.CreatorID)
	assert.Nil(t, saved.OpponentID)
	assert.Equal(t, models.WagerStatusOpen, saved.Status)
	assert.Equal(t, int64(10000), saved.CreatorStake)
	assert.Equal(t, escrow.ID, saved.EscrowID)

	byEscrow, err := repo.GetByEscrowID(ctx, escrow.ID)
	require.NoError(t, err)
	require.NotNil(t, byEscrow)
	assert.Equal(t, wager.ID, byEscrow.ID)

	missing, err := repo.GetByID(ctx, 99999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWagerRepository_TransitionToMatched(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	seedParty(t, testDB.DB, "creator-1")
	seedParty(t, testDB.DB, "opponent-1")
	escrow := seedEscrow(t, testDB.DB, 10000, 0)

	repo := NewWagerRepository(testDB.DB)
	wager := testutil.CreateTestWager("creator-1", escrow.ID)
	require.NoError(t, repo.Create(ctx, wager))

	matched, err := repo.TransitionToMatched(ctx, wager.ID, "opponent-1", 10000, 20000, time.Now())
	require.NoError(t, err)
	require.True(t, matched)

	saved, err := repo.GetByID(ctx, wager.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WagerStatusMatched, saved.Status)
	require.NotNil(t, saved.OpponentID)
	assert.Equal(t, "opponent-1", *saved.OpponentID)
	assert.Equal(t, int64(10000), saved.OpponentStake)
	assert.Equal(t, int64(20000), saved.TotalValue)
	assert.NotNil(t, saved.MatchedAt)

	// Replays lose the status guard
	matched, err = repo.TransitionToMatched(ctx, wager.ID, "opponent-1", 10000, 20000, time.Now())
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestWagerRepository_ConcurrentAcceptance(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	seedParty(t, testDB.DB, "creator-1")
	const contenders = 8
	for i := 0; i < contenders; i++ {
		seedParty(t, testDB.DB, fmt.Sprintf("opponent-%d", i))
	}
	escrow := seedEscrow(t, testDB.DB, 10000, 0)

	repo := NewWagerRepository(testDB.DB)
	wager := testutil.CreateTestWager("creator-1", escrow.ID)
	require.NoError(t, repo.Create(ctx, wager))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		errs    []error
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(opponent string) {
			defer wg.Done()
			ok, err := repo.TransitionToMatched(ctx, wager.ID, opponent, 10000, 20000, time.Now())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if ok {
				winners = append(winners, opponent)
			}
		}(fmt.Sprintf("opponent-%d", i))
	}
	wg.Wait()

	require.Empty(t, errs)

	require.Len(t, winners, 1, "exactly one acceptor must win the race")

	saved, err := repo.GetByID(ctx, wager.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WagerStatusMatched, saved.Status)
	require.NotNil(t, saved.OpponentID)
	assert.Equal(t, winners[0], *saved.OpponentID)
}

func TestWagerRepository_TransitionToSettled(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	seedParty(t, testDB.DB, "creator-1")
	seedParty(t, testDB.DB, "opponent-1")
	repo := NewWagerRepository(testDB.DB)

	t.Run("from active", func(t *testing.T) {
		escrow := seedEscrow(t, testDB.DB, 10000, 10000)
		wager := testutil.CreateTestMatchedWager("creator-1", "opponent-1", escrow.ID)
		wager.Status = models.WagerStatusActive
		require.NoError(t, repo.Create(ctx, wager))

		prior, settled, err := repo.TransitionToSettled(ctx, wager.ID, "creator-1", time.Now())
		require.NoError(t, err)
		require.True(t, settled)
		assert.Equal(t, models.WagerStatusActive, prior)

		saved, err := repo.GetByID(ctx, wager.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WagerStatusSettled, saved.Status)
		require.NotNil(t, saved.WinnerID)
		assert.Equal(t, "creator-1", *saved.WinnerID)
		assert.NotNil(t, saved.SettledAt)

		// Second settlement attempt loses the guard
		_, settled, err = repo.TransitionToSettled(ctx, wager.ID, "opponent-1", time.Now())
		require.NoError(t, err)
		assert.False(t, settled)
	})

	t.Run("from pending settlement", func(t *testing.T) {
		escrow := seedEscrow(t, testDB.DB, 10000, 10000)
		wager := testutil.CreateTestMatchedWager("creator-1", "opponent-1", escrow.ID)
		wager.Status = models.WagerStatusPendingSettlement
		require.NoError(t, repo.Create(ctx, wager))

		prior, settled, err := repo.TransitionToSettled(ctx, wager.ID, "opponent-1", time.Now())
		require.NoError(t, err)
		require.True(t, settled)
		assert.Equal(t, models.WagerStatusPendingSettlement, prior)
	})

	t.Run("not from open", func(t *testing.T) {
		escrow := seedEscrow(t, testDB.DB, 10000, 0)
		wager := testutil.CreateTestWager("creator-1", escrow.ID)
		require.NoError(t, repo.Create(ctx, wager))

		_, settled, err := repo.TransitionToSettled(ctx, wager.ID, "creator-1", time.Now())
		require.NoError(t, err)
		assert.False(t, settled)
	})
}

func TestWagerRepository_TransitionStatus(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	seedParty(t, testDB.DB, "creator-1")
	seedParty(t, testDB.DB, "opponent-1")
	repo := NewWagerRepository(testDB.DB)

	escrow := seedEscrow(t, testDB.DB, 10000, 10000)
	wager := testutil.CreateTestMatchedWager("creator-1", "opponent-1", escrow.ID)
	require.NoError(t, repo.Create(ctx, wager))

	ok, err := repo.TransitionStatus(ctx, wager.ID, models.WagerStatusMatched, models.WagerStatusActive)
	require.NoError(t, err)
	require.True(t, ok)

	// Illegal moves are rejected before touching the database
	_, err = repo.TransitionStatus(ctx, wager.ID, models.WagerStatusActive, models.WagerStatusOpen)
	require.Error(t, err)

	ok, err = repo.TransitionStatus(ctx, wager.ID, models.WagerStatusActive, models.WagerStatusPendingSettlement)
	require.NoError(t, err)
	require.True(t, ok)

	// Stale expectation loses the guard
	ok, err = repo.TransitionStatus(ctx, wager.ID, models.WagerStatusActive, models.WagerStatusPendingSettlement)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWagerRepository_DateSweepQueries(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	seedParty(t, testDB.DB, "creator-1")
	seedParty(t, testDB.DB, "opponent-1")
	repo := NewWagerRepository(testDB.DB)

	started := testutil.CreateTestMatchedWager("creator-1", "opponent-1", seedEscrow(t, testDB.DB, 10000, 10000).ID)
	started.StartDate = time.Now().Add(-2 * time.Hour)
	require.NoError(t, repo.Create(ctx, started))

	notStarted := testutil.CreateTestMatchedWager("creator-1", "opponent-1", seedEscrow(t, testDB.DB, 10000, 10000).ID)
	require.NoError(t, repo.Create(ctx, notStarted))

	ended := testutil.CreateTestMatchedWager("creator-1", "opponent-1", seedEscrow(t, testDB.DB, 10000, 10000).ID)
	ended.Status = models.WagerStatusActive
	ended.StartDate = time.Now().Add(-48 * time.Hour)
	ended.EndDate = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, ended))

	startedList, err := repo.GetMatchedStartedBefore(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, startedList, 1)
	assert.Equal(t, started.ID, startedList[0].ID)

	endedList, err := repo.GetActiveEndedBefore(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, endedList, 1)
	assert.Equal(t, ended.ID, endedList[0].ID)
}

func TestWagerRepository_GetActiveByParty(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	seedParty(t, testDB.DB, "creator-1")
	seedParty(t, testDB.DB, "opponent-1")
	repo := NewWagerRepository(testDB.DB)

	open := testutil.CreateTestWager("creator-1", seedEscrow(t, testDB.DB, 10000, 0).ID)
	require.NoError(t, repo.Create(ctx, open))

	matched := testutil.CreateTestMatchedWager("creator-1", "opponent-1", seedEscrow(t, testDB.DB, 10000, 10000).ID)
	require.NoError(t, repo.Create(ctx, matched))

	cancelled := testutil.CreateTestWager("creator-1", seedEscrow(t, testDB.DB, 10000, 0).ID)
	cancelled.Status = models.WagerStatusOpen
	require.NoError(t, repo.Create(ctx, cancelled))
	ok, err := repo.TransitionToCancelled(ctx, cancelled.ID)
	require.NoError(t, err)
	require.True(t, ok)

	creatorActive, err := repo.GetActiveByParty(ctx, "creator-1")
	require.NoError(t, err)
	assert.Len(t, creatorActive, 2)

	opponentActive, err := repo.GetActiveByParty(ctx, "opponent-1")
	require.NoError(t, err)
	require.Len(t, opponentActive, 1)
	assert.Equal(t, matched.ID, opponentActive[0].ID)
}

func TestWagerRepository_GetStats(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	seedParty(t, testDB.DB, "creator-1")
	seedParty(t, testDB.DB, "opponent-1")
	repo := NewWagerRepository(testDB.DB)

	won := testutil.CreateTestMatchedWager("creator-1", "opponent-1", seedEscrow(t, testDB.DB, 10000, 10000).ID)
	won.Status = models.WagerStatusActive
	require.NoError(t, repo.Create(ctx, won))
	_, ok, err := repo.TransitionToSettled(ctx, won.ID, "creator-1", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	lost := testutil.CreateTestMatchedWager("creator-1", "opponent-1", seedEscrow(t, testDB.DB, 5000, 5000).ID)
	lost.CreatorStake = 5000
	lost.OpponentStake = 5000
	lost.TotalValue = 10000
	lost.Status = models.WagerStatusActive
	require.NoError(t, repo.Create(ctx, lost))
	_, ok, err = repo.TransitionToSettled(ctx, lost.ID, "opponent-1", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	open := testutil.CreateTestWager("creator-1", seedEscrow(t, testDB.DB, 10000, 0).ID)
	require.NoError(t, repo.Create(ctx, open))

	stats, err := repo.GetStats(ctx, "creator-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalWagers)
	assert.Equal(t, 1, stats.TotalOpen)
	assert.Equal(t, 2, stats.TotalSettled)
	assert.Equal(t, 1, stats.TotalWon)
	assert.Equal(t, 1, stats.TotalLost)
	assert.Equal(t, int64(25000), stats.TotalStaked)
	assert.Equal(t, int64(20000), stats.TotalWonAmount)
	assert.Equal(t, int64(20000), stats.BiggestWin)
	assert.Equal(t, int64(10000), stats.BiggestLoss)

	opponentStats, err := repo.GetStats(ctx, "opponent-1")
	require.NoError(t, err)
	assert.Equal(t, 2, opponentStats.TotalWagers)
	assert.Equal(t, 1, opponentStats.TotalWon)
	assert.Equal(t, 1, opponentStats.TotalLost)
	assert.Equal(t, int64(15000), opponentStats.TotalStaked)
}
