package repository

import (
	"context"
	"testing"
	"time"

	"wagerbook/events"
	"wagerbook/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_CommitFlushesEvents(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	received := make(chan events.Event, 1)
	bus.Subscribe(events.EventTypeWagerCreated, func(ctx context.Context, e events.Event) {
		received <- e
	})

	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	_, err := uow.PartyRepository().GetOrCreate(ctx, "creator-1", "creator-1")
	require.NoError(t, err)

	uow.EventBus().Publish(events.WagerCreatedEvent{WagerID: 1, CreatorID: "creator-1"})

	// Nothing leaks before commit
	select {
	case <-received:
		t.Fatal("event emitted before commit")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, uow.Commit())

	select {
	case e := <-received:
		created, ok := e.(events.WagerCreatedEvent)
		require.True(t, ok)
		assert.Equal(t, "creator-1", created.CreatorID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not emitted after commit")
	}

	// The write itself is visible outside the transaction
	party, err := NewPartyRepository(testDB.DB).GetByID(ctx, "creator-1")
	require.NoError(t, err)
	require.NotNil(t, party)
}

func TestUnitOfWork_RollbackDiscards(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	received := make(chan events.Event, 1)
	bus.Subscribe(events.EventTypeWagerCancelled, func(ctx context.Context, e events.Event) {
		received <- e
	})

	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	_, err := uow.PartyRepository().GetOrCreate(ctx, "ghost", "ghost")
	require.NoError(t, err)
	uow.EventBus().Publish(events.WagerCancelledEvent{WagerID: 1, CreatorID: "ghost"})

	require.NoError(t, uow.Rollback())

	select {
	case <-received:
		t.Fatal("event emitted after rollback")
	case <-time.After(100 * time.Millisecond):
	}

	party, err := NewPartyRepository(testDB.DB).GetByID(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, party, "rolled back write must not be visible")
}

func TestUnitOfWork_RequiresBegin(t *testing.T) {
	factory := NewUnitOfWorkFactory(nil, events.NewBus())
	uow := factory.Create()

	assert.Panics(t, func() { uow.WagerRepository() })
	require.Error(t, uow.Commit())
	require.NoError(t, uow.Rollback())
}

