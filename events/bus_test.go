package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"fantasygolf/models"

	"github.com/stretchr/testify/assert"
)

func TestTransactionalBus_FlushDelivers(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventReceived := make(chan BalanceChangeEvent, 1)
	mainBus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		if balanceEvent, ok := event.(BalanceChangeEvent); ok {
			eventReceived <- balanceEvent
		} else {
			t.Errorf("Expected BalanceChangeEvent, got %T", event)
		}
	})

	testEvent := BalanceChangeEvent{
		UserID:     123456,
		WalletID:   7,
		OldBalance: 1000,
		NewBalance: 1500,
		Delta:      500,
		Reason:     models.LedgerReasonTopup,
	}

	transactionalBus.Publish(testEvent)
	assert.Equal(t, 1, transactionalBus.Pending())

	transactionalBus.Flush()
	assert.Equal(t, 0, transactionalBus.Pending())

	select {
	case received := <-eventReceived:
		assert.Equal(t, testEvent, received)
	case <-time.After(2 * time.Second):
		t.Fatal("Event was not received within timeout")
	}
}

func TestTransactionalBus_MultipleEvents(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	var mu sync.Mutex
	received := make(map[int64]bool)
	var wg sync.WaitGroup
	wg.Add(3)

	mainBus.Subscribe(EventTypeEntryCreated, func(ctx context.Context, event Event) {
		defer wg.Done()
		mu.Lock()
		defer mu.Unlock()
		received[event.(EntryCreatedEvent).EntryID] = true
	})

	for _, id := range []int64{1, 2, 3} {
		transactionalBus.Publish(EntryCreatedEvent{EntryID: id, UserID: 10, FeePaid: 500})
	}
	transactionalBus.Flush()
	wg.Wait()

	assert.Len(t, received, 3)
	assert.True(t, received[1])
	assert.True(t, received[2])
	assert.True(t, received[3])
}

func TestTransactionalBus_DiscardDropsEvents(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventReceived := make(chan bool, 1)
	mainBus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		eventReceived <- true
	})

	transactionalBus.Publish(BalanceChangeEvent{UserID: 1, Delta: -100, Reason: models.LedgerReasonEntryDebit})
	transactionalBus.Discard()
	transactionalBus.Flush()

	select {
	case <-eventReceived:
		t.Fatal("Event was received despite being discarded")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewBus()

	delivered := make(chan struct{}, 1)
	bus.Subscribe(EventTypeStatusChange, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(EventTypeStatusChange, func(ctx context.Context, event Event) {
		delivered <- struct{}{}
	})

	bus.Emit(context.Background(), StatusChangeEvent{Subject: "competition", ID: 1})

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("Second handler did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	bus.Wait(ctx)
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	seen := make(map[EventType]int)
	bus.SubscribeAll(func(ctx context.Context, event Event) {
		mu.Lock()
		defer mu.Unlock()
		seen[event.Type()]++
	})

	bus.Emit(context.Background(), ReconciliationRequiredEvent{IssueID: 1})
	bus.Emit(context.Background(), WithdrawalStateChangeEvent{RequestID: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	bus.Wait(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, seen[EventTypeReconciliationRequired])
	assert.Equal(t, 1, seen[EventTypeWithdrawalStateChange])
}
