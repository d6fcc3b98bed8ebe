package unread

import (
	"sync"
	"testing"
	"time"

	"courtyard/internal/models"

	"github.com/stretchr/testify/assert"
)

func roomWithActivity(id uint, at time.Time) *models.Room {
	return &models.Room{ID: id, LastMessageAt: &at}
}

func TestLedger_Compute(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewLedger()

	quiet := &models.Room{ID: 1}
	fresh := roomWithActivity(2, base)
	stale := roomWithActivity(3, base)

	ledger.MarkSeenAt(stale.ID, base.Add(time.Minute))

	flags := ledger.Compute([]*models.Room{quiet, fresh, stale})
	assert.Equal(t, 0, flags[quiet.ID], "room without messages is never unread")
	assert.Equal(t, 1, flags[fresh.ID], "never-viewed room with activity is unread")
	assert.Equal(t, 0, flags[stale.ID], "viewed after last activity is read")
}

func TestLedger_MarkSeenClearsAndNewActivityRaises(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewLedger()
	ledger.now = func() time.Time { return base.Add(time.Minute) }

	room := roomWithActivity(1, base)
	assert.Equal(t, 1, ledger.Compute([]*models.Room{room})[1])

	ledger.MarkSeen(1)
	assert.Equal(t, 0, ledger.Compute([]*models.Room{room})[1])

	// A newer message flips the flag back.
	later := base.Add(2 * time.Minute)
	room.LastMessageAt = &later
	assert.Equal(t, 1, ledger.Compute([]*models.Room{room})[1])
}

func TestLedger_MarkSeenAtIsMonotonic(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewLedger()

	ledger.MarkSeenAt(1, base.Add(time.Hour))
	ledger.MarkSeenAt(1, base) // stale write, ignored

	at, ok := ledger.LastSeen(1)
	assert.True(t, ok)
	assert.Equal(t, base.Add(time.Hour), at)
}

func TestLedger_SnapshotRestore(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewLedger()
	ledger.MarkSeenAt(1, base)
	ledger.MarkSeenAt(2, base.Add(time.Minute))

	restored := NewLedger()
	restored.MarkSeenAt(2, base.Add(time.Hour)) // newer local knowledge wins
	restored.Restore(ledger.Snapshot())

	at1, _ := restored.LastSeen(1)
	at2, _ := restored.LastSeen(2)
	assert.Equal(t, base, at1)
	assert.Equal(t, base.Add(time.Hour), at2)
}

func TestLedger_ConcurrentAccess(t *testing.T) {
	ledger := NewLedger()
	rooms := []*models.Room{roomWithActivity(1, time.Now())}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				ledger.MarkSeen(uint(i))
			} else {
				ledger.Compute(rooms)
			}
		}(i)
	}
	wg.Wait()
}
