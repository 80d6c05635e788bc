package chatclient

import (
	"Promo/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "64b000000000000000000001"
	bob   = "64b000000000000000000002"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestTimeline() (*Timeline, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewTimeline(alice, bob, WithClock(clock.Now), WithPendingTimeout(5*time.Second)), clock
}

func view(id, from, to string, ts time.Time) model.MessageView {
	return model.MessageView{
		ID:        id,
		Sender:    model.UserProjection{ID: from},
		Receiver:  model.UserProjection{ID: to},
		Text:      "msg " + id,
		Timestamp: ts,
	}
}

func TestTimeline_ConfirmReplacesInPlace(t *testing.T) {
	tl, clock := newTestTimeline()

	first := tl.AddPending("one", "")
	clock.Advance(time.Millisecond)
	second := tl.AddPending("two", "")

	require.Equal(t, StatusPending, first.Status)
	require.NotEmpty(t, first.TempID)

	ok := tl.Confirm(model.SendConfirmed{
		ServerID:     "S1",
		ClientTempID: first.TempID,
		Timestamp:    clock.Now().Add(time.Second),
	})
	require.True(t, ok)

	entries := tl.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, first.TempID, entries[0].TempID)
	assert.Equal(t, "S1", entries[0].ServerID)
	assert.Equal(t, StatusConfirmed, entries[0].Status)
	assert.Equal(t, second.TempID, entries[1].TempID)
	assert.Equal(t, StatusPending, entries[1].Status)
}

func TestTimeline_DuplicateConfirmationIgnored(t *testing.T) {
	tl, clock := newTestTimeline()
	e := tl.AddPending("hi", "")

	confirmed := model.SendConfirmed{
		ServerID:     "S1",
		ClientTempID: e.TempID,
		Timestamp:    clock.Now(),
		Message:      view("S1", alice, bob, clock.Now()),
	}
	require.True(t, tl.Confirm(confirmed))
	tl.Confirm(confirmed)
	tl.Deliver(confirmed.Message)

	assert.Equal(t, 1, tl.Len())
}

func TestTimeline_ConfirmMergesSeededCopy(t *testing.T) {
	tl, clock := newTestTimeline()
	e := tl.AddPending("hi", "")

	// history arrived before the confirmation
	tl.Seed([]model.MessageView{view("S1", alice, bob, clock.Now())})
	require.Equal(t, 2, tl.Len())

	require.True(t, tl.Confirm(model.SendConfirmed{ServerID: "S1", ClientTempID: e.TempID, Timestamp: clock.Now()}))

	entries := tl.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, e.TempID, entries[0].TempID)
	assert.Equal(t, "S1", entries[0].ServerID)
}

func TestTimeline_StableOrderForEqualTimestamps(t *testing.T) {
	tl, clock := newTestTimeline()
	ts := clock.Now()

	tl.Deliver(view("B", bob, alice, ts))
	tl.Deliver(view("A", bob, alice, ts))
	tl.Deliver(view("early", bob, alice, ts.Add(-time.Second)))
	tl.Deliver(view("C", bob, alice, ts))

	var ids []string
	for _, e := range tl.Entries() {
		ids = append(ids, e.ServerID)
	}
	assert.Equal(t, []string{"early", "B", "A", "C"}, ids)
}

func TestTimeline_ForeignConversationIgnored(t *testing.T) {
	tl, clock := newTestTimeline()
	carol := "64b000000000000000000003"

	assert.False(t, tl.Deliver(view("X", carol, alice, clock.Now())))
	assert.Zero(t, tl.Len())
}

func TestTimeline_ExpireAndRetry(t *testing.T) {
	tl, clock := newTestTimeline()
	e := tl.AddPending("hi", "")

	clock.Advance(4 * time.Second)
	assert.Empty(t, tl.ExpirePending())

	clock.Advance(time.Second)
	assert.Equal(t, []string{e.TempID}, tl.ExpirePending())

	got, ok := tl.Lookup(e.TempID)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, got.Status)

	// never resent automatically
	assert.Empty(t, tl.ExpirePending())

	retried, err := tl.Retry(e.TempID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, retried.Status)
	assert.Equal(t, e.TempID, retried.TempID)

	clock.Advance(4 * time.Second)
	assert.Empty(t, tl.ExpirePending())
}

func TestTimeline_RetryErrors(t *testing.T) {
	tl, _ := newTestTimeline()
	e := tl.AddPending("hi", "")

	_, err := tl.Retry("nope")
	require.ErrorIs(t, err, ErrUnknownEntry)

	_, err = tl.Retry(e.TempID)
	require.ErrorIs(t, err, ErrNotFailed)
}

func TestTimeline_LateConfirmationUpgradesFailed(t *testing.T) {
	tl, clock := newTestTimeline()
	e := tl.AddPending("hi", "")

	clock.Advance(10 * time.Second)
	require.Len(t, tl.ExpirePending(), 1)

	require.True(t, tl.Confirm(model.SendConfirmed{ServerID: "S1", ClientTempID: e.TempID, Timestamp: clock.Now()}))

	got, _ := tl.Lookup(e.TempID)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.Equal(t, "S1", got.ServerID)
}

func TestTimeline_Fail(t *testing.T) {
	tl, clock := newTestTimeline()
	e := tl.AddPending("", "")

	assert.True(t, tl.Fail(e.TempID))
	assert.False(t, tl.Fail(e.TempID))
	assert.False(t, tl.Fail("unknown"))

	other := tl.AddPending("x", "")
	tl.Confirm(model.SendConfirmed{ServerID: "S2", ClientTempID: other.TempID, Timestamp: clock.Now()})
	assert.False(t, tl.Fail(other.TempID))
}

func TestTimeline_SeenReceipts(t *testing.T) {
	tl, clock := newTestTimeline()

	mine := tl.AddPending("hi", "")
	pending := tl.AddPending("still pending", "")
	tl.Confirm(model.SendConfirmed{ServerID: "S1", ClientTempID: mine.TempID, Timestamp: clock.Now()})
	tl.Deliver(view("P1", bob, alice, clock.Now()))
	tl.Deliver(view("P2", bob, alice, clock.Now()))

	assert.Equal(t, 1, tl.PeerSaw())
	assert.Equal(t, 0, tl.PeerSaw())

	got, _ := tl.Lookup(pending.TempID)
	assert.False(t, got.Seen)

	assert.Equal(t, 2, tl.Unseen())
	assert.Equal(t, 2, tl.AcknowledgePeer())
	assert.Zero(t, tl.Unseen())
}

func TestTimeline_ConfirmWithoutPendingInsertsOnce(t *testing.T) {
	tl, clock := newTestTimeline()

	c := model.SendConfirmed{
		ServerID:     "S9",
		ClientTempID: "lost-temp",
		Timestamp:    clock.Now(),
		Message:      view("S9", alice, bob, clock.Now()),
	}
	assert.True(t, tl.Confirm(c))
	assert.False(t, tl.Confirm(c))
	assert.Equal(t, 1, tl.Len())
}

func TestTimeline_FailPending(t *testing.T) {
	tl, clock := newTestTimeline()

	a := tl.AddPending("a", "")
	b := tl.AddPending("b", "")
	tl.Confirm(model.SendConfirmed{ServerID: "S1", ClientTempID: a.TempID, Timestamp: clock.Now()})

	assert.Equal(t, []string{b.TempID}, tl.FailPending())
	assert.Empty(t, tl.FailPending())

	got, _ := tl.Lookup(a.TempID)
	assert.Equal(t, StatusConfirmed, got.Status)
	got, _ = tl.Lookup(b.TempID)
	assert.Equal(t, StatusFailed, got.Status)
}
