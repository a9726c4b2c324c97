package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"nftickets/core/events"
	"nftickets/core/types"
	"nftickets/native/market"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sold(seq uint64, asset, price, fee, proceeds string) events.Committed {
	return events.Committed{Seq: seq, Op: "market.purchase", Evt: &types.Event{
		Type: market.EventTypeSold,
		Attributes: map[string]string{
			"asset":    asset,
			"seller":   "tix1seller",
			"buyer":    "tix1buyer",
			"price":    price,
			"fee":      fee,
			"proceeds": proceeds,
		},
	}}
}

func TestRecordEventIndexesSales(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordEvent(ctx, sold(3, "tix1a", "1000", "50", "950")))
	require.NoError(t, store.RecordEvent(ctx, sold(7, "tix1b", "999", "49", "950")))
	require.NoError(t, store.RecordEvent(ctx, sold(9, "tix1a", "2000", "100", "1900")))

	all, err := store.Sales(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, uint64(9), all[0].Seq)

	onlyA, err := store.Sales(ctx, "tix1a", 1)
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	require.Equal(t, "2000", onlyA[0].Price)
	require.Equal(t, "tix1buyer", onlyA[0].Buyer)
}

func TestRecordEventIsIdempotent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	evt := sold(4, "tix1a", "1000", "50", "950")

	require.NoError(t, store.RecordEvent(ctx, evt))
	require.NoError(t, store.RecordEvent(ctx, evt))

	sales, err := store.Sales(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, sales, 1)
}

func TestVolumeSumsExactly(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	huge := "340282366920938463463374607431768211456"
	require.NoError(t, store.RecordEvent(ctx, sold(1, "tix1a", huge, "0", huge)))
	require.NoError(t, store.RecordEvent(ctx, sold(2, "tix1b", "999", "49", "950")))

	totals, err := store.Volume(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), totals.Count)
	require.Equal(t, "340282366920938463463374607431768212455", totals.Gross.String())
	require.Equal(t, "49", totals.Fee.String())
}

func TestVolumeOfEmptyIndex(t *testing.T) {
	totals, err := openStore(t).Volume(context.Background())
	require.NoError(t, err)
	require.Zero(t, totals.Count)
	require.Zero(t, totals.Gross.Sign())
}

func TestRecordEventRejectsMalformedAmounts(t *testing.T) {
	store := openStore(t)
	err := store.RecordEvent(context.Background(), sold(1, "tix1a", "ten", "0", "10"))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestEmitIndexesListingChangesAndIgnoresOthers(t *testing.T) {
	store := openStore(t)
	var emitter events.Emitter = store

	emitter.Emit(events.Committed{Seq: 1, Evt: &types.Event{Type: market.EventTypeListed, Attributes: map[string]string{
		"asset": "tix1a", "seller": "tix1seller", "price": "10",
	}}})
	emitter.Emit(events.Committed{Seq: 2, Evt: &types.Event{Type: market.EventTypeDelisted, Attributes: map[string]string{
		"asset": "tix1a", "seller": "tix1seller", "price": "10",
	}}})
	emitter.Emit(events.Committed{Seq: 3, Evt: &types.Event{Type: "platform.initialized"}})

	changes, err := store.Listings(context.Background(), "tix1a")
	require.NoError(t, err)
	require.Len(t, changes, 2)
	require.Equal(t, "listed", changes[0].Action)
	require.Equal(t, "delisted", changes[1].Action)

	sales, err := store.Sales(context.Background(), "", 0)
	require.NoError(t, err)
	require.Empty(t, sales)
}
