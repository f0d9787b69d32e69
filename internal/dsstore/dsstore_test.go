package dsstore

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"

	"github.com/roach88/poe/internal/ir"
)

func TestDsClaimStore(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		ctx := context.Background()
		store := New(dssync.MutexWrap(datastore.NewMapDatastore()))
		claim := ir.Claim("hash0001")

		ok, err := store.Has(ctx, claim)
		require.NoError(t, err)
		require.False(t, ok)

		rec := ir.Record{Owner: "did:key:z6MkAlice", RegisteredAt: 42}
		inserted, err := store.Insert(ctx, claim, rec)
		require.NoError(t, err)
		require.True(t, inserted)

		got, ok, err := store.Get(ctx, claim)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, rec, got)

		n, err := store.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		removed, err := store.Remove(ctx, claim, "did:key:z6MkBob")
		require.NoError(t, err)
		require.False(t, removed, "only the owner removes")

		removed, err = store.Remove(ctx, claim, rec.Owner)
		require.NoError(t, err)
		require.True(t, removed)
		_, ok, err = store.Get(ctx, claim)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("conditional writes", func(t *testing.T) {
		ctx := context.Background()
		store := New(datastore.NewMapDatastore())
		claim := ir.Claim{0x00, 0xff}

		inserted, err := store.Insert(ctx, claim, ir.Record{Owner: "A", RegisteredAt: 1})
		require.NoError(t, err)
		require.True(t, inserted)
		inserted, err = store.Insert(ctx, claim, ir.Record{Owner: "B", RegisteredAt: 2})
		require.NoError(t, err)
		require.False(t, inserted)

		replaced, err := store.Replace(ctx, claim, "B", ir.Record{Owner: "B", RegisteredAt: 2})
		require.NoError(t, err)
		require.False(t, replaced)
		replaced, err = store.Replace(ctx, claim, "A", ir.Record{Owner: "B", RegisteredAt: 2})
		require.NoError(t, err)
		require.True(t, replaced)

		got, _, err := store.Get(ctx, claim)
		require.NoError(t, err)
		require.Equal(t, ir.Record{Owner: "B", RegisteredAt: 2}, got)

		replaced, err = store.Replace(ctx, ir.Claim("missing"), "B", got)
		require.NoError(t, err)
		require.False(t, replaced)
	})

	t.Run("concurrent insert", func(t *testing.T) {
		ctx := context.Background()
		store := New(dssync.MutexWrap(datastore.NewMapDatastore()))

		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(owner ir.AccountID) {
				defer wg.Done()
				ok, err := store.Insert(ctx, ir.Claim("c"), ir.Record{Owner: owner, RegisteredAt: 1})
				if err == nil && ok {
					wins.Add(1)
				}
			}(ir.AccountID(fmt.Sprintf("acct-%d", i)))
		}
		wg.Wait()
		require.Equal(t, int32(1), wins.Load())
	})

	t.Run("unstorable height", func(t *testing.T) {
		ctx := context.Background()
		store := New(datastore.NewMapDatastore())
		huge := ir.Height(math.MaxInt64) + 1

		_, err := store.Insert(ctx, ir.Claim("c"), ir.Record{Owner: "A", RegisteredAt: huge})
		require.Error(t, err)
		ok, err := store.Has(ctx, ir.Claim("c"))
		require.NoError(t, err)
		require.False(t, ok)

		require.Error(t, store.SaveHeight(ctx, huge))
	})

	t.Run("height", func(t *testing.T) {
		ctx := context.Background()
		store := New(datastore.NewMapDatastore())

		h, err := store.LoadHeight(ctx)
		require.NoError(t, err)
		require.Equal(t, ir.Height(0), h)

		require.NoError(t, store.SaveHeight(ctx, 7))
		h, err = store.LoadHeight(ctx)
		require.NoError(t, err)
		require.Equal(t, ir.Height(7), h)

		n, err := store.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 0, n, "height key is not counted as a claim")
	})

	t.Run("corrupt record", func(t *testing.T) {
		ctx := context.Background()
		ds := datastore.NewMapDatastore()
		store := New(ds)
		require.NoError(t, ds.Put(ctx, claimKey(ir.Claim("c")), []byte{0xff}))

		_, _, err := store.Get(ctx, ir.Claim("c"))
		require.Error(t, err)
	})
}

func TestLevelDB(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := OpenLevelDB(dir)
	require.NoError(t, err)
	_, err = store.Insert(ctx, ir.Claim("c"), ir.Record{Owner: "A", RegisteredAt: 3})
	require.NoError(t, err)
	require.NoError(t, store.SaveHeight(ctx, 3))
	require.NoError(t, store.Close())

	store, err = OpenLevelDB(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	got, ok, err := store.Get(ctx, ir.Claim("c"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ir.Record{Owner: "A", RegisteredAt: 3}, got)

	h, err := store.LoadHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, ir.Height(3), h)
}

func TestRecordEncodingIsDagCBOR(t *testing.T) {
	b, err := encodeRecord(ir.Record{Owner: "A", RegisteredAt: 1})
	require.NoError(t, err)
	// map(2) {"owner": "A", "registeredAt": 1}
	require.Equal(t, byte(0xa2), b[0])

	rec, err := decodeRecord(b)
	require.NoError(t, err)
	require.Equal(t, ir.Record{Owner: "A", RegisteredAt: 1}, rec)
}
