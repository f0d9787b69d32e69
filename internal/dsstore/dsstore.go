// Package dsstore stores claim records in an IPFS datastore.
//
// Records are dag-cbor encoded against an IPLD schema and keyed by
// ir.ClaimKey under /claims. The chain height lives at /meta/height.
package dsstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	leveldb "github.com/ipfs/go-ds-leveldb"

	"github.com/roach88/poe/internal/ir"
)

var (
	claimsPrefix = datastore.NewKey("/claims")
	heightKey    = datastore.NewKey("/meta/height")
)

// DsClaimStore is a claim store backed by a datastore.
//
// Conditional writes are serialized by writeMu. That covers every writer:
// a datastore handle is not shared across processes, and LevelDB holds an
// exclusive lock on its directory.
type DsClaimStore struct {
	data    datastore.Datastore
	writeMu sync.Mutex
}

// New creates a claim store over ds.
func New(ds datastore.Datastore) *DsClaimStore {
	return &DsClaimStore{data: ds}
}

// OpenLevelDB opens (or creates) a LevelDB datastore at dir.
func OpenLevelDB(dir string) (*DsClaimStore, error) {
	ds, err := leveldb.NewDatastore(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb datastore: %w", err)
	}
	return New(ds), nil
}

func claimKey(c ir.Claim) datastore.Key {
	return claimsPrefix.ChildString(ir.ClaimKey(c))
}

func (d *DsClaimStore) Get(ctx context.Context, claim ir.Claim) (ir.Record, bool, error) {
	b, err := d.data.Get(ctx, claimKey(claim))
	if errors.Is(err, datastore.ErrNotFound) {
		return ir.Record{}, false, nil
	}
	if err != nil {
		return ir.Record{}, false, fmt.Errorf("reading from datastore: %w", err)
	}
	rec, err := decodeRecord(b)
	if err != nil {
		return ir.Record{}, false, fmt.Errorf("decoding data: %w", err)
	}
	return rec, true, nil
}

func (d *DsClaimStore) Has(ctx context.Context, claim ir.Claim) (bool, error) {
	ok, err := d.data.Has(ctx, claimKey(claim))
	if err != nil {
		return false, fmt.Errorf("reading from datastore: %w", err)
	}
	return ok, nil
}

// Insert stores rec unless claim is already registered.
func (d *DsClaimStore) Insert(ctx context.Context, claim ir.Claim, rec ir.Record) (bool, error) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	exists, err := d.Has(ctx, claim)
	if err != nil || exists {
		return false, err
	}
	if err := d.put(ctx, claim, rec); err != nil {
		return false, err
	}
	return true, nil
}

// Replace overwrites the record for claim if owner holds it.
func (d *DsClaimStore) Replace(ctx context.Context, claim ir.Claim, owner ir.AccountID, rec ir.Record) (bool, error) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	cur, ok, err := d.Get(ctx, claim)
	if err != nil || !ok || cur.Owner != owner {
		return false, err
	}
	if err := d.put(ctx, claim, rec); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes claim if owner holds it.
func (d *DsClaimStore) Remove(ctx context.Context, claim ir.Claim, owner ir.AccountID) (bool, error) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	cur, ok, err := d.Get(ctx, claim)
	if err != nil || !ok || cur.Owner != owner {
		return false, err
	}
	if err := d.data.Delete(ctx, claimKey(claim)); err != nil {
		return false, fmt.Errorf("deleting from datastore: %w", err)
	}
	return true, nil
}

func (d *DsClaimStore) put(ctx context.Context, claim ir.Claim, rec ir.Record) error {
	b, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encoding data: %w", err)
	}
	if err := d.data.Put(ctx, claimKey(claim), b); err != nil {
		return fmt.Errorf("writing to datastore: %w", err)
	}
	return nil
}

// Count returns the number of registered claims.
func (d *DsClaimStore) Count(ctx context.Context) (int, error) {
	results, err := d.data.Query(ctx, query.Query{Prefix: claimsPrefix.String(), KeysOnly: true})
	if err != nil {
		return 0, fmt.Errorf("querying datastore: %w", err)
	}
	defer results.Close()

	n := 0
	for entry := range results.Next() {
		if entry.Error != nil {
			return 0, fmt.Errorf("iterating query results: %w", entry.Error)
		}
		n++
	}
	return n, nil
}

func (d *DsClaimStore) LoadHeight(ctx context.Context) (ir.Height, error) {
	b, err := d.data.Get(ctx, heightKey)
	if errors.Is(err, datastore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading from datastore: %w", err)
	}
	h, err := decodeHeight(b)
	if err != nil {
		return 0, fmt.Errorf("decoding height: %w", err)
	}
	return h, nil
}

func (d *DsClaimStore) SaveHeight(ctx context.Context, h ir.Height) error {
	b, err := encodeHeight(h)
	if err != nil {
		return fmt.Errorf("encoding height: %w", err)
	}
	if err := d.data.Put(ctx, heightKey, b); err != nil {
		return fmt.Errorf("writing to datastore: %w", err)
	}
	return nil
}

// Close closes the underlying datastore.
func (d *DsClaimStore) Close() error {
	return d.data.Close()
}
