package dsstore

import (
	_ "embed"
	"fmt"

	"github.com/ipld/go-ipld-prime"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/schema"

	"github.com/roach88/poe/internal/ir"
)

//go:embed record.ipldsch
var recordSchema []byte

var recordTS *schema.TypeSystem

func init() {
	ts, err := ipld.LoadSchemaBytes(recordSchema)
	if err != nil {
		panic(fmt.Errorf("loading record schema: %w", err))
	}
	recordTS = ts
}

func recordType() schema.Type {
	return recordTS.TypeByName("Record")
}

func heightType() schema.Type {
	return recordTS.TypeByName("Height")
}

// recordModel binds positionally to the Record schema type.
type recordModel struct {
	Owner        string
	RegisteredAt int64
}

func encodeRecord(rec ir.Record) ([]byte, error) {
	at, err := rec.RegisteredAt.Int64()
	if err != nil {
		return nil, err
	}
	m := recordModel{Owner: string(rec.Owner), RegisteredAt: at}
	return ipld.Marshal(dagcbor.Encode, &m, recordType())
}

func decodeRecord(data []byte) (ir.Record, error) {
	var m recordModel
	if _, err := ipld.Unmarshal(data, dagcbor.Decode, &m, recordType()); err != nil {
		return ir.Record{}, err
	}
	if m.RegisteredAt < 0 {
		return ir.Record{}, fmt.Errorf("negative height %d", m.RegisteredAt)
	}
	return ir.Record{Owner: ir.AccountID(m.Owner), RegisteredAt: ir.Height(m.RegisteredAt)}, nil
}

func encodeHeight(h ir.Height) ([]byte, error) {
	v, err := h.Int64()
	if err != nil {
		return nil, err
	}
	return ipld.Marshal(dagcbor.Encode, &v, heightType())
}

func decodeHeight(data []byte) (ir.Height, error) {
	var v int64
	if _, err := ipld.Unmarshal(data, dagcbor.Decode, &v, heightType()); err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative height %d", v)
	}
	return ir.Height(v), nil
}
