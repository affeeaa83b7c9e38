package database

import (
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
)

// NewMemDB returns a fresh in-memory KVStore that can back the object storages of the other packages. It is mainly
// used in tests and by the simulation harness.
func NewMemDB() kvstore.KVStore {
	return mapdb.NewMapDB()
}
