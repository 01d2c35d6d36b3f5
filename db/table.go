package db

// table prefixes every key with the table name so several logical tables
// can share one database.
type table struct {
	db     KeyValueStore
	prefix string
}

// NewTable returns a KeyValueStore scoped to prefix. Closing the table does
// not close the database.
func NewTable(db KeyValueStore, prefix string) KeyValueStore {
	return &table{db: db, prefix: prefix}
}

// LightClientTable is the table holding the light client of network.
func LightClientTable(db KeyValueStore, network string) KeyValueStore {
	return NewTable(db, "light_client_"+network+"/")
}

func (t *table) key(key []byte) []byte {
	return append([]byte(t.prefix), key...)
}

func (t *table) Has(key []byte) (bool, error) {
	return t.db.Has(t.key(key))
}

func (t *table) Get(key []byte) ([]byte, error) {
	return t.db.Get(t.key(key))
}

func (t *table) Set(key, value []byte) error {
	return t.db.Set(t.key(key), value)
}

func (t *table) Delete(key []byte) error {
	return t.db.Delete(t.key(key))
}

func (t *table) NewBatch() Batch {
	return &tableBatch{batch: t.db.NewBatch(), table: t}
}

func (t *table) Close() error {
	return nil
}

type tableBatch struct {
	batch Batch
	table *table
}

func (b *tableBatch) Set(key, value []byte) error {
	return b.batch.Set(b.table.key(key), value)
}

func (b *tableBatch) Delete(key []byte) error {
	return b.batch.Delete(b.table.key(key))
}

func (b *tableBatch) Write() error {
	return b.batch.Write()
}
