package hpack

// dynamicEntry overhead per RFC 7541 section 4.1: each entry's size is
// the sum of its name and value octet lengths plus 32.
const entryOverhead = 32

type dynamicEntry struct {
	name  string
	value string
}

func (e dynamicEntry) size() int {
	return len(e.name) + len(e.value) + entryOverhead
}

// dynamicTable is a FIFO of recently seen header fields, newest first for
// indexing purposes (wire index N+1 is the most recently inserted entry).
// maxSize is the octet budget currently in force; limit is the largest
// value the peer has agreed to allow via SETTINGS_HEADER_TABLE_SIZE.
type dynamicTable struct {
	entries []dynamicEntry // entries[0] is newest
	size    int
	maxSize int
	limit   int
}

func newDynamicTable(initialMax int) *dynamicTable {
	return &dynamicTable{maxSize: initialMax, limit: initialMax}
}

// setLimit records a new upper bound signaled by SETTINGS_HEADER_TABLE_SIZE
// (encoder side) or the peer's table-size-update ceiling (decoder side).
// It never grows maxSize beyond the new limit.
func (t *dynamicTable) setLimit(n int) {
	t.limit = n
	if t.maxSize > n {
		t.resize(n)
	}
}

// resize changes the active table size, evicting entries from the tail
// if necessary. Returns an error if n exceeds the signaled limit.
func (t *dynamicTable) resize(n int) error {
	if n > t.limit {
		return errDynamicTableTooLarge
	}

	t.maxSize = n
	t.evictToFit()
	return nil
}

func (t *dynamicTable) evictToFit() {
	for t.size > t.maxSize && len(t.entries) > 0 {
		last := t.entries[len(t.entries)-1]
		t.entries = t.entries[:len(t.entries)-1]
		t.size -= last.size()
	}
}

// insert adds a new entry at the front (most recent). An entry larger
// than the table's budget evicts everything and is not stored, per
// RFC 7541 section 4.4.
func (t *dynamicTable) insert(name, value string) {
	e := dynamicEntry{name: name, value: value}
	sz := e.size()

	if sz > t.maxSize {
		t.entries = t.entries[:0]
		t.size = 0
		return
	}

	t.entries = append([]dynamicEntry{e}, t.entries...)
	t.size += sz
	t.evictToFit()
}

// get returns the entry at dynamic-table index idx (1-based, newest
// first), as used once the static table's 61 slots are exhausted.
func (t *dynamicTable) get(idx int) (dynamicEntry, bool) {
	if idx < 1 || idx > len(t.entries) {
		return dynamicEntry{}, false
	}
	return t.entries[idx-1], true
}

func (t *dynamicTable) len() int {
	return len(t.entries)
}
