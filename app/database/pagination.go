package database

// Keyed pairs a fetched item with the sort key that resumes the scan
// immediately after it.
type Keyed[T any] struct {
	Item T
	Key  string
}

// ChunkFunc fetches up to size items starting after cursor. A size of 0
// requests all remaining items in one call. An empty cursor starts from the
// beginning.
type ChunkFunc[T any] func(size int, cursor string) ([]Keyed[T], error)

// Iterator streams a large result set in bounded chunks behind a single
// logical sequence. Chunks keep result sets and lock hold times small;
// the caller sees one uninterrupted scan.
type Iterator[T any] struct {
	fetch     ChunkFunc[T]
	chunkSize int
	limit     int

	cursor  string
	buf     []Keyed[T]
	pos     int
	yielded int
	done    bool
	err     error
}

// Paginate returns an iterator over fetch. chunkSize 0 disables chunking
// (one unbounded call). startCursor resumes a previous scan from the key it
// stopped at. limit 0 means no limit.
func Paginate[T any](fetch ChunkFunc[T], chunkSize int, startCursor string, limit int) *Iterator[T] {
	return &Iterator[T]{
		fetch:     fetch,
		chunkSize: chunkSize,
		limit:     limit,
		cursor:    startCursor,
	}
}

// Next returns the next item. It reports false when the sequence is
// exhausted or a fetch failed; check Err afterwards.
func (it *Iterator[T]) Next() (T, bool) {
	var zero T
	for {
		if it.pos < len(it.buf) {
			kv := it.buf[it.pos]
			it.pos++
			it.cursor = kv.Key
			it.yielded++
			return kv.Item, true
		}
		if it.done || it.err != nil {
			return zero, false
		}
		if err := it.fill(); err != nil {
			it.err = err
			return zero, false
		}
	}
}

func (it *Iterator[T]) fill() error {
	if it.limit > 0 && it.yielded >= it.limit {
		it.done = true
		it.buf, it.pos = nil, 0
		return nil
	}

	size := it.chunkSize
	if it.limit > 0 {
		remaining := it.limit - it.yielded
		if size == 0 || remaining < size {
			size = remaining
		}
	}

	chunk, err := it.fetch(size, it.cursor)
	if err != nil {
		return err
	}
	it.buf, it.pos = chunk, 0

	// An unbounded call or a short chunk means the source is exhausted.
	if size == 0 || len(chunk) < size {
		it.done = true
	}
	return nil
}

// Err returns the first fetch error, if any.
func (it *Iterator[T]) Err() error {
	return it.err
}

// Cursor returns the key of the last item yielded. Passing it as
// startCursor to a new Paginate call resumes the scan after that item.
func (it *Iterator[T]) Cursor() string {
	return it.cursor
}

// All drains the iterator into a slice.
func (it *Iterator[T]) All() ([]T, error) {
	var items []T
	for {
		item, ok := it.Next()
		if !ok {
			return items, it.Err()
		}
		items = append(items, item)
	}
}
