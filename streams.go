package http2

// Streams is the connection engine's stream table: a map from stream id to
// Stream entity. It is touched only from the engine goroutine, so it needs
// no locking of its own (mirrors the single-mutator rule that also governs
// HPACK's dynamic tables and every Stream's state).
type Streams struct {
	m                map[StreamID]*Stream
	nextID           StreamID // next id this side will allocate; starts at 1, first used value is 3
	lastPeerStreamID StreamID // high-water mark of ids seen from the peer (PUSH_PROMISE targets)
}

func newStreams() *Streams {
	return &Streams{
		m:      make(map[StreamID]*Stream),
		nextID: 1,
	}
}

// observePeerStreamID records an id the peer has referenced (currently only
// via PUSH_PROMISE, since this client never opens streams the peer didn't
// ask it to). Per RFC 7540 §5.1.1, once an id is seen from the peer, ids at
// or below it must never be opened by us.
func (s *Streams) observePeerStreamID(id StreamID) {
	if id > s.lastPeerStreamID {
		s.lastPeerStreamID = id
	}
}

// allocate reserves the next odd stream id and inserts a fresh Idle Stream
// for it. Returns ErrOutOfStreamIds once the 31-bit id space is exhausted.
func (s *Streams) allocate(initialSendWindow, initialRecvWindow int64) (*Stream, error) {
	s.nextID += 2
	id := s.nextID

	if id > U31Max {
		return nil, ErrOutOfStreamIds
	}
	if id <= s.lastPeerStreamID {
		return nil, ErrOutOfStreamIds
	}

	strm := newStream(id, initialSendWindow, initialRecvWindow)
	s.m[id] = strm
	return strm, nil
}

func (s *Streams) get(id StreamID) (*Stream, bool) {
	strm, ok := s.m[id]
	return strm, ok
}

func (s *Streams) delete(id StreamID) {
	delete(s.m, id)
}

func (s *Streams) len() int {
	return len(s.m)
}

// rangeOpen calls fn for every stream still tracked, for GOAWAY draining.
func (s *Streams) rangeOpen(fn func(*Stream)) {
	for _, strm := range s.m {
		fn(strm)
	}
}
