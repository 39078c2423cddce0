package http2

import "github.com/crosshttp/h2c/http2utils"

const FrameSettings FrameType = 0x4

var _ Frame = &Settings{}

type settingPair struct {
	id  SettingsParameter
	val uint32
}

// Settings represents a SETTINGS frame: an unordered list of parameter/
// value pairs, or an empty ACK.
//
// https://tools.ietf.org/html/rfc7540#section-6.5
type Settings struct {
	ack   bool
	pairs []settingPair
}

func (st *Settings) Type() FrameType {
	return FrameSettings
}

func (st *Settings) Reset() {
	st.ack = false
	st.pairs = st.pairs[:0]
}

func (st *Settings) CopyTo(s *Settings) {
	s.ack = st.ack
	s.pairs = append(s.pairs[:0], st.pairs...)
}

func (st *Settings) IsAck() bool {
	return st.ack
}

func (st *Settings) SetAck(ack bool) {
	st.ack = ack
}

// Add appends a parameter/value pair. Duplicate parameters are legal on
// the wire (last one wins on decode by RFC recommendation); Add does not
// deduplicate.
func (st *Settings) Add(id SettingsParameter, value uint32) {
	st.pairs = append(st.pairs, settingPair{id, value})
}

// Get returns the value for id and whether it was present.
func (st *Settings) Get(id SettingsParameter) (uint32, bool) {
	// last occurrence wins, matching the decode-order semantics of
	// repeated SETTINGS parameters in the RFC.
	found := false
	var v uint32
	for _, p := range st.pairs {
		if p.id == id {
			v, found = p.val, true
		}
	}
	return v, found
}

// Range calls fn for every parameter/value pair in wire order.
func (st *Settings) Range(fn func(id SettingsParameter, value uint32)) {
	for _, p := range st.pairs {
		fn(p.id, p.val)
	}
}

func (st *Settings) Deserialize(fr *FrameHeader) error {
	if fr.Flags().Has(FlagAck) {
		st.ack = true
		if len(fr.payload) != 0 {
			return NewError(0, FrameSizeError, "SETTINGS ACK must have an empty payload")
		}
		return nil
	}

	payload := fr.payload
	if len(payload)%6 != 0 {
		return NewError(0, FrameSizeError, "SETTINGS payload is not a multiple of 6 bytes")
	}

	for len(payload) > 0 {
		id := SettingsParameter(uint16(payload[0])<<8 | uint16(payload[1]))
		val := http2utils.BytesToUint32(payload[2:6])
		// Unknown parameters are ignored per RFC 7540 section 6.5.2, but we still
		// record them: Range/Get only look up parameters the caller asks
		// about, so an unknown id is harmless to keep around.
		st.pairs = append(st.pairs, settingPair{id, val})
		payload = payload[6:]
	}

	return nil
}

func (st *Settings) Serialize(fr *FrameHeader) {
	if st.ack {
		fr.SetFlags(fr.Flags().Add(FlagAck))
		fr.payload = fr.payload[:0]
		return
	}

	fr.payload = fr.payload[:0]
	for _, p := range st.pairs {
		fr.payload = append(fr.payload, byte(p.id>>8), byte(p.id))
		fr.payload = http2utils.AppendUint32Bytes(fr.payload, p.val)
	}
}

// DefaultSettings are the values this client advertises in its opening
// SETTINGS frame. EnablePush is always 0: a client-only implementation
// never accepts server push.
func DefaultSettings() *Settings {
	st := &Settings{}
	st.Add(EnablePush, 0)
	st.Add(InitialWindowSize, U31Max)
	st.Add(MaxFrameSize, DefaultMaxFrameSize)
	return st
}

// PeerSettings is a convenience view over the parameters an engine has
// learned from its peer, with the RFC 7540 section 6.5.2 defaults applied
// where the peer never sent an override.
type PeerSettings struct {
	HeaderTableSize      uint32
	EnablePush           bool
	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32
}

// NewPeerSettings returns the RFC-mandated defaults, to be mutated as
// SETTINGS frames arrive.
func NewPeerSettings() PeerSettings {
	return PeerSettings{
		HeaderTableSize:      4096,
		EnablePush:           true,
		MaxConcurrentStreams: 1<<32 - 1,
		InitialWindowSize:    65535,
		MaxFrameSize:         DefaultMaxFrameSize,
		MaxHeaderListSize:    1<<32 - 1,
	}
}

// Apply folds one SETTINGS frame's pairs into ps, returning the previous
// InitialWindowSize so the caller can compute the delta to apply to open
// streams' send windows.
func (ps *PeerSettings) Apply(st *Settings) (prevInitialWindow uint32) {
	prevInitialWindow = ps.InitialWindowSize

	st.Range(func(id SettingsParameter, val uint32) {
		switch id {
		case HeaderTableSize:
			ps.HeaderTableSize = val
		case EnablePush:
			ps.EnablePush = val != 0
		case MaxConcurrentStreams:
			ps.MaxConcurrentStreams = val
		case InitialWindowSize:
			ps.InitialWindowSize = val
		case MaxFrameSize:
			ps.MaxFrameSize = val
		case MaxHeaderListSize:
			ps.MaxHeaderListSize = val
		}
	})

	return prevInitialWindow
}
