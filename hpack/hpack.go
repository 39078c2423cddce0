// Package hpack implements the header compression scheme of RFC 7541:
// prefix integers, Huffman-coded strings, a fixed static table, and a
// per-connection dynamic table for each direction. A connection needs
// one Encoder for the fields it emits and one Decoder for the fields it
// receives; the two tables are never shared.
package hpack

import (
	"errors"
	"fmt"
)

// DefaultDynamicTableSize is the value RFC 7541 section 4.2 specifies as
// the dynamic table's starting budget absent any SETTINGS override.
const DefaultDynamicTableSize = 4096

var (
	errDynamicTableTooLarge = errors.New("hpack: dynamic table size update exceeds the signaled limit")
	errIndexOutOfRange      = errors.New("hpack: header field index out of range")
	errUnknownPrefix        = errors.New("hpack: unrecognized header field representation")
	errSizeUpdateNotAtStart = errors.New("hpack: dynamic table size update after a header field")
)

// HeaderField is one decoded or to-be-encoded (name, value) pair.
// Sensitive fields (e.g. Authorization, Cookie) are always emitted as
// literal-never-indexed so they never enter a dynamic table that a
// future request on the same connection could read back out.
type HeaderField struct {
	Name      string
	Value     string
	Sensitive bool
}

// neverIndexNames lists header names this encoder always treats as
// sensitive even if the caller didn't set HeaderField.Sensitive, closing
// the credential-leak side channel described in RFC 7541 section 7.1.3.
var neverIndexNames = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"proxy-authorization": true,
}

// Encoder turns header field lists into HPACK-compressed header blocks,
// maintaining the sender-side dynamic table.
type Encoder struct {
	dyn *dynamicTable
}

// NewEncoder returns an Encoder whose dynamic table starts at
// DefaultDynamicTableSize, matching the RFC 7541 default before any
// SETTINGS_HEADER_TABLE_SIZE has been negotiated.
func NewEncoder() *Encoder {
	return &Encoder{dyn: newDynamicTable(DefaultDynamicTableSize)}
}

// SetMaxDynamicTableSize applies a new table-size ceiling learned from the
// peer's SETTINGS_HEADER_TABLE_SIZE, evicting entries if necessary.
func (e *Encoder) SetMaxDynamicTableSize(n uint32) {
	e.dyn.setLimit(int(n))
}

// WriteField appends the encoded representation of f to dst and returns
// the extended slice. Fields named in neverIndexNames, or explicitly
// marked Sensitive, are encoded as literal-never-indexed and never enter
// the dynamic table. All other fields are indexed incrementally: a
// repeated (name, value) becomes a one-byte indexed reference on its next
// occurrence.
func (e *Encoder) WriteField(dst []byte, f HeaderField) []byte {
	if f.Sensitive || neverIndexNames[f.Name] {
		return e.writeLiteral(dst, f, 0x10)
	}

	if idx, ok := staticPairIndex[[2]string{f.Name, f.Value}]; ok {
		return appendInt(dst, 7, 0x80, uint64(idx))
	}

	if idx, ok := e.dynPairIndex(f.Name, f.Value); ok {
		return appendInt(dst, 7, 0x80, uint64(idx))
	}

	dst = e.writeLiteral(dst, f, 0x40)
	e.dyn.insert(f.Name, f.Value)
	return dst
}

// dynPairIndex looks for an exact (name, value) match already present in
// the dynamic table, returning its wire index (offset past the 61 static
// slots).
func (e *Encoder) dynPairIndex(name, value string) (int, bool) {
	for i, ent := range e.dyn.entries {
		if ent.name == name && ent.value == value {
			return staticTableLen + i + 1, true
		}
	}
	return 0, false
}

func (e *Encoder) writeLiteral(dst []byte, f HeaderField, prefixFlags byte) []byte {
	prefixBits := 4
	if prefixFlags == 0x40 {
		prefixBits = 6
	}

	if idx, ok := staticNameIndex[f.Name]; ok {
		dst = appendInt(dst, prefixBits, prefixFlags, uint64(idx))
	} else if idx, ok := e.dynNameIndex(f.Name); ok {
		dst = appendInt(dst, prefixBits, prefixFlags, uint64(idx))
	} else {
		dst = appendInt(dst, prefixBits, prefixFlags, 0)
		dst = appendString(dst, f.Name, false)
	}

	huff := shouldHuffman(f.Value)
	dst = appendString(dst, f.Value, huff)

	return dst
}

func (e *Encoder) dynNameIndex(name string) (int, bool) {
	for i, ent := range e.dyn.entries {
		if ent.name == name {
			return staticTableLen + i + 1, true
		}
	}
	return 0, false
}

// shouldHuffman applies Huffman coding only when it makes the string
// shorter: for typical ASCII header values this is almost always true.
func shouldHuffman(s string) bool {
	return huffmanEncodedLen(s) < len(s)
}

// Decoder turns an HPACK-compressed header block back into a header
// field list, maintaining the receiver-side dynamic table.
type Decoder struct {
	dyn *dynamicTable
}

// NewDecoder returns a Decoder whose dynamic table starts at
// DefaultDynamicTableSize.
func NewDecoder() *Decoder {
	return &Decoder{dyn: newDynamicTable(DefaultDynamicTableSize)}
}

// SetMaxDynamicTableSize records the limit this side advertises via its
// own SETTINGS_HEADER_TABLE_SIZE; a table-size-update from the peer that
// exceeds it is a decoding error.
func (d *Decoder) SetMaxDynamicTableSize(n uint32) {
	d.dyn.setLimit(int(n))
}

// DecodeFull decodes an entire header block in one call, as used once a
// HEADERS/CONTINUATION sequence completes with END_HEADERS. A dynamic
// table size update is accepted only before the first header field of the
// block (several in a row there are fine); one that follows a header field
// is a decoding error.
func (d *Decoder) DecodeFull(block []byte) ([]HeaderField, error) {
	var fields []HeaderField

	for len(block) > 0 {
		first := block[0]

		switch {
		case first&0x80 != 0: // indexed header field
			idx, n, err := decodeInt(block, 7)
			if err != nil {
				return nil, err
			}
			block = block[n:]

			hf, err := d.lookupIndexed(int(idx))
			if err != nil {
				return nil, err
			}
			fields = append(fields, hf)

		case first&0x40 != 0: // literal with incremental indexing
			hf, n, err := d.decodeLiteral(block, 6)
			if err != nil {
				return nil, err
			}
			block = block[n:]
			d.dyn.insert(hf.Name, hf.Value)
			fields = append(fields, hf)

		case first&0x20 != 0: // dynamic table size update
			if len(fields) > 0 {
				return nil, errSizeUpdateNotAtStart
			}
			n2, n, err := decodeInt(block, 5)
			if err != nil {
				return nil, err
			}
			block = block[n:]
			if err := d.dyn.resize(int(n2)); err != nil {
				return nil, err
			}

		case first&0x10 != 0: // literal never indexed
			hf, n, err := d.decodeLiteral(block, 4)
			if err != nil {
				return nil, err
			}
			block = block[n:]
			hf.Sensitive = true
			fields = append(fields, hf)

		case first&0xf0 == 0: // literal without indexing
			hf, n, err := d.decodeLiteral(block, 4)
			if err != nil {
				return nil, err
			}
			block = block[n:]
			fields = append(fields, hf)

		default:
			return nil, errUnknownPrefix
		}
	}

	return fields, nil
}

func (d *Decoder) decodeLiteral(block []byte, prefixBits int) (HeaderField, int, error) {
	nameIdx, n, err := decodeInt(block, prefixBits)
	if err != nil {
		return HeaderField{}, 0, err
	}
	consumed := n

	var name string
	if nameIdx == 0 {
		s, sn, err := decodeString(block[consumed:])
		if err != nil {
			return HeaderField{}, 0, err
		}
		name = s
		consumed += sn
	} else {
		ent, err := d.lookupName(int(nameIdx))
		if err != nil {
			return HeaderField{}, 0, err
		}
		name = ent
	}

	value, vn, err := decodeString(block[consumed:])
	if err != nil {
		return HeaderField{}, 0, err
	}
	consumed += vn

	return HeaderField{Name: name, Value: value}, consumed, nil
}

func (d *Decoder) lookupIndexed(idx int) (HeaderField, error) {
	if idx >= 1 && idx <= staticTableLen {
		e := staticTable[idx]
		return HeaderField{Name: e.name, Value: e.value}, nil
	}

	if ent, ok := d.dyn.get(idx - staticTableLen); ok {
		return HeaderField{Name: ent.name, Value: ent.value}, nil
	}

	return HeaderField{}, fmt.Errorf("%w: %d", errIndexOutOfRange, idx)
}

func (d *Decoder) lookupName(idx int) (string, error) {
	hf, err := d.lookupIndexed(idx)
	if err != nil {
		return "", err
	}
	return hf.Name, nil
}
