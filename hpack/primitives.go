package hpack

import "errors"

var (
	errIntegerOverflow = errors.New("hpack: integer overflow")
	errTruncated       = errors.New("hpack: truncated input")
)

// maxIntegerValue bounds a decoded prefix integer; large enough for any
// realistic header-block or table-size value, small enough that a
// malicious peer cannot force unbounded looping.
const maxIntegerValue = 1<<32 - 1

// appendInt appends n encoded as an RFC 7541 section 5.1 prefix integer
// with the given prefix width (1..8 bits). It appends a new first byte
// whose high bits are prefixFlags and whose low prefixBits bits hold the
// value (or all ones, followed by continuation bytes, when it does not fit).
func appendInt(dst []byte, prefixBits int, prefixFlags byte, n uint64) []byte {
	max := uint64(1)<<uint(prefixBits) - 1

	if n < max {
		return append(dst, prefixFlags|byte(n))
	}

	dst = append(dst, prefixFlags|byte(max))
	n -= max

	for n >= 128 {
		dst = append(dst, byte(n%128+128))
		n /= 128
	}

	return append(dst, byte(n))
}

// decodeInt reads a prefix integer starting at data[0], whose low
// prefixBits bits hold the prefix. It returns the decoded value and the
// number of bytes consumed.
func decodeInt(data []byte, prefixBits int) (value uint64, consumed int, err error) {
	if len(data) == 0 {
		return 0, 0, errTruncated
	}

	max := uint64(1)<<uint(prefixBits) - 1
	value = uint64(data[0]) & max

	if value < max {
		return value, 1, nil
	}

	var shift uint
	i := 1
	for {
		if i >= len(data) {
			return 0, 0, errTruncated
		}

		b := data[i]
		i++

		value += uint64(b&0x7f) << shift
		if value > maxIntegerValue {
			return 0, 0, errIntegerOverflow
		}

		if b&0x80 == 0 {
			break
		}
		shift += 7
	}

	return value, i, nil
}

// appendString appends the HPACK string representation of s: a 1-bit
// Huffman flag, a 7-bit-prefixed length, and the (possibly Huffman-coded)
// payload. huff controls whether Huffman coding is used for this string.
func appendString(dst []byte, s string, huff bool) []byte {
	if !huff {
		dst = appendInt(dst, 7, 0x00, uint64(len(s)))
		return append(dst, s...)
	}

	hlen := huffmanEncodedLen(s)
	dst = appendInt(dst, 7, 0x80, uint64(hlen))
	return huffmanAppend(dst, s)
}

// decodeString reads an HPACK string primitive from data, returning the
// decoded value and the number of bytes consumed.
func decodeString(data []byte) (string, int, error) {
	if len(data) == 0 {
		return "", 0, errTruncated
	}

	huff := data[0]&0x80 != 0

	length, n, err := decodeInt(data, 7)
	if err != nil {
		return "", 0, err
	}

	total := n + int(length)
	if total > len(data) {
		return "", 0, errTruncated
	}

	raw := data[n:total]

	if !huff {
		return string(raw), total, nil
	}

	buf, err := huffmanDecode(make([]byte, 0, len(raw)*2), raw)
	if err != nil {
		return "", 0, err
	}

	return string(buf), total, nil
}
