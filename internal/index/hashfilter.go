package index

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/spaolacci/murmur3"
)

// hashFilter is a bloom filter over the Hash values of an index. It never
// yields false negatives, so a selection whose values all miss can be answered
// without touching the term table.
type hashFilter struct {
	bits      []uint64
	numBits   uint64
	numHashes uint64
}

const hashFilterFPR = 0.01

// newHashFilter sizes a filter for n items at the target false positive rate:
// m = -n*ln(p)/ln(2)^2 bits and k = (m/n)*ln(2) hashes.
func newHashFilter(n int) *hashFilter {
	if n <= 0 {
		n = 1
	}
	m := -float64(n) * math.Log(hashFilterFPR) / (math.Ln2 * math.Ln2)
	k := math.Ceil(m / float64(n) * math.Ln2)

	words := (int(math.Ceil(m)) + 63) / 64
	if words < 1 {
		words = 1
	}
	if k < 1 {
		k = 1
	}
	return &hashFilter{
		bits:      make([]uint64, words),
		numBits:   uint64(words * 64),
		numHashes: uint64(k),
	}
}

func (f *hashFilter) add(value string) {
	h1, h2 := murmur3.Sum128([]byte(value))
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		f.bits[pos/64] |= 1 << (pos % 64)
	}
}

func (f *hashFilter) mightContain(value string) bool {
	h1, h2 := murmur3.Sum128([]byte(value))
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// marshal encodes the filter as numHashes followed by the bit words, all
// little-endian uint64.
func (f *hashFilter) marshal() []byte {
	buf := make([]byte, 8+len(f.bits)*8)
	binary.LittleEndian.PutUint64(buf[0:8], f.numHashes)
	for i, w := range f.bits {
		binary.LittleEndian.PutUint64(buf[8+i*8:], w)
	}
	return buf
}

func unmarshalHashFilter(data []byte) (*hashFilter, error) {
	if len(data) < 16 || len(data)%8 != 0 {
		return nil, errors.New("index: corrupt hash filter")
	}
	f := &hashFilter{
		numHashes: binary.LittleEndian.Uint64(data[0:8]),
		bits:      make([]uint64, (len(data)-8)/8),
	}
	for i := range f.bits {
		f.bits[i] = binary.LittleEndian.Uint64(data[8+i*8:])
	}
	f.numBits = uint64(len(f.bits) * 64)
	if f.numHashes == 0 {
		return nil, errors.New("index: corrupt hash filter")
	}
	return f, nil
}
