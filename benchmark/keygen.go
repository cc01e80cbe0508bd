package benchmark

import (
	"encoding/binary"
	"fmt"
	mrand "math/rand"
	"sync/atomic"
)

// KeyDistribution controls the access pattern a KeyGenerator produces.
type KeyDistribution string

const (
	DistUniform    KeyDistribution = "uniform"
	DistSequential KeyDistribution = "sequential"
)

// KeyGenerator produces fixed-width keys according to a distribution,
// for driving synthetic workloads against the core components.
type KeyGenerator struct {
	numKeys      int
	keySize      int
	distribution KeyDistribution
	rng          *mrand.Rand
	seqCounter   atomic.Int64
}

// NewKeyGenerator returns a generator over numKeys distinct keys, each
// padded to keySize bytes.
func NewKeyGenerator(numKeys, keySize int, distribution KeyDistribution, seed int64) *KeyGenerator {
	return &KeyGenerator{
		numKeys:      numKeys,
		keySize:      keySize,
		distribution: distribution,
		rng:          mrand.New(mrand.NewSource(seed)),
	}
}

// NextKey returns the next key per the configured distribution.
func (kg *KeyGenerator) NextKey() []byte {
	var n int
	switch kg.distribution {
	case DistSequential:
		n = int(kg.seqCounter.Add(1) % int64(kg.numKeys))
	default:
		n = kg.rng.Intn(kg.numKeys)
	}
	return kg.formatKey(n)
}

// GenerateSequential returns the key at position n directly.
func (kg *KeyGenerator) GenerateSequential(n int) []byte {
	return kg.formatKey(n)
}

func (kg *KeyGenerator) formatKey(n int) []byte {
	key := fmt.Sprintf("key%010d", n)
	if len(key) >= kg.keySize {
		return []byte(key)[:kg.keySize]
	}

	padding := make([]byte, kg.keySize-len(key))
	if len(padding) >= 8 {
		binary.LittleEndian.PutUint64(padding, uint64(n))
	} else {
		for i := range padding {
			padding[i] = byte(n + i)
		}
	}
	return append([]byte(key), padding...)
}
