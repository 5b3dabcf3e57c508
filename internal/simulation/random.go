package simulation

import (
	"fmt"
	"math/rand"

	"github.com/iti/rngstream"
)

// Source is the randomness the driver needs for device generation and the
// engine needs for the history sampler
type Source interface {
	Intn(n int) int
	Float64() float64
}

// streamSource adapts a named rngstream to Source
type streamSource struct {
	strm *rngstream.RngStream
}

func (s streamSource) Intn(n int) int {
	if n <= 0 {
		panic("invalid argument to Intn")
	}
	v := int(float64(n) * s.strm.RandU01())
	if v >= n {
		v = n - 1
	}
	return v
}

func (s streamSource) Float64() float64 {
	return s.strm.RandU01()
}

// newSource builds the named generator for one concern of the run. Both kinds
// derive their seed from the run seed and the name so streams stay independent
// and a run is reproducible from its config.
func newSource(kind RandomKind, seed int64, name string) (Source, error) {
	switch kind {
	case RandomMath, "":
		return rand.New(rand.NewSource(seed + nameOffset(name))), nil
	case RandomRngStream:
		strm := rngstream.New(fmt.Sprintf("%s-%d", name, seed))
		if !strm.SetSeed(streamSeed(seed, name)) {
			return nil, fmt.Errorf("invalid rngstream seed for %q", name)
		}
		return streamSource{strm: strm}, nil
	default:
		return nil, fmt.Errorf("unknown random source %q", kind)
	}
}

// rngstream state words must lie in [1, m) for m1 = 4294967087 and
// m2 = 4294944443; the smaller modulus bounds all six
const streamSeedModulus = 4294944443

// streamSeed expands seed and name into the six state words rngstream needs,
// using splitmix64 steps
func streamSeed(seed int64, name string) []uint64 {
	x := uint64(seed) ^ uint64(nameOffset(name))
	words := make([]uint64, 6)
	for i := range words {
		x += 0x9e3779b97f4a7c15
		z := x
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		z ^= z >> 31
		words[i] = z%(streamSeedModulus-1) + 1
	}
	return words
}

func nameOffset(name string) int64 {
	var h int64
	for _, c := range name {
		h = h*31 + int64(c)
	}
	return h
}
