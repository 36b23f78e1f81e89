// Package fingerprint derives the cache key of a banner picture from the
// picture-relevant state of the banner.
package fingerprint

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"github.com/bannergress/recalc/pkg/core"
)

// Version is folded into every fingerprint. Bump it whenever the rendering
// output changes so that old cache entries are not reused.
const Version = "banner-picture/3"

// Params are the render settings that influence the produced bytes.
type Params struct {
	Quality int
}

// Compute returns the hex encoded 128-bit fingerprint of b.
//
// Only the slot index, picture source and published flag of each slot take part,
// so banners showing the same pictures in the same places share a fingerprint
// regardless of which missions they reference.
func Compute(b *core.Banner, p Params) string {
	h := md5.New()
	writeString(h, Version)
	writeFloat(h, float64(p.Quality))
	writeInt(h, int64(b.Width))
	// the overlay of disabled slots depends on this
	writeBool(h, b.AllOffline())
	for i := 0; i < b.NumberOfSlots; i++ {
		writeInt(h, int64(i))
		m, ok := b.Missions[i]
		if !ok || m == nil {
			writeBool(h, false)
			continue
		}
		writeBool(h, true)
		writeString(h, m.Picture)
		writeBool(h, m.Published())
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeInt(h hash.Hash, v int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	h.Write(buf[:])
}

func writeFloat(h hash.Hash, v float64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
	h.Write(buf[:])
}

func writeBool(h hash.Hash, v bool) {
	if v {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
}

// writeString length-prefixes s so adjacent fields cannot run into each other.
func writeString(h hash.Hash, s string) {
	writeInt(h, int64(len(s)))
	h.Write([]byte(s))
}
