package mining

import (
	"crypto/sha256"
	"encoding"
)

// Midstate is the intermediate SHA-256 state obtained from hashing the
// first 64 bytes of a header variant: version || previous_hash ||
// merkle_root[0:28]. It is owned by the Assignment it belongs to.
type Midstate struct {
	Version uint32
	State   [32]byte
}

// ComputeMidstate hashes the first 64 bytes of a rolled header (version,
// little-endian, followed by the 32-byte previous hash and the first 28
// bytes of the merkle root) and returns the resulting SHA-256 midstate:
// the eight state words after that one block, big-endian, without padding
// or finalization.
// The ASIC midstate primitive proper is treated as opaque elsewhere; this
// is the software equivalent used to pre-compute what the generator hands
// to hardware, grounded on the same "hash the first 64 header bytes"
// approach the USB driver uses before handing work to the device.
func ComputeMidstate(block64 [64]byte) [32]byte {
	h := sha256.New()
	h.Write(block64[:])
	// The marshaled digest state is a 4-byte magic followed by the eight
	// big-endian state words.
	state, err := h.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		panic(err)
	}
	var out [32]byte
	copy(out[:], state[4:36])
	return out
}

// Assignment (MiningWork) is a unit of work sent to hardware: a reference
// to its originating Job plus an ordered, non-empty list of Midstates that
// differ only in version. NTime and Bits are carried through from the Job
// at the moment the Assignment was built.
type Assignment struct {
	Job       *Job
	Midstates []Midstate
	NTime     uint32
	Bits      uint32
}

// MidstateCount returns the number of midstates (M) in the assignment.
func (a *Assignment) MidstateCount() int {
	if a == nil {
		return 0
	}
	return len(a.Midstates)
}

// VersionAt returns the rolled version of the midstate at idx, or false
// if idx is out of range.
func (a *Assignment) VersionAt(idx int) (uint32, bool) {
	if a == nil || idx < 0 || idx >= len(a.Midstates) {
		return 0, false
	}
	return a.Midstates[idx].Version, true
}
