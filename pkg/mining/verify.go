package mining

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"
)

// MatchMidstate searches an Assignment's midstates for the one whose full
// 80-byte header, combined with nonce, hashes below target. It returns the
// matching index and the reversed (little-endian-numeric) digest, or
// ok=false if none match.
//
// This is the software stand-in for the backend's hardware error filter
// (spec.md §7: "the hardware error filter applies upstream of
// correlation") — a real device only returns nonces it already filtered
// against its own target, but the adapter still needs to know which
// midstate (and thus which rolled version) the hardware was searching in
// order to build a correct UniqueSolution.
//
// Grounded on CanonicalSHA256's ComputeDoubleSHA256WithNonce /
// IsValidDifficulty1 pair in the source module's
// pkg/hashing/core/sha256_canonical.go, generalized from a fixed
// difficulty-1 check to an arbitrary target via TargetForDifficulty.
func MatchMidstate(assignment *Assignment, nonce uint32, target *big.Int) (idx int, digest [32]byte, ok bool) {
	if assignment == nil || assignment.Job == nil {
		return 0, digest, false
	}
	for i, ms := range assignment.Midstates {
		header := fullHeader(ms.Version, assignment.Job.PreviousHash, assignment.Job.MerkleRoot, assignment.NTime, assignment.Bits, nonce)
		first := sha256.Sum256(header[:])
		second := sha256.Sum256(first[:])
		if HashMeetsTarget(ReverseBytes(second), target) {
			return i, ReverseBytes(second), true
		}
	}
	return 0, digest, false
}

// fullHeader assembles the canonical 80-byte Bitcoin header for one rolled
// version and nonce, all fields little-endian.
func fullHeader(version uint32, prevHash, merkleRoot [32]byte, ntime, bits, nonce uint32) [80]byte {
	var h [80]byte
	binary.LittleEndian.PutUint32(h[0:4], version)
	copy(h[4:36], prevHash[:])
	copy(h[36:68], merkleRoot[:])
	binary.LittleEndian.PutUint32(h[68:72], ntime)
	binary.LittleEndian.PutUint32(h[72:76], bits)
	binary.LittleEndian.PutUint32(h[76:80], nonce)
	return h
}
