package mining

import (
	"encoding/binary"

	"hashwork/internal/minererr"
)

// WorkPayloadSize is the fixed size of the Icarus-family work payload sent
// to the device: midstate[32] || padding[20] || merkle_root_tail[4] ||
// ntime[4] || bits[4].
const WorkPayloadSize = 64

// NonceReplySize is the fixed size of the device's nonce reply.
const NonceReplySize = 4

// EncodeWorkPayload marshals one midstate plus the job's tail fields into
// the 64-byte wire payload the device expects. All multi-byte fields are
// little-endian, matching spec.md's device wire format. merkleTail is the
// last 4 bytes of the merkle root (bytes 64..68 of the synthesized header).
func EncodeWorkPayload(midstate [32]byte, merkleTail [4]byte, ntime, bits uint32) []byte {
	payload := make([]byte, WorkPayloadSize)
	copy(payload[0:32], midstate[:])
	// bytes 32:52 are padding, left zero.
	copy(payload[52:56], merkleTail[:])
	binary.LittleEndian.PutUint32(payload[56:60], ntime)
	binary.LittleEndian.PutUint32(payload[60:64], bits)
	return payload
}

// DecodeWorkPayload parses a 64-byte work payload back into its component
// fields. Used by the round-trip tests and by any consumer that needs to
// inspect a payload already queued for the device.
func DecodeWorkPayload(data []byte) (midstate [32]byte, merkleTail [4]byte, ntime, bits uint32, err error) {
	if len(data) != WorkPayloadSize {
		err = minererr.New(minererr.KindBackend, "work payload must be exactly 64 bytes")
		return
	}
	copy(midstate[:], data[0:32])
	copy(merkleTail[:], data[52:56])
	ntime = binary.LittleEndian.Uint32(data[56:60])
	bits = binary.LittleEndian.Uint32(data[60:64])
	return
}

// BuildWorkPayload encodes the work payload for midstate index idx of
// assignment, pulling the merkle root tail from the originating job. It
// panics via minererr if idx is out of range — callers are expected to
// have validated it against Assignment.MidstateCount already.
func BuildWorkPayload(assignment *Assignment, idx int) []byte {
	if _, ok := assignment.VersionAt(idx); !ok {
		minererr.Panic("wire: midstate index %d out of range (count %d)", idx, assignment.MidstateCount())
	}

	var tail [4]byte
	copy(tail[:], assignment.Job.MerkleRoot[28:32])

	return EncodeWorkPayload(assignment.Midstates[idx].State, tail, assignment.NTime, assignment.Bits)
}

// EncodeNonceReply marshals a nonce into the 4-byte little-endian wire
// format the device returns.
func EncodeNonceReply(nonce uint32) []byte {
	buf := make([]byte, NonceReplySize)
	binary.LittleEndian.PutUint32(buf, nonce)
	return buf
}

// DecodeNonceReply parses a device nonce reply. A short read is a contract
// violation, not a recoverable error, per spec.md §6/§7: it panics via
// minererr rather than returning an error a caller might mistake for a
// plain timeout and silently advance past.
func DecodeNonceReply(data []byte) uint32 {
	if len(data) < NonceReplySize {
		minererr.Panic("short nonce reply: got %d bytes, want %d", len(data), NonceReplySize)
	}
	return binary.LittleEndian.Uint32(data[:NonceReplySize])
}
