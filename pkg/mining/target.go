package mining

import "math/big"

// maxTargetBits is the Bitcoin difficulty-1 target, the conventional base
// from which all higher-difficulty targets are derived by division.
var maxTargetBits = func() *big.Int {
	t, _ := new(big.Int).SetString("00000000FFFF0000000000000000000000000000000000000000000000000000", 16)
	return t
}()

// TargetForDifficulty returns the target a hash must be numerically below
// to count as a valid share at the given ASIC difficulty. Difficulty 1
// yields the canonical Bitcoin difficulty-1 target; higher difficulties
// divide it down, narrowing the accepted range.
func TargetForDifficulty(difficulty uint64) *big.Int {
	if difficulty == 0 {
		difficulty = 1
	}
	return new(big.Int).Div(maxTargetBits, new(big.Int).SetUint64(difficulty))
}

// HashMeetsTarget reports whether hash, interpreted as a big-endian
// unsigned integer, is numerically below target. The caller is
// responsible for passing the hash in the byte order its target was
// computed in; MatchMidstate reverses the natural SHA-256 digest byte
// order before calling this, matching the usual Bitcoin convention of
// comparing hashes as little-endian numbers.
func HashMeetsTarget(hash [32]byte, target *big.Int) bool {
	hashInt := new(big.Int).SetBytes(hash[:])
	return hashInt.Cmp(target) < 0
}

// ReverseBytes returns a copy of b with byte order reversed, used to turn
// a SHA-256 digest (produced in natural byte order) into the little-endian
// numeric representation Bitcoin-style target comparisons expect.
func ReverseBytes(b [32]byte) [32]byte {
	var out [32]byte
	for i := range b {
		out[i] = b[len(b)-1-i]
	}
	return out
}
