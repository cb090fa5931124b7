package block

import "github.com/ethereum/go-ethereum/crypto"

// merkleRoot folds a list of leaf hashes into a single root. Pairs are
// hashed together level by level, an odd leaf is paired with itself, and an
// empty list folds to the hash of nothing so every block has a defined
// root.
func merkleRoot(leaves [][]byte) []byte {
	if len(leaves) == 0 {
		return crypto.Keccak256(nil)
	}

	level := make([][]byte, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}

		next := make([][]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, crypto.Keccak256(level[i], level[i+1]))
		}
		level = next
	}

	return level[0]
}
