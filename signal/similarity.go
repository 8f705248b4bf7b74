package signal

import "github.com/yaoapp/signals/types"

// Distance results.
const (
	ArityMismatch = -2 // Signatures differ in length
	Incompatible  = -1 // Some position is not a generalization of the candidate
	Exact         = 0  // Every position is identical
)

// Distance measures how far registered generalizes candidate.
//
// The result is ArityMismatch when the lengths differ, Exact when every
// position is identical, Incompatible when some registered type is not on
// the ancestry chain of the candidate type at that position, and otherwise
// the sum of the per-position chain depths.
//
//	Distance(Sig(int, string), Sig(int, string)) // 0
//	Distance(Sig(int, string), Sig(any, any))    // 2
//	Distance(Sig(string, string), Sig(int, string)) // -1
func Distance(candidate, registered types.Signature) int {
	if len(candidate) != len(registered) {
		return ArityMismatch
	}
	if candidate.Equal(registered) {
		return Exact
	}

	total := 0
	for i := range candidate {
		d := depth(types.Normalize(candidate[i]), types.Normalize(registered[i]))
		if d < 0 {
			return Incompatible
		}
		total += d
	}
	return total
}
