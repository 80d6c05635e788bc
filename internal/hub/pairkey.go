package hub

// PairKey identifies the unordered conversation between two users. Low is
// always the lexicographically smaller identity, so NewPairKey(a, b) and
// NewPairKey(b, a) are equal.
type PairKey struct {
	Low  string
	High string
}

func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

func (k PairKey) String() string {
	return k.Low + "_" + k.High
}

// Other returns the party of the pair that is not id.
func (k PairKey) Other(id string) (string, bool) {
	switch id {
	case k.Low:
		return k.High, true
	case k.High:
		return k.Low, true
	default:
		return "", false
	}
}
