package vecstore

import (
	"encoding/binary"
	"math"
	"sort"
)

// decodeEmbedding is an unexported copy of internal/store's BLOB codec —
// duplicated rather than exported from store solely for this cross-package
// call, kept in lockstep with internal/store/embedding.go's layout.
func decodeEmbedding(blob []byte) []float32 {
	if len(blob) == 0 {
		return nil
	}
	v := make([]float32, len(blob)/4)
	for i := range v {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		v[i] = math.Float32frombits(bits)
	}
	return v
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func sortByScoreDesc(matches []Match) {
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
}
