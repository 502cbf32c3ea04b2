package types

// IdentityKind tags which entity a search result refers to
type IdentityKind int

const (
	IdentityNone IdentityKind = iota
	IdentityChunk
	IdentityItem
)

// ResultIdentity identifies the entity behind a search result. Exactly one
// of chunk or item identifies a returnable result; results with no identity
// cannot be deduplicated and are skipped during fusion.
type ResultIdentity struct {
	Kind IdentityKind
	ID   int64
}

// ChunkIdentity builds an identity for a chunk-backed result
func ChunkIdentity(id int64) ResultIdentity {
	return ResultIdentity{Kind: IdentityChunk, ID: id}
}

// ItemIdentity builds an identity for an item-backed result
func ItemIdentity(id int64) ResultIdentity {
	return ResultIdentity{Kind: IdentityItem, ID: id}
}

// IsNone reports whether the result has no usable identity
func (r ResultIdentity) IsNone() bool {
	return r.Kind == IdentityNone || r.ID == 0
}

// SearchResult is the transient ranking record exchanged between every
// stage of the hybrid search engine. Never persisted.
type SearchResult struct {
	Identity ResultIdentity
	DocID    int64

	// Denormalized display fields
	Text     string
	PageNo   int
	PageType string

	// Score family. Higher is always better; the keyword leg converts
	// FTS5's lower-is-better negative ranks before results reach here.
	VectorScore   float64
	FTSScore      float64
	HybridScore   float64
	RerankerScore float64
	FinalScore    float64

	VectorRank int // 0-based rank within the vector leg, -1 if absent
	FinalRank  int // 0-based rank in the fused output
}
