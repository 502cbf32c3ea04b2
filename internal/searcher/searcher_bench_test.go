package searcher

import (
	"fmt"
	"testing"

	"github.com/archonlabs/docsearch/pkg/types"
)

func benchResults(n int, offset int64) []types.SearchResult {
	results := make([]types.SearchResult, n)
	for i := range results {
		results[i] = types.SearchResult{
			Identity:   types.ChunkIdentity(offset + int64(i)),
			DocID:      1,
			Text:       fmt.Sprintf("chunk text %d", i),
			VectorRank: -1,
		}
	}
	return results
}

func BenchmarkReciprocalRankFusion(b *testing.B) {
	for _, size := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("size-%d", size), func(b *testing.B) {
			// Half the ids overlap between the legs
			vector := benchResults(size, 0)
			keyword := benchResults(size, int64(size/2))

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				reciprocalRankFusion(vector, keyword, 60, 0.6, 0.4)
			}
		})
	}
}

func BenchmarkExpandQuery(b *testing.B) {
	queries := []string{
		"copper pipe fittings",
		"tariff 85.36.20.00 part AB-12-C",
		"invoice INV-2024-0391 net-30 terms",
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		expandQuery(queries[i%len(queries)])
	}
}

func BenchmarkComputeQueryHash(b *testing.B) {
	req := Request{
		Query:   "copper pipe fittings for the march shipment",
		Mode:    SearchModeHybrid,
		TopK:    10,
		Filters: Filters{DocID: 42, PageType: "invoice"},
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		computeQueryHash(req)
	}
}
