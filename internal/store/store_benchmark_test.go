package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ummon-dev/ummon/internal/entity"
)

func seedChain(b *testing.B, s *Store, n int) {
	b.Helper()
	entities := make([]entity.Entity, n)
	rels := make([]entity.Relationship, 0, n-1)
	for i := 0; i < n; i++ {
		id := entity.ID(fmt.Sprintf("fn:%d", i))
		entities[i] = entity.Entity{ID: id, Name: fmt.Sprintf("f%d", i), Kind: entity.KindFunction}
		if i > 0 {
			rels = append(rels, entity.Relationship{
				ID:       entity.ID(fmt.Sprintf("r:%d", i)),
				SourceID: entity.ID(fmt.Sprintf("fn:%d", i-1)),
				TargetID: id,
				Kind:     entity.RelCalls,
				Weight:   1.0,
			})
		}
	}
	if err := s.SaveBatch(entities, rels); err != nil {
		b.Fatalf("seed failed: %v", err)
	}
}

func BenchmarkSaveBatch(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench.db")
	s, err := Open(path)
	if err != nil {
		b.Fatalf("open failed: %v", err)
	}
	defer s.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e := entity.Entity{ID: entity.ID(fmt.Sprintf("bench:%d", i)), Name: "x", Kind: entity.KindFunction}
		if err := s.SaveBatch([]entity.Entity{e}, nil); err != nil {
			b.Fatalf("save_batch failed: %v", err)
		}
	}
}

func BenchmarkFindPathsByDepth(b *testing.B) {
	for _, depth := range []int{1, 5, 20} {
		depth := depth
		b.Run(fmt.Sprintf("depth=%d", depth), func(b *testing.B) {
			path := filepath.Join(b.TempDir(), "bench.db")
			s, err := Open(path)
			if err != nil {
				b.Fatalf("open failed: %v", err)
			}
			defer s.Close()
			seedChain(b, s, 100)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.FindPaths("fn:0", nil, nil, entity.RelCalls, depth, DirectionOutbound); err != nil {
					b.Fatalf("find_paths failed: %v", err)
				}
			}
		})
	}
}
