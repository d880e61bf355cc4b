package memory

import (
	"context"
	"sync"
	"testing"

	"eventbot/internal/domain"
)

func rec(seq int, text string, v ...float32) domain.IndexRecord {
	return domain.IndexRecord{Chunk: domain.Chunk{Source: "doc.pdf", Seq: seq, Text: text}, Vector: v}
}

func loaded(t *testing.T, records ...domain.IndexRecord) *Storage {
	t.Helper()
	s := NewStorage()
	if err := s.BulkLoad(context.Background(), records, domain.IndexMeta{EmbeddingModel: "m"}); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSearchOrdersByCosineThenSeq(t *testing.T) {
	s := loaded(t,
		rec(0, "orthogonal", 0, 1),
		rec(1, "same-b", 2, 0),
		rec(2, "close", 1, 0.5),
		rec(3, "same-a", 1, 0),
	)
	res, err := s.Search(context.Background(), []float32{3, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{res[0].Chunk.Text, res[1].Chunk.Text, res[2].Chunk.Text}
	want := []string{"same-b", "same-a", "close"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %v, want %v", got, want)
		}
	}
	if res[0].Score < 0.999 || res[0].Score != res[1].Score {
		t.Errorf("unexpected scores %v %v", res[0].Score, res[1].Score)
	}
}

func TestSearchKLargerThanCount(t *testing.T) {
	s := loaded(t, rec(0, "a", 1, 0), rec(1, "b", 0, 1))
	res, err := s.Search(context.Background(), []float32{1, 1}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	s := NewStorage()
	res, err := s.Search(context.Background(), []float32{1}, 5)
	if err != nil || len(res) != 0 {
		t.Fatalf("expected empty result, got %v %v", res, err)
	}
}

func TestBulkLoadReplacesAndRecordsMeta(t *testing.T) {
	s := loaded(t, rec(0, "old", 1, 0))
	if err := s.BulkLoad(context.Background(), []domain.IndexRecord{rec(0, "new", 0, 1), rec(1, "newer", 1, 1)}, domain.IndexMeta{EmbeddingModel: "m"}); err != nil {
		t.Fatal(err)
	}
	meta := s.Meta()
	if meta.Records != 2 || meta.Dimension != 2 {
		t.Errorf("unexpected meta %+v", meta)
	}
	res, _ := s.Search(context.Background(), []float32{1, 0}, 5)
	for _, r := range res {
		if r.Chunk.Text == "old" {
			t.Fatal("old record survived rebuild")
		}
	}
}

func TestBulkLoadRejectsMixedDimensions(t *testing.T) {
	s := NewStorage()
	err := s.BulkLoad(context.Background(), []domain.IndexRecord{rec(0, "a", 1, 0), rec(1, "b", 1)}, domain.IndexMeta{})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestConcurrentSearch(t *testing.T) {
	s := loaded(t, rec(0, "a", 1, 0), rec(1, "b", 0, 1), rec(2, "c", 1, 1))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Search(context.Background(), []float32{1, 0}, 2)
			if err != nil || len(res) != 2 || res[0].Chunk.Text != "a" {
				t.Errorf("unexpected result %v %v", res, err)
			}
		}()
	}
	wg.Wait()
}
