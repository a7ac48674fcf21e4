package pipeline

import (
	"hash/fnv"
	"strconv"
	"testing"
)

func score(v float64) *float64 { return &v }

func scored(file string, s *float64) Candidate {
	return Candidate{FileName: file, Analysis: &Analysis{TotalScore: s}}
}

func TestOrder(t *testing.T) {
	candidates := []Candidate{
		scored("b", score(40)),
		scored("a", score(90)),
		scored("z", score(90)),
		scored("m", nil),
	}

	Order(candidates)

	want := []string{"a", "z", "b", "m"}
	for i, c := range candidates {
		if c.FileName != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], c.FileName)
		}
	}
}

func TestOrderUnscoredAfterZero(t *testing.T) {
	candidates := []Candidate{
		{FileName: "no-analysis"},
		scored("zero", score(0)),
	}
	Order(candidates)
	if candidates[0].FileName != "zero" {
		t.Fatalf("expected zero score before unscored, got %+v", candidates)
	}
}

func TestOrderUnscoredAfterNegativeScores(t *testing.T) {
	candidates := []Candidate{
		{FileName: "a-unscored"},
		scored("minus-five", score(-5)),
		scored("b-null", nil),
		scored("minus-one", score(-1)),
	}
	Order(candidates)

	want := []string{"minus-one", "minus-five", "a-unscored", "b-null"}
	for i, c := range candidates {
		if c.FileName != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], c.FileName)
		}
	}
}

func TestIdentity(t *testing.T) {
	t.Parallel()

	id := Identity("a.pdf", "Alice", "Go Engineer", "Senior")
	if id != Identity("a.pdf", "Alice", "Go Engineer", "Senior") {
		t.Fatal("identity must be deterministic")
	}
	if id == Identity("a.pdf", "Alice", "Go Engineer", "Junior") {
		t.Fatal("identity must depend on experience level")
	}

	// ASCII input matches byte oriented FNV-1a.
	h := fnv.New32a()
	h.Write([]byte("a.pdf|Alice|Go Engineer|Senior"))
	if want := "cand_" + strconv.FormatUint(uint64(h.Sum32()), 36); id != want {
		t.Fatalf("expected %s, got %s", want, id)
	}

	tests := map[string]string{
		"a.pdf|Alice|Go Engineer|Senior":  "ulauud",
		"cv.pdf|Nguyễn Văn A|Kỹ sư|Senior": "o9vxg7",
		"😀":                               "1kdnhdk",
	}
	for in, want := range tests {
		if got := stableHash(in); got != want {
			t.Fatalf("stableHash(%q) = %s, want %s", in, got, want)
		}
	}
}
