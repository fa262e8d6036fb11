package internaldefs

import "testing"

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBucketLayoutConsistent(t *testing.T) {
	if len(HistogramUpperBounds)+1 != len(HistogramBoundSuffix) {
		t.Fatalf("bounds %d and suffixes %d disagree", len(HistogramUpperBounds), len(HistogramBoundSuffix))
	}
	seen := map[string]bool{}
	for _, def := range CounterDefs {
		if seen[def.Name] {
			t.Fatalf("duplicate metric name %s", def.Name)
		}
		seen[def.Name] = true
	}
}
