package topk

import "testing"

func TestSelectorKeepsOnlyTopK(t *testing.T) {
	s := NewSelector(2)
	s.Offer(Result{ID: "d1", Score: 0.5})
	s.Offer(Result{ID: "d2", Score: 0.9})
	s.Offer(Result{ID: "d3", Score: 0.1})

	got := s.Results()
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].ID != "d2" || got[1].ID != "d1" {
		t.Fatalf("got %+v, want [d2 d1]", got)
	}
}

func TestSelectorZeroKReturnsEmpty(t *testing.T) {
	s := NewSelector(0)
	s.Offer(Result{ID: "d1", Score: 1})
	if got := s.Results(); len(got) != 0 {
		t.Fatalf("got %+v, want empty", got)
	}
}

func TestSelectorTieBreaksOnSmallerID(t *testing.T) {
	s := NewSelector(1)
	s.Offer(Result{ID: "zeta", Score: 0.5})
	s.Offer(Result{ID: "alpha", Score: 0.5})

	got := s.Results()
	if len(got) != 1 || got[0].ID != "alpha" {
		t.Fatalf("got %+v, want [alpha]", got)
	}
}

func TestSelectorKLargerThanInputReturnsAll(t *testing.T) {
	s := NewSelector(10)
	s.Offer(Result{ID: "d1", Score: 0.2})
	s.Offer(Result{ID: "d2", Score: 0.8})

	got := s.Results()
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
}
