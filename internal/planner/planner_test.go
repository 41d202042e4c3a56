package planner

import (
	"reflect"
	"testing"
)

const gb = int64(1) << 30

func cands(sizes map[string]int64) []Candidate {
	out := make([]Candidate, 0, len(sizes))
	for id, fp := range sizes {
		out = append(out, Candidate{ID: id, FootprintBytes: fp})
	}
	return out
}

func TestPlanPrefersFewestEvictionsThenTightestFit(t *testing.T) {
	// No single model reaches 6GB, so cardinality 2 is the minimum; among
	// the pairs {a,b}=7, {a,c}=8, {b,c}=9 the tightest fit is {a,b}.
	got, err := Plan(6*gb, cands(map[string]int64{"a": 3 * gb, "b": 4 * gb, "c": 5 * gb}))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("plan = %v, want %v", got, want)
	}
}

func TestPlanSingleModelBeatsTighterPair(t *testing.T) {
	// {b}=5 overshoots by 3, {a,c}=2+... any pair is a tighter fit, but
	// fewer evictions win before excess.
	got, err := Plan(2*gb, cands(map[string]int64{"a": 2 * gb, "b": 5 * gb, "c": 3 * gb}))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if want := []string{"a"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("plan = %v, want %v", got, want)
	}
}

func TestPlanLexicographicTieBreak(t *testing.T) {
	got, err := Plan(4*gb, cands(map[string]int64{"zeta": 4 * gb, "alpha": 4 * gb}))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if want := []string{"alpha"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("plan = %v, want %v", got, want)
	}
}

func TestPlanInfeasible(t *testing.T) {
	_, err := Plan(10*gb, cands(map[string]int64{"a": 2 * gb, "b": 2 * gb}))
	if err == nil || !IsInfeasible(err) {
		t.Fatalf("expected infeasible, got %v", err)
	}
}

func TestPlanEmptyCandidateSet(t *testing.T) {
	_, err := Plan(gb, nil)
	if err == nil || !IsInfeasible(err) {
		t.Fatalf("expected infeasible with no candidates, got %v", err)
	}
}

func TestPlanNothingRequired(t *testing.T) {
	got, err := Plan(0, cands(map[string]int64{"a": gb}))
	if err != nil || got != nil {
		t.Fatalf("expected empty plan, got %v / %v", got, err)
	}
}

func TestPlanExactFit(t *testing.T) {
	got, err := Plan(5*gb, cands(map[string]int64{"a": 5 * gb, "b": 6 * gb}))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if want := []string{"a"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("plan = %v, want %v", got, want)
	}
}

func TestPlanIsPureAndDeterministic(t *testing.T) {
	in := cands(map[string]int64{"a": 3 * gb, "b": 4 * gb, "c": 5 * gb})
	first, err := Plan(9*gb, in)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Plan(9*gb, in)
		if err != nil {
			t.Fatalf("plan: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("plan not deterministic: %v vs %v", first, again)
		}
	}
}
