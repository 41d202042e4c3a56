// Package planner computes eviction plans. It is a pure function over a
// ledger snapshot: no locks, no I/O, no clock.
package planner

import "sort"

// Candidate is one idle model eligible for eviction.
type Candidate struct {
	ID             string
	FootprintBytes int64
}

// Plan selects the subset of candidates to evict so that at least
// requiredBytes are freed. The chosen subset minimizes, in order:
//
//  1. the number of models evicted,
//  2. freed bytes in excess of requiredBytes,
//  3. lexicographic id order.
//
// The search is exhaustive over subsets of a given size, smallest sizes
// first; the candidate set is bounded by how many distinct models fit in
// VRAM at once, so brute force stays cheap. A greedy approximation is
// deliberately not used because it can evict more models than necessary.
//
// The returned ids are sorted. If no subset reaches requiredBytes the plan
// is infeasible and nothing is evicted; partial eviction is never proposed.
func Plan(requiredBytes int64, candidates []Candidate) ([]string, error) {
	if requiredBytes <= 0 {
		return nil, nil
	}
	cands := make([]Candidate, len(candidates))
	copy(cands, candidates)
	sort.Slice(cands, func(i, j int) bool { return cands[i].ID < cands[j].ID })

	var available int64
	for _, c := range cands {
		available += c.FootprintBytes
	}
	if available < requiredBytes {
		return nil, infeasibleError{required: requiredBytes, available: available}
	}

	for k := 1; k <= len(cands); k++ {
		if ids := bestOfSize(requiredBytes, cands, k); ids != nil {
			return ids, nil
		}
	}
	// Unreachable: the full set was checked to cover requiredBytes.
	return nil, infeasibleError{required: requiredBytes, available: available}
}

// bestOfSize returns the best feasible subset of exactly k candidates, or
// nil if no k-subset frees requiredBytes. Candidates are sorted by id, so
// enumerating index combinations in order visits id-lexicographic subsets
// in order and the first plan found at a given excess is the tie-break
// winner.
func bestOfSize(requiredBytes int64, cands []Candidate, k int) []string {
	var (
		best       []int
		bestExcess int64
	)
	idx := make([]int, 0, k)
	var walk func(start int, sum int64)
	walk = func(start int, sum int64) {
		if len(idx) == k {
			if sum < requiredBytes {
				return
			}
			excess := sum - requiredBytes
			if best == nil || excess < bestExcess {
				best = append(best[:0], idx...)
				bestExcess = excess
			}
			return
		}
		for i := start; i <= len(cands)-(k-len(idx)); i++ {
			idx = append(idx, i)
			walk(i+1, sum+cands[i].FootprintBytes)
			idx = idx[:len(idx)-1]
		}
	}
	walk(0, 0)
	if best == nil {
		return nil
	}
	ids := make([]string, len(best))
	for i, j := range best {
		ids[i] = cands[j].ID
	}
	return ids
}
