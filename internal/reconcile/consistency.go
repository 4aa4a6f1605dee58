package reconcile

import (
	"context"
	"sort"
	"time"
)

// InconsistencyType categorizes drift between the store and the index.
type InconsistencyType int

const (
	// InconsistencyMissingVector is a stored document with no vector.
	InconsistencyMissingVector InconsistencyType = iota
	// InconsistencyOrphanVector is a vector whose document is gone.
	InconsistencyOrphanVector
)

// String returns a human-readable description of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyMissingVector:
		return "missing_vector"
	case InconsistencyOrphanVector:
		return "orphan_vector"
	default:
		return "unknown"
	}
}

// Inconsistency is one drifted document id.
type Inconsistency struct {
	Type       InconsistencyType
	DocumentID string
}

// CheckResult is a read-only drift report.
type CheckResult struct {
	// Checked is the number of stored documents compared.
	Checked int `json:"checked"`
	// Missing are stored documents absent from the index.
	Missing []string `json:"missing"`
	// Orphans are indexed ids absent from the store.
	Orphans []string `json:"orphans"`
	// Available is false when the index is switched off; nothing is compared then.
	Available bool          `json:"available"`
	Duration  time.Duration `json:"duration"`
}

// Consistent reports whether the index matches the store.
func (r *CheckResult) Consistent() bool {
	return len(r.Missing) == 0 && len(r.Orphans) == 0
}

// Inconsistencies lists the drift as typed entries, missing first.
func (r *CheckResult) Inconsistencies() []Inconsistency {
	out := make([]Inconsistency, 0, len(r.Missing)+len(r.Orphans))
	for _, id := range r.Missing {
		out = append(out, Inconsistency{Type: InconsistencyMissingVector, DocumentID: id})
	}
	for _, id := range r.Orphans {
		out = append(out, Inconsistency{Type: InconsistencyOrphanVector, DocumentID: id})
	}
	return out
}

// Check compares store ids with index ids without changing either.
// This is O(n) in the number of documents.
func (s *Service) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	storeIDs, err := s.docs.AllIDs(ctx)
	if err != nil {
		return nil, err
	}
	result := &CheckResult{
		Checked:   len(storeIDs),
		Missing:   []string{},
		Orphans:   []string{},
		Available: s.index.Available(),
	}
	if !result.Available {
		result.Duration = time.Since(start)
		return result, nil
	}

	result.Missing, result.Orphans = diff(storeIDs, s.index.ListIDs())
	result.Duration = time.Since(start)
	return result, nil
}

// diff returns the ids only in want and the ids only in have, sorted.
func diff(want, have []string) (missing, extra []string) {
	wantSet := make(map[string]struct{}, len(want))
	for _, id := range want {
		wantSet[id] = struct{}{}
	}
	haveSet := make(map[string]struct{}, len(have))
	for _, id := range have {
		haveSet[id] = struct{}{}
	}

	missing, extra = []string{}, []string{}
	for id := range wantSet {
		if _, ok := haveSet[id]; !ok {
			missing = append(missing, id)
		}
	}
	for id := range haveSet {
		if _, ok := wantSet[id]; !ok {
			extra = append(extra, id)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}
