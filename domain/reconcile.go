package domain

import (
	"sort"
	"strings"
)

// AssignmentKey identifies one assignment slot within a task. The reconciler
// allows at most one assignment per (stage, person) pair.
type AssignmentKey struct {
	Stage    string
	PersonID string
}

// AssignmentSet maps assignment slots to their comment text.
type AssignmentSet map[AssignmentKey]string

// ProposedAssignment is one entry of a client-supplied assignment snapshot.
type ProposedAssignment struct {
	Stage    string `json:"stage"`
	PersonID string `json:"personId"`
	Comment  string `json:"comment"`
}

// Delta describes how a proposed assignment snapshot differs from the stored
// one. It exists purely to drive audit events; the snapshot itself is applied
// as a full replace.
type Delta struct {
	Added   []AssignmentKey
	Removed []AssignmentKey
	Updated []AssignmentKey
}

// Empty reports whether the delta carries no changes.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0
}

// BuildAssignmentSet converts a proposed snapshot into an AssignmentSet.
// Malformed entries (unknown stage, blank person id) are dropped one by one
// instead of failing the whole snapshot.
func BuildAssignmentSet(items []ProposedAssignment) AssignmentSet {
	set := make(AssignmentSet, len(items))
	for _, it := range items {
		pid := strings.TrimSpace(it.PersonID)
		if pid == "" || !ValidStage(it.Stage) {
			continue
		}
		set[AssignmentKey{Stage: it.Stage, PersonID: pid}] = it.Comment
	}
	return set
}

// SetFromAssignments builds the stored snapshot of a task's assignment rows.
func SetFromAssignments(rows []Assignment) AssignmentSet {
	set := make(AssignmentSet, len(rows))
	for _, a := range rows {
		set[AssignmentKey{Stage: a.Stage, PersonID: a.PersonID}] = a.Comment
	}
	return set
}

// Reconcile computes the added/removed/updated delta between the previously
// stored snapshot and the proposed one. Keys appearing in both sets count as
// updated only when their comments differ. Results are sorted so audit
// events fire in a deterministic order.
func Reconcile(prev, next AssignmentSet) Delta {
	var d Delta
	for key := range next {
		if _, ok := prev[key]; !ok {
			d.Added = append(d.Added, key)
		}
	}
	for key, comment := range prev {
		newComment, ok := next[key]
		if !ok {
			d.Removed = append(d.Removed, key)
			continue
		}
		if comment != newComment {
			d.Updated = append(d.Updated, key)
		}
	}
	sortKeys(d.Added)
	sortKeys(d.Removed)
	sortKeys(d.Updated)
	return d
}

func sortKeys(keys []AssignmentKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Stage != keys[j].Stage {
			return stageRank(keys[i].Stage) < stageRank(keys[j].Stage)
		}
		return keys[i].PersonID < keys[j].PersonID
	})
}

func stageRank(stage string) int {
	for i, s := range Stages {
		if s == stage {
			return i
		}
	}
	return len(Stages)
}

// OrphanLine formats the note appended to a task when an assignment is
// removed because its person was deleted.
func OrphanLine(stage, personName, comment string) string {
	if comment == "" {
		return "[" + stage + "] " + personName + "\n"
	}
	return "[" + stage + "] " + personName + ": " + comment + "\n"
}
