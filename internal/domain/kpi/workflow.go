package kpi

// ActorKind names who may trigger a given transition edge.
type ActorKind int

const (
	ActorOwner ActorKind = iota
	ActorApprover
	ActorAdmin
)

type edge struct {
	From string
	To   string
}

// Policy controls the optional REJECTED -> DRAFT restart path.
type Policy struct {
	AllowResubmission bool
}

var transitionActors = map[edge]ActorKind{
	{StatusDraft, StatusSubmitted}:       ActorOwner,
	{StatusSubmitted, StatusUnderReview}: ActorApprover,
	{StatusUnderReview, StatusApproved}:  ActorApprover,
	{StatusUnderReview, StatusRejected}:  ActorApprover,
	{StatusApproved, StatusArchived}:     ActorAdmin,
}

var resubmissionEdge = edge{StatusRejected, StatusDraft}

// CanTransition reports whether from -> to is a legal edge under the policy.
func (p Policy) CanTransition(from, to string) bool {
	if _, ok := transitionActors[edge{from, to}]; ok {
		return true
	}
	return p.AllowResubmission && from == resubmissionEdge.From && to == resubmissionEdge.To
}

// RequiredActor returns who must trigger the edge. The second result is false
// for edges that are not in the transition table at all.
func (p Policy) RequiredActor(from, to string) (ActorKind, bool) {
	if kind, ok := transitionActors[edge{from, to}]; ok {
		return kind, true
	}
	if p.AllowResubmission && from == resubmissionEdge.From && to == resubmissionEdge.To {
		return ActorOwner, true
	}
	return 0, false
}

// NextStatuses lists the statuses reachable from the given one.
func (p Policy) NextStatuses(from string) []string {
	var out []string
	for e := range transitionActors {
		if e.From == from {
			out = append(out, e.To)
		}
	}
	if p.AllowResubmission && from == resubmissionEdge.From {
		out = append(out, resubmissionEdge.To)
	}
	return out
}

// Terminal reports whether no transition leaves the status under the policy.
func (p Policy) Terminal(status string) bool {
	return len(p.NextStatuses(status)) == 0
}
