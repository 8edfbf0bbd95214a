package mapping

import "github.com/AlieInmar1/pbtoado-sub002/pkg/types"

// DefaultStatus is the lowest-priority ProductBoard status; commitment values
// missing from the table map to it.
const DefaultStatus = "New idea"

var commitmentToStatus = map[types.CommitmentStatus]string{
	types.CommitmentNone:          DefaultStatus,
	types.CommitmentExploring:     "Candidate",
	types.CommitmentCommitted:     "Planned",
	types.CommitmentInDevelopment: "With Engineering",
	types.CommitmentReleased:      "Released",
}

var statusToCommitment = func() map[string]types.CommitmentStatus {
	m := make(map[string]types.CommitmentStatus, len(commitmentToStatus))
	for c, s := range commitmentToStatus {
		m[s] = c
	}
	return m
}()

// StatusName returns the ProductBoard status name for a commitment value.
func StatusName(c types.CommitmentStatus) string {
	if s, ok := commitmentToStatus[c]; ok {
		return s
	}
	return DefaultStatus
}

// Commitment returns the commitment value for a ProductBoard status name and
// whether the name is known.
func Commitment(status string) (types.CommitmentStatus, bool) {
	c, ok := statusToCommitment[status]
	if !ok {
		return types.CommitmentNone, false
	}
	return c, true
}
