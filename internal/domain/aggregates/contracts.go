package aggregates

import "slices"

// LockPolicy names how concurrent writers to the same structure are serialized.
type LockPolicy string

const (
	LockPolicyRowForUpdate LockPolicy = "row_for_update"
	LockPolicyNone         LockPolicy = "none"
)

// Contract is the write boundary of one aggregate: the tables it may lock
// and mutate, and how it locks them. Every write runs in a transaction the
// aggregate opens itself.
type Contract struct {
	Name       string
	Tables     []string
	LockPolicy LockPolicy
	Notes      string
}

type Aggregate interface {
	Contract() Contract
}

// Owns reports whether table is inside the aggregate boundary.
func (c Contract) Owns(table string) bool {
	return slices.Contains(c.Tables, table)
}

func (c Contract) RowLocks() bool {
	return c.LockPolicy == LockPolicyRowForUpdate
}

func Contracts() []Contract {
	return []Contract{
		TermHierarchyAggregateContract,
		RouteTreeAggregateContract,
		BlueprintAggregateContract,
	}
}
