package psharp

import "fmt"

// MachineId is the globally unique, partition-tagged identity of a machine
// or monitor instance. Two ids are equal iff their monotonic sequence
// numbers match; the other fields exist for readability and for routing
// through a network.Provider.
type MachineId struct {
	// Seq is a runtime-scoped monotonic counter, unique within one test
	// iteration of the Runtime that created it (the counter restarts at
	// every iteration).
	Seq uint64

	// Type is the registered MachineType name.
	Type string

	// Name is the friendly name supplied at creation, or a generated one.
	Name string

	// Partition is the logical location this machine lives in. Sends
	// within a partition are local inbox enqueues; sends across
	// partitions are delegated to a network.Provider.
	Partition string
}

// Equal reports whether two ids refer to the same machine instance.
func (id MachineId) Equal(other MachineId) bool {
	return id.Seq == other.Seq
}

// String renders a stable, human-readable identifier, used both for log
// output and as the strategy.OpID passed to exploration strategies.
func (id MachineId) String() string {
	if id.Partition != "" {
		return fmt.Sprintf("%s(%d,%s)@%s", id.Type, id.Seq, id.Name, id.Partition)
	}
	return fmt.Sprintf("%s(%d,%s)", id.Type, id.Seq, id.Name)
}
