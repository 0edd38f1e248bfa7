package trace

import (
	"encoding/json"
	"io"
	"time"
)

// BugStepKind classifies one BugTrace entry for UI rendering.
type BugStepKind string

const (
	StepCreateMachine BugStepKind = "CreateMachine"
	StepSend          BugStepKind = "Send"
	StepDequeue       BugStepKind = "Dequeue"
	StepRaise         BugStepKind = "Raise"
	StepGoto          BugStepKind = "Goto"
	StepPush          BugStepKind = "Push"
	StepPop           BugStepKind = "Pop"
	StepHalt          BugStepKind = "Halt"
	StepMonitor       BugStepKind = "Monitor"
	StepRandom        BugStepKind = "Random"
	StepError         BugStepKind = "Error"
)

// BugTraceStep is one human-oriented entry in a BugTrace. Prev/Next hold
// the zero-based index of the neighboring step for the same machine, -1
// when there isn't one, so a UI can walk one machine's timeline without
// rescanning the whole trace (spec §4.5).
type BugTraceStep struct {
	Index     int         `json:"index"`
	Kind      BugStepKind `json:"kind"`
	MachineID string      `json:"machineId"`
	Detail    string      `json:"detail"`
	StateName string      `json:"state,omitempty"`
	Prev      int         `json:"prev"`
	Next      int         `json:"next"`
}

// BugTrace is the ordered, semantic log of everything that happened
// during a test iteration, used to present a failure to a human rather
// than to replay it (that's ScheduleTrace's job).
type BugTrace struct {
	Title      string         `json:"title"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt,omitempty"`
	Steps      []BugTraceStep `json:"steps"`

	lastByMachine map[string]int
}

// NewBugTrace returns an empty trace titled for one test iteration.
func NewBugTrace(title string) *BugTrace {
	return &BugTrace{Title: title, lastByMachine: make(map[string]int)}
}

// Append records one step, wiring Prev/Next for the originating machine.
func (b *BugTrace) Append(kind BugStepKind, machineID, state, detail string) {
	if b.lastByMachine == nil {
		b.lastByMachine = make(map[string]int)
	}
	idx := len(b.Steps)
	prev := -1
	if p, ok := b.lastByMachine[machineID]; ok {
		prev = p
		b.Steps[p].Next = idx
	}
	b.Steps = append(b.Steps, BugTraceStep{
		Index:     idx,
		Kind:      kind,
		MachineID: machineID,
		StateName: state,
		Detail:    detail,
		Prev:      prev,
		Next:      -1,
	})
	b.lastByMachine[machineID] = idx
}

// ForMachine returns the steps touching machineID in trace order.
func (b *BugTrace) ForMachine(machineID string) []BugTraceStep {
	var out []BugTraceStep
	for _, s := range b.Steps {
		if s.MachineID == machineID {
			out = append(out, s)
		}
	}
	return out
}

// WriteTo writes the JSON wire format consumed by internal/traceserver and
// any external tooling; it omits the private index used only while building.
func (b *BugTrace) WriteTo(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// ReadBugTrace parses the JSON format written by WriteTo.
func ReadBugTrace(r io.Reader) (*BugTrace, error) {
	var b BugTrace
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, err
	}
	b.lastByMachine = make(map[string]int, len(b.Steps))
	for _, s := range b.Steps {
		b.lastByMachine[s.MachineID] = s.Index
	}
	return &b, nil
}
