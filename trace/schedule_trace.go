// Package trace implements the two trace structures the runtime produces
// (spec §4.5): the machine-oriented ScheduleTrace used for replay, and the
// human-oriented BugTrace used for diagnosis.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/psharp-go/psharp/strategy"
)

// ChoiceKind tags one entry of a ScheduleTrace.
type ChoiceKind int

const (
	SchedulingStep ChoiceKind = iota
	BoolChoice
	IntChoice
)

// ChoicePoint is one recorded scheduling or nondeterministic-choice
// decision, in the order the scheduler made it.
type ChoicePoint struct {
	Kind ChoiceKind
	OpID strategy.OpID // valid when Kind == SchedulingStep
	Bool bool          // valid when Kind == BoolChoice
	Int  uint32        // valid when Kind == IntChoice
}

// ScheduleTrace is the ordered, append-only record of every scheduling
// and nondeterministic choice made during one test iteration. It is the
// sole input to strategy.Replay.
type ScheduleTrace struct {
	StrategyName string
	Seed         uint64
	Iterations   int
	Points       []ChoicePoint
}

// NewScheduleTrace returns an empty trace stamped with the header fields
// written by WriteTo.
func NewScheduleTrace(strategyName string, seed uint64, iterations int) *ScheduleTrace {
	return &ScheduleTrace{StrategyName: strategyName, Seed: seed, Iterations: iterations}
}

func (t *ScheduleTrace) RecordOp(id strategy.OpID) {
	t.Points = append(t.Points, ChoicePoint{Kind: SchedulingStep, OpID: id})
}

func (t *ScheduleTrace) RecordBool(v bool) {
	t.Points = append(t.Points, ChoicePoint{Kind: BoolChoice, Bool: v})
}

func (t *ScheduleTrace) RecordInt(v uint32) {
	t.Points = append(t.Points, ChoicePoint{Kind: IntChoice, Int: v})
}

// ToReplayEntries converts the trace into the flat sequence
// strategy.Replay consumes.
func (t *ScheduleTrace) ToReplayEntries() []strategy.ReplayEntry {
	out := make([]strategy.ReplayEntry, 0, len(t.Points))
	for _, p := range t.Points {
		switch p.Kind {
		case SchedulingStep:
			out = append(out, strategy.ReplayEntry{Kind: strategy.ReplayOp, Op: p.OpID})
		case BoolChoice:
			out = append(out, strategy.ReplayEntry{Kind: strategy.ReplayBool, Bool: p.Bool})
		case IntChoice:
			out = append(out, strategy.ReplayEntry{Kind: strategy.ReplayInt, Int: p.Int})
		}
	}
	return out
}

// WriteTo serializes the trace to the compact text format from spec §6:
// a header line followed by one "S <id>" / "B <0|1>" / "I <n>" line per
// choice point.
func (t *ScheduleTrace) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	n, err := fmt.Fprintf(bw, "# psharp-schedule v1 strategy=%s seed=%d iterations=%d\n",
		t.StrategyName, t.Seed, t.Iterations)
	total := int64(n)
	if err != nil {
		return total, err
	}
	for _, p := range t.Points {
		var line string
		switch p.Kind {
		case SchedulingStep:
			line = fmt.Sprintf("S %s\n", p.OpID)
		case BoolChoice:
			if p.Bool {
				line = "B 1\n"
			} else {
				line = "B 0\n"
			}
		case IntChoice:
			line = fmt.Sprintf("I %d\n", p.Int)
		}
		m, err := bw.WriteString(line)
		total += int64(m)
		if err != nil {
			return total, err
		}
	}
	return total, bw.Flush()
}

// ReadScheduleTrace parses the text format written by WriteTo.
func ReadScheduleTrace(r io.Reader) (*ScheduleTrace, error) {
	sc := bufio.NewScanner(r)
	t := &ScheduleTrace{}
	headerSeen := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if !headerSeen {
				if err := parseHeader(line, t); err != nil {
					return nil, err
				}
				headerSeen = true
			}
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("trace: malformed line %q", line)
		}
		switch fields[0] {
		case "S":
			t.RecordOp(strategy.OpID(fields[1]))
		case "B":
			t.RecordBool(strings.TrimSpace(fields[1]) == "1")
		case "I":
			n, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("trace: bad integer choice %q: %w", fields[1], err)
			}
			t.RecordInt(uint32(n))
		default:
			return nil, fmt.Errorf("trace: unknown entry kind %q", fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func parseHeader(line string, t *ScheduleTrace) error {
	// "# psharp-schedule v1 strategy=<name> seed=<u64> iterations=<n>"
	fields := strings.Fields(line)
	for _, f := range fields {
		switch {
		case strings.HasPrefix(f, "strategy="):
			t.StrategyName = strings.TrimPrefix(f, "strategy=")
		case strings.HasPrefix(f, "seed="):
			n, err := strconv.ParseUint(strings.TrimPrefix(f, "seed="), 10, 64)
			if err != nil {
				return fmt.Errorf("trace: bad seed in header: %w", err)
			}
			t.Seed = n
		case strings.HasPrefix(f, "iterations="):
			n, err := strconv.Atoi(strings.TrimPrefix(f, "iterations="))
			if err != nil {
				return fmt.Errorf("trace: bad iterations in header: %w", err)
			}
			t.Iterations = n
		}
	}
	return nil
}
