package trace

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultFormatter renders the fixed, space-separated text layout from
// spec section 6: a PC/Inst field when instruction tracing is on, a BP
// field for branches when branch-prediction tracing is on, and a Mem
// field listing non-fetch accesses when memory tracing is on. Fields are
// omitted entirely (not printed empty) when their category is off or
// doesn't apply to this record.
type DefaultFormatter struct{}

func (DefaultFormatter) Format(r Record, opts Options) string {
	var parts []string

	if opts.LogInstruction {
		parts = append(parts, fmt.Sprintf("PC:0x%08x Inst:0x%08x (%s)", r.PC, r.InstBytes, r.DecodedText))
	}

	if opts.LogBranchPrediction && r.IsBranch {
		parts = append(parts, fmt.Sprintf("BP:(T:%s P:%s Target:0x%x PTarget:0x%x)",
			boolBit(r.Branch.Taken), boolBit(r.Branch.PredictedTaken), r.Branch.Target, r.Branch.PredictedTarget))
	}

	if opts.LogMemEvents && len(r.MemEvents) > 0 {
		var entries []string
		for _, ev := range r.MemEvents {
			entries = append(entries, fmt.Sprintf("%s:0x%x=%s", ev.Type, ev.Address, strconv.FormatUint(ev.Data, 16)))
		}
		parts = append(parts, "Mem:["+strings.Join(entries, ", ")+"]")
	}

	return strings.Join(parts, " ")
}

func boolBit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
