package trace

import "github.com/go-faster/jx"

// JSONFormatter renders a Record as a single-line JSON object instead of
// the fixed text layout, for consumers that want to pipe trace output
// into structured log processors. It honors the same Options gating as
// DefaultFormatter: a field is omitted when its category is disabled.
type JSONFormatter struct{}

func (JSONFormatter) Format(r Record, opts Options) string {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()

	if opts.LogInstruction {
		e.FieldStart("pc")
		e.UInt64(r.PC)
		e.FieldStart("inst")
		e.UInt64(r.InstBytes)
		e.FieldStart("decoded")
		e.Str(r.DecodedText)
		e.FieldStart("cycle_begin")
		e.UInt64(r.CycleBegin)
		e.FieldStart("cycle_end")
		e.UInt64(r.CycleEnd)
	}

	if opts.LogBranchPrediction && r.IsBranch {
		e.FieldStart("branch")
		e.ObjStart()
		e.FieldStart("taken")
		e.Bool(r.Branch.Taken)
		e.FieldStart("target")
		e.UInt64(r.Branch.Target)
		e.FieldStart("predicted_taken")
		e.Bool(r.Branch.PredictedTaken)
		e.FieldStart("predicted_target")
		e.UInt64(r.Branch.PredictedTarget)
		e.ObjEnd()
	}

	if opts.LogMemEvents && len(r.MemEvents) > 0 {
		e.FieldStart("mem")
		e.ArrStart()
		for _, ev := range r.MemEvents {
			e.ObjStart()
			e.FieldStart("type")
			e.Str(ev.Type.String())
			e.FieldStart("address")
			e.UInt64(ev.Address)
			e.FieldStart("size")
			e.Int(ev.Size)
			e.FieldStart("data")
			e.UInt64(ev.Data)
			e.FieldStart("latency")
			e.UInt64(ev.Latency)
			e.ObjEnd()
		}
		e.ArrEnd()
	}

	if len(r.Extra) > 0 {
		e.FieldStart("extra")
		e.ObjStart()
		for _, kv := range r.Extra {
			e.FieldStart(kv.Key)
			e.Str(kv.Value)
		}
		e.ObjEnd()
	}

	e.ObjEnd()
	return e.String()
}
