package optimize

import (
	"fmt"
	"maps"
	"slices"

	"github.com/tailored-agentic-units/stateopt/graph"
	"github.com/tailored-agentic-units/stateopt/jsonpath"
)

// Analysis is the variable usage of a machine's reachable states.
type Analysis struct {
	Start string
	Order []graph.Entry
	Index map[string]int

	// Usages lists every usage in topological order.
	Usages []*Usage

	// Roots lists the variable roots in lexical order.
	Roots []string
	Stats map[string]*VariableStats

	// WholeReads and WholeWrites hold usages addressing the entire
	// document. They touch every root and are kept apart from Stats.
	WholeReads  []*Usage
	WholeWrites []*Usage
}

// Analyze classifies how every state reachable from start reads and writes
// variable slots, and groups the usages by variable root.
func Analyze(start string, states graph.States) (*Analysis, error) {
	order := graph.TopologicalSort(start, states)
	an := &Analysis{
		Start: start,
		Order: order,
		Index: graph.Indexes(order),
		Stats: make(map[string]*VariableStats),
	}

	for i, e := range order {
		c := &classifier{name: e.Name, index: i}
		if err := c.classify(e.State); err != nil {
			return nil, err
		}
		an.Usages = append(an.Usages, c.usages...)
	}

	for _, u := range an.Usages {
		an.add(u)
	}
	an.Roots = slices.Sorted(maps.Keys(an.Stats))
	return an, nil
}

func (an *Analysis) add(u *Usage) {
	if u.Read != "" {
		if root, ok := variableRoot(u.Read); ok {
			st := an.stats(root)
			st.Uses = append(st.Uses, u)
		} else {
			an.WholeReads = append(an.WholeReads, u)
		}
	}
	if u.Write != "" {
		if root, ok := variableRoot(u.Write); ok {
			st := an.stats(root)
			st.Assigns = append(st.Assigns, u)
		} else {
			an.WholeWrites = append(an.WholeWrites, u)
		}
	}
}

func (an *Analysis) stats(root string) *VariableStats {
	st, ok := an.Stats[root]
	if !ok {
		st = &VariableStats{Root: root}
		an.Stats[root] = st
	}
	return st
}

// variableRoot returns the root of a slot. Slots that address the whole
// document, start with a wildcard, slice or filter, or do not parse, have
// no root.
func variableRoot(slot string) (string, bool) {
	p, err := jsonpath.Parse(slot)
	if err != nil || len(p) == 0 {
		return "", false
	}
	if k := p[0].Kind; k != jsonpath.Field && k != jsonpath.Index {
		return "", false
	}
	return p[:1].String(), true
}

// classifier derives the usages of a single state.
type classifier struct {
	name   string
	index  int
	usages []*Usage
	whole  bool
}

func (c *classifier) emit(u Usage) {
	u.State = c.name
	u.Index = c.index
	c.usages = append(c.usages, &u)
}

func (c *classifier) emitOnce(u Usage) {
	for _, prev := range c.usages {
		if prev.Kind == u.Kind && prev.Read == u.Read && prev.Write == u.Write {
			return
		}
	}
	c.emit(u)
}

func (c *classifier) classify(s graph.State) error {
	switch st := s.(type) {
	case *graph.PassState:
		c.pass(st)
		c.finish(st.InputPath, st.OutputPath, st.ResultPath, true, st.End)
	case *graph.TaskState:
		base, reads := inputBase(st.InputPath)
		c.input(st.Parameters, base, reads, FieldPath{"InputPath"})
		c.output(st.ResultPath, FieldPath{"ResultPath"})
		c.catch(st.Catch)
		c.finish(st.InputPath, st.OutputPath, st.ResultPath, true, st.End)
	case *graph.MapState:
		base, reads := inputBase(st.InputPath)
		if reads {
			items := st.ItemsPath
			if items == "" {
				items = jsonpath.Root
			}
			c.reference(StateInput, compose(base, items), base, "", FieldPath{"ItemsPath"})
		}
		if st.Parameters != nil {
			c.input(st.Parameters, base, reads, nil)
		}
		c.output(st.ResultPath, FieldPath{"ResultPath"})
		c.catch(st.Catch)
		c.finish(st.InputPath, st.OutputPath, st.ResultPath, true, st.End)
	case *graph.ParallelState:
		base, reads := inputBase(st.InputPath)
		c.input(st.Parameters, base, reads, FieldPath{"InputPath"})
		c.output(st.ResultPath, FieldPath{"ResultPath"})
		c.catch(st.Catch)
		c.finish(st.InputPath, st.OutputPath, st.ResultPath, true, st.End)
	case *graph.ChoiceState:
		base, reads := inputBase(st.InputPath)
		if reads {
			for i, r := range st.Choices {
				for _, ref := range r.Condition.References() {
					c.reference(Condition, compose(base, ref), base, "", FieldPath{"Choices", i})
				}
			}
		}
		c.finish(st.InputPath, st.OutputPath, nil, false, false)
	case *graph.WaitState:
		base, reads := inputBase(st.InputPath)
		if reads && st.SecondsPath != "" {
			c.reference(StateInput, compose(base, st.SecondsPath), base, "", FieldPath{"SecondsPath"})
		}
		if reads && st.TimestampPath != "" {
			c.reference(StateInput, compose(base, st.TimestampPath), base, "", FieldPath{"TimestampPath"})
		}
		c.finish(st.InputPath, st.OutputPath, nil, false, st.End)
	case *graph.SucceedState:
		c.finish(st.InputPath, st.OutputPath, nil, false, true)
	case *graph.FailState:
	default:
		return fmt.Errorf("%w: %q has type %T", ErrUnhandledState, c.name, s)
	}
	return nil
}

func (c *classifier) pass(st *graph.PassState) {
	target, writes := resultTarget(st.ResultPath)
	base, reads := inputBase(st.InputPath)
	slot := c.slot(target)

	switch {
	case st.Result != nil:
		if writes && slot != "" {
			c.emit(Usage{Kind: LiteralAssignment, Write: slot, Field: FieldPath{"Result"}, Value: st.Result})
		}
	case st.Parameters != nil && !graph.HasTemplateKeys(st.Parameters):
		if writes && slot != "" {
			c.emit(Usage{Kind: LiteralAssignment, Write: slot, Field: FieldPath{"Parameters"}, Value: st.Parameters})
		}
	case st.Parameters != nil:
		if m, ok := st.Parameters.(map[string]any); ok {
			w := &payloadWalker{c: c, base: base, reads: reads, target: target, writes: writes}
			w.walk(m, FieldPath{"Parameters"}, nil)
		}
	default:
		if !writes {
			break
		}
		if !reads {
			if slot != "" {
				c.emit(Usage{Kind: LiteralAssignment, Write: slot, Field: FieldPath{"InputPath"}, Value: map[string]any{}})
			}
			break
		}
		if base == jsonpath.Root && target == jsonpath.Root {
			// The document is stored back unchanged.
			return
		}
		c.reference(Assignment, base, base, slot, FieldPath{"InputPath"})
	}
	if writes && target == jsonpath.Root {
		c.whole = true
	}
}

// input records the opaque read of a Task, Map or Parallel state. A
// payload template is read field by field; without one the state reads
// its whole effective input.
func (c *classifier) input(params any, base string, reads bool, field FieldPath) {
	if params == nil {
		if reads && field != nil {
			c.reference(StateInput, base, base, "", field)
		}
		return
	}
	m, ok := params.(map[string]any)
	if !ok {
		return
	}
	w := &payloadWalker{c: c, base: base, reads: reads, readOnly: true}
	w.walk(m, FieldPath{"Parameters"}, nil)
}

func (c *classifier) output(rp *graph.OptionalPath, field FieldPath) {
	target, writes := resultTarget(rp)
	if !writes {
		return
	}
	if target == jsonpath.Root {
		c.whole = true
		return
	}
	c.emit(Usage{Kind: StateOutput, Write: target, Field: field})
}

func (c *classifier) catch(catchers []graph.Catcher) {
	for i, ct := range catchers {
		target, writes := resultTarget(ct.ResultPath)
		if !writes {
			continue
		}
		c.emit(Usage{Kind: StateOutput, Write: target, Field: FieldPath{"Catch", i}})
	}
}

// finish records the document-level effects shared by every state: input
// filtering of result-less states, OutputPath selection and the output of
// End states.
func (c *classifier) finish(ip, op, rp *graph.OptionalPath, hasResult, end bool) {
	docBase, docReads := jsonpath.Root, true
	if !hasResult {
		docBase, docReads = inputBase(ip)
		if docBase != jsonpath.Root || !docReads {
			if docReads && !end {
				c.reference(StateInput, docBase, docBase, "", FieldPath{"InputPath"})
			}
			c.whole = true
		}
	}
	if hasResult {
		if target, writes := resultTarget(rp); writes && target == jsonpath.Root {
			docReads = false
		}
	}

	if end {
		if hasResult {
			if target, writes := resultTarget(rp); writes && target != jsonpath.Root {
				c.emitOnce(Usage{Kind: ReturnUsage, Read: target, Field: FieldPath{"ResultPath"}})
			}
		}
		if docReads && !op.IsNull() {
			c.reference(ReturnUsage, compose(docBase, op.Or(jsonpath.Root)), docBase, "", FieldPath{"OutputPath"})
		}
		c.flush()
		return
	}

	if op.IsNull() {
		c.whole = true
	} else if op.IsSet() && jsonpath.Normalize(op.Path) != jsonpath.Root {
		if docReads {
			c.reference(StateInput, compose(docBase, op.Path), docBase, "", FieldPath{"OutputPath"})
		}
		c.whole = true
	}
	c.flush()
}

func (c *classifier) flush() {
	if c.whole {
		c.emit(Usage{Kind: StateOutput, Write: jsonpath.Root, Field: FieldPath{"ResultPath"}})
	}
}

// slot returns the written slot for target, or "" when the write replaces
// the whole document.
func (c *classifier) slot(target string) string {
	if target == jsonpath.Root {
		return ""
	}
	return target
}

// reference records a read of slot. A slot selected through a filter
// becomes a Filter usage (FilterPropAssignment when it also writes) and the
// references inside the filter are recorded as Filter reads.
func (c *classifier) reference(kind UsageKind, slot, base, write string, field FieldPath) {
	p, err := jsonpath.Parse(slot)
	if err != nil {
		c.emitOnce(Usage{Kind: kind, Read: jsonpath.Root, Write: write, Field: field})
		return
	}
	if p.HasFilter() {
		fk := Filter
		if write != "" {
			fk = FilterPropAssignment
		}
		c.emitOnce(Usage{Kind: fk, Read: p.String(), Write: write, Field: field})
		for _, ref := range p.FilterReferences() {
			c.emitOnce(Usage{Kind: Filter, Read: compose(base, ref), Field: field})
		}
		return
	}
	if kind == Condition || kind == ReturnUsage {
		c.emitOnce(Usage{Kind: kind, Read: p.String(), Write: write, Field: field})
		return
	}
	c.emit(Usage{Kind: kind, Read: p.String(), Write: write, Field: field})
}

// payloadWalker classifies the fields of a payload template. For Pass
// states every field is written below the ResultPath target; Task, Map and
// Parallel payloads are readOnly.
type payloadWalker struct {
	c        *classifier
	base     string
	reads    bool
	target   string
	writes   bool
	readOnly bool
}

func (w *payloadWalker) walk(m map[string]any, field FieldPath, names []string) {
	for _, key := range slices.Sorted(maps.Keys(m)) {
		val := m[key]
		f := append(slices.Clone(field), key)

		if graph.IsTemplateKey(key) {
			if s, ok := val.(string); ok {
				w.template(s, f, append(slices.Clone(names), graph.TemplateKeyName(key)))
				continue
			}
		}
		if sub, ok := val.(map[string]any); ok && len(sub) > 0 {
			w.walk(sub, f, append(slices.Clone(names), key))
			continue
		}
		if !w.readOnly {
			if write := w.write(append(slices.Clone(names), key)); write != "" {
				w.c.emit(Usage{Kind: LiteralPropAssignment, Write: write, Field: f, Value: val})
			}
		}
	}
}

func (w *payloadWalker) template(s string, field FieldPath, names []string) {
	write := w.write(names)

	switch {
	case jsonpath.IsContextReference(s):
		if write != "" {
			w.c.emit(Usage{Kind: StateOutput, Write: write, Field: field})
		}

	case graph.IsIntrinsic(s):
		refs := jsonpath.References(s)
		if !w.reads {
			refs = nil
		}
		if len(refs) == 0 {
			if write != "" {
				w.c.emit(Usage{Kind: Intrinsic, Write: write, Field: field, Expr: s})
			}
			return
		}
		for i, ref := range refs {
			u := Usage{Kind: Intrinsic, Read: compose(w.base, ref), Field: field, Expr: s}
			if i == 0 {
				u.Write = write
			}
			if p, err := jsonpath.Parse(u.Read); err == nil && p.HasFilter() {
				w.c.reference(Filter, u.Read, w.base, u.Write, field)
				continue
			}
			w.c.emit(u)
		}

	case jsonpath.IsReference(s):
		if !w.reads {
			if write != "" {
				w.c.emit(Usage{Kind: StateOutput, Write: write, Field: field})
			}
			return
		}
		kind := PropertyAssignment
		if w.readOnly {
			kind = StateInputProps
		}
		w.c.reference(kind, compose(w.base, s), w.base, write, field)

	default:
		if write != "" {
			w.c.emit(Usage{Kind: LiteralPropAssignment, Write: write, Field: field, Value: s})
		}
	}
}

// write returns the slot a payload field is stored at, or "" for read-only
// payloads and for results that replace the whole document.
func (w *payloadWalker) write(names []string) string {
	if w.readOnly || !w.writes || w.target == jsonpath.Root {
		return ""
	}
	segs := make([]jsonpath.Segment, len(names))
	for i, n := range names {
		segs[i] = jsonpath.Segment{Kind: jsonpath.Field, Name: n}
	}
	slot, err := jsonpath.Append(w.target, segs...)
	if err != nil {
		return ""
	}
	return slot
}

// inputBase returns the slot a state's effective input is selected from.
// It reports false when InputPath is null and the input is empty.
func inputBase(ip *graph.OptionalPath) (string, bool) {
	if ip.IsNull() {
		return "", false
	}
	return jsonpath.Normalize(ip.Or(jsonpath.Root)), true
}

// resultTarget returns the slot a state's result is stored at. It reports
// false when ResultPath is null and the result is discarded.
func resultTarget(rp *graph.OptionalPath) (string, bool) {
	if rp.IsNull() {
		return "", false
	}
	return jsonpath.Normalize(rp.Or(jsonpath.Root)), true
}

// compose resolves rel, a path evaluated against the effective input, to
// an absolute slot of the document.
func compose(base, rel string) string {
	if base == jsonpath.Root || base == "" {
		return jsonpath.Normalize(rel)
	}
	joined, err := jsonpath.Join(base, rel)
	if err != nil {
		return jsonpath.Root
	}
	return joined
}

// RootSummary is the printable form of one root's statistics.
type RootSummary struct {
	Root    string   `json:"root"`
	Assigns []string `json:"assigns"`
	Uses    []string `json:"uses"`

	// Candidate reports a single assignment with a single use.
	Candidate bool `json:"candidate"`
}

// Summary describes every variable root in lexical order.
func (an *Analysis) Summary() []RootSummary {
	out := make([]RootSummary, 0, len(an.Roots))
	for _, root := range an.Roots {
		st := an.Stats[root]
		s := RootSummary{
			Root:      root,
			Assigns:   make([]string, len(st.Assigns)),
			Uses:      make([]string, len(st.Uses)),
			Candidate: len(st.Assigns) == 1 && len(st.Uses) == 1,
		}
		for i, u := range st.Assigns {
			s.Assigns[i] = u.String()
		}
		for i, u := range st.Uses {
			s.Uses[i] = u.String()
		}
		out = append(out, s)
	}
	return out
}
