package graph

// Type identifies a state variant.
type Type string

const (
	TypePass     Type = "Pass"
	TypeTask     Type = "Task"
	TypeMap      Type = "Map"
	TypeParallel Type = "Parallel"
	TypeChoice   Type = "Choice"
	TypeWait     Type = "Wait"
	TypeSucceed  Type = "Succeed"
	TypeFail     Type = "Fail"
)

// State is one named node of a machine. The set of variants is closed:
// *PassState, *TaskState, *MapState, *ParallelState, *ChoiceState,
// *WaitState, *SucceedState and *FailState.
//
// States are treated as immutable values. Code that rewrites a state works
// on a Clone and stores the copy in a new States map.
type State interface {
	Type() Type

	clone() State
}

// States maps state names to states. Names are unique within one machine.
type States map[string]State

// Clone returns a shallow copy of the map. The states themselves are
// shared.
func (s States) Clone() States {
	out := make(States, len(s))
	for name, st := range s {
		out[name] = st
	}
	return out
}

// Clone returns a deep copy of s.
func Clone(s State) State {
	if s == nil {
		return nil
	}
	return s.clone()
}

// OptionalPath is a reference path field that distinguishes an explicit
// null from an absent field. A nil *OptionalPath means the field is absent
// and the variant's default applies; Null means the field was set to null.
type OptionalPath struct {
	Path string
	Null bool
}

// PathOf returns a path field set to p.
func PathOf(p string) *OptionalPath {
	return &OptionalPath{Path: p}
}

// NullPath returns a path field explicitly set to null.
func NullPath() *OptionalPath {
	return &OptionalPath{Null: true}
}

// IsNull reports whether the field is explicitly null.
func (p *OptionalPath) IsNull() bool {
	return p != nil && p.Null
}

// IsSet reports whether the field holds a path.
func (p *OptionalPath) IsSet() bool {
	return p != nil && !p.Null
}

// Or returns the path, or def when the field is absent. Callers must check
// IsNull first.
func (p *OptionalPath) Or(def string) string {
	if p.IsSet() {
		return p.Path
	}
	return def
}

func (p *OptionalPath) copy() *OptionalPath {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Retrier describes a retry policy of a Task, Map or Parallel state.
type Retrier struct {
	ErrorEquals     []string `json:"ErrorEquals"`
	IntervalSeconds int      `json:"IntervalSeconds,omitempty"`
	MaxAttempts     *int     `json:"MaxAttempts,omitempty"`
	BackoffRate     float64  `json:"BackoffRate,omitempty"`
}

// Catcher transitions to Next when one of ErrorEquals is raised.
type Catcher struct {
	ErrorEquals []string      `json:"ErrorEquals"`
	Next        string        `json:"Next"`
	ResultPath  *OptionalPath `json:"ResultPath,omitempty"`
}

// PassState passes its input to its output, optionally injecting a literal
// Result or a Parameters payload template.
type PassState struct {
	Comment    string
	InputPath  *OptionalPath
	OutputPath *OptionalPath
	ResultPath *OptionalPath
	Parameters any
	Result     any
	Next       string
	End        bool
}

func (*PassState) Type() Type { return TypePass }

func (s *PassState) clone() State {
	c := *s
	c.InputPath = s.InputPath.copy()
	c.OutputPath = s.OutputPath.copy()
	c.ResultPath = s.ResultPath.copy()
	c.Parameters = CloneValue(s.Parameters)
	c.Result = CloneValue(s.Result)
	return &c
}

// TaskState invokes an external Resource.
type TaskState struct {
	Comment          string
	Resource         string
	InputPath        *OptionalPath
	OutputPath       *OptionalPath
	ResultPath       *OptionalPath
	Parameters       any
	ResultSelector   any
	TimeoutSeconds   int
	HeartbeatSeconds int
	Retry            []Retrier
	Catch            []Catcher
	Next             string
	End              bool
}

func (*TaskState) Type() Type { return TypeTask }

func (s *TaskState) clone() State {
	c := *s
	c.InputPath = s.InputPath.copy()
	c.OutputPath = s.OutputPath.copy()
	c.ResultPath = s.ResultPath.copy()
	c.Parameters = CloneValue(s.Parameters)
	c.ResultSelector = CloneValue(s.ResultSelector)
	c.Retry = cloneRetry(s.Retry)
	c.Catch = cloneCatch(s.Catch)
	return &c
}

// MapState runs Iterator once for every element of the array at ItemsPath.
type MapState struct {
	Comment        string
	InputPath      *OptionalPath
	OutputPath     *OptionalPath
	ResultPath     *OptionalPath
	ItemsPath      string
	Parameters     any
	ResultSelector any
	Iterator       Machine
	MaxConcurrency int
	Retry          []Retrier
	Catch          []Catcher
	Next           string
	End            bool
}

func (*MapState) Type() Type { return TypeMap }

func (s *MapState) clone() State {
	c := *s
	c.InputPath = s.InputPath.copy()
	c.OutputPath = s.OutputPath.copy()
	c.ResultPath = s.ResultPath.copy()
	c.Parameters = CloneValue(s.Parameters)
	c.ResultSelector = CloneValue(s.ResultSelector)
	c.Iterator = s.Iterator.Clone()
	c.Retry = cloneRetry(s.Retry)
	c.Catch = cloneCatch(s.Catch)
	return &c
}

// ParallelState runs every branch with the same input.
type ParallelState struct {
	Comment        string
	InputPath      *OptionalPath
	OutputPath     *OptionalPath
	ResultPath     *OptionalPath
	Parameters     any
	ResultSelector any
	Branches       []Machine
	Retry          []Retrier
	Catch          []Catcher
	Next           string
	End            bool
}

func (*ParallelState) Type() Type { return TypeParallel }

func (s *ParallelState) clone() State {
	c := *s
	c.InputPath = s.InputPath.copy()
	c.OutputPath = s.OutputPath.copy()
	c.ResultPath = s.ResultPath.copy()
	c.Parameters = CloneValue(s.Parameters)
	c.ResultSelector = CloneValue(s.ResultSelector)
	if s.Branches != nil {
		c.Branches = make([]Machine, len(s.Branches))
		for i, b := range s.Branches {
			c.Branches[i] = b.Clone()
		}
	}
	c.Retry = cloneRetry(s.Retry)
	c.Catch = cloneCatch(s.Catch)
	return &c
}

// ChoiceRule transitions to Next when Condition holds.
type ChoiceRule struct {
	Condition Condition
	Next      string
}

// ChoiceState branches on the first matching rule, or Default.
type ChoiceState struct {
	Comment    string
	InputPath  *OptionalPath
	OutputPath *OptionalPath
	Choices    []ChoiceRule
	Default    string
}

func (*ChoiceState) Type() Type { return TypeChoice }

func (s *ChoiceState) clone() State {
	c := *s
	c.InputPath = s.InputPath.copy()
	c.OutputPath = s.OutputPath.copy()
	if s.Choices != nil {
		c.Choices = make([]ChoiceRule, len(s.Choices))
		for i, r := range s.Choices {
			c.Choices[i] = ChoiceRule{Condition: r.Condition.Clone(), Next: r.Next}
		}
	}
	return &c
}

// WaitState delays for Seconds, until Timestamp, or for the value read from
// SecondsPath or TimestampPath.
type WaitState struct {
	Comment       string
	InputPath     *OptionalPath
	OutputPath    *OptionalPath
	Seconds       *int
	SecondsPath   string
	Timestamp     string
	TimestampPath string
	Next          string
	End           bool
}

func (*WaitState) Type() Type { return TypeWait }

func (s *WaitState) clone() State {
	c := *s
	c.InputPath = s.InputPath.copy()
	c.OutputPath = s.OutputPath.copy()
	if s.Seconds != nil {
		n := *s.Seconds
		c.Seconds = &n
	}
	return &c
}

// SucceedState ends the machine successfully.
type SucceedState struct {
	Comment    string
	InputPath  *OptionalPath
	OutputPath *OptionalPath
}

func (*SucceedState) Type() Type { return TypeSucceed }

func (s *SucceedState) clone() State {
	c := *s
	c.InputPath = s.InputPath.copy()
	c.OutputPath = s.OutputPath.copy()
	return &c
}

// FailState ends the machine with an error.
type FailState struct {
	Comment string
	Error   string
	Cause   string
}

func (*FailState) Type() Type { return TypeFail }

func (s *FailState) clone() State {
	c := *s
	return &c
}

func cloneRetry(r []Retrier) []Retrier {
	if r == nil {
		return nil
	}
	out := make([]Retrier, len(r))
	for i, rt := range r {
		out[i] = rt
		out[i].ErrorEquals = append([]string(nil), rt.ErrorEquals...)
		if rt.MaxAttempts != nil {
			n := *rt.MaxAttempts
			out[i].MaxAttempts = &n
		}
	}
	return out
}

func cloneCatch(c []Catcher) []Catcher {
	if c == nil {
		return nil
	}
	out := make([]Catcher, len(c))
	for i, ct := range c {
		out[i] = Catcher{
			ErrorEquals: append([]string(nil), ct.ErrorEquals...),
			Next:        ct.Next,
			ResultPath:  ct.ResultPath.copy(),
		}
	}
	return out
}

// CloneValue deep-copies a JSON value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

// IsPassState reports whether s is a Pass state.
func IsPassState(s State) bool {
	_, ok := s.(*PassState)
	return ok
}

// IsTaskState reports whether s is a Task state.
func IsTaskState(s State) bool {
	_, ok := s.(*TaskState)
	return ok
}

// IsMapState reports whether s is a Map state.
func IsMapState(s State) bool {
	_, ok := s.(*MapState)
	return ok
}

// IsParallelState reports whether s is a Parallel state.
func IsParallelState(s State) bool {
	_, ok := s.(*ParallelState)
	return ok
}

// IsChoiceState reports whether s is a Choice state.
func IsChoiceState(s State) bool {
	_, ok := s.(*ChoiceState)
	return ok
}

// IsWaitState reports whether s is a Wait state.
func IsWaitState(s State) bool {
	_, ok := s.(*WaitState)
	return ok
}

// IsSucceedState reports whether s is a Succeed state.
func IsSucceedState(s State) bool {
	_, ok := s.(*SucceedState)
	return ok
}

// IsFailState reports whether s is a Fail state.
func IsFailState(s State) bool {
	_, ok := s.(*FailState)
	return ok
}

// IsTerminal reports whether s ends the machine: Succeed, Fail, or any
// state with End set.
func IsTerminal(s State) bool {
	switch st := s.(type) {
	case *SucceedState, *FailState:
		return true
	case *PassState:
		return st.End
	case *TaskState:
		return st.End
	case *MapState:
		return st.End
	case *ParallelState:
		return st.End
	case *WaitState:
		return st.End
	}
	return false
}
