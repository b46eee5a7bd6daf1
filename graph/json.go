package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// MarshalJSON encodes an explicit null as JSON null.
func (p OptionalPath) MarshalJSON() ([]byte, error) {
	if p.Null {
		return []byte("null"), nil
	}
	return json.Marshal(p.Path)
}

// UnmarshalJSON decodes a path string or null.
func (p *OptionalPath) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = OptionalPath{Null: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = OptionalPath{Path: s}
	return nil
}

// UnmarshalJSON decodes each state by its "Type" field.
func (s *States) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(States, len(raw))
	for name, msg := range raw {
		st, err := DecodeState(msg)
		if err != nil {
			return fmt.Errorf("state %s: %w", name, err)
		}
		out[name] = st
	}
	*s = out
	return nil
}

// DecodeState decodes a single state definition.
func DecodeState(data []byte) (State, error) {
	var head struct {
		Type Type `json:"Type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var st State
	switch head.Type {
	case TypePass:
		st = &PassState{}
	case TypeTask:
		st = &TaskState{}
	case TypeMap:
		st = &MapState{}
	case TypeParallel:
		st = &ParallelState{}
	case TypeChoice:
		st = &ChoiceState{}
	case TypeWait:
		st = &WaitState{}
	case TypeSucceed:
		st = &SucceedState{}
	case TypeFail:
		st = &FailState{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStateType, head.Type)
	}

	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}
	if err := restoreNullPaths(data, st); err != nil {
		return nil, err
	}
	return st, nil
}

// restoreNullPaths re-applies explicit nulls that encoding/json collapses
// into nil pointers.
func restoreNullPaths(data []byte, st State) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	isNull := func(key string) bool {
		v, ok := raw[key]
		return ok && bytes.Equal(bytes.TrimSpace(v), []byte("null"))
	}
	fix := func(key string, field **OptionalPath) {
		if isNull(key) {
			*field = NullPath()
		}
	}

	switch s := st.(type) {
	case *PassState:
		fix("InputPath", &s.InputPath)
		fix("OutputPath", &s.OutputPath)
		fix("ResultPath", &s.ResultPath)
	case *TaskState:
		fix("InputPath", &s.InputPath)
		fix("OutputPath", &s.OutputPath)
		fix("ResultPath", &s.ResultPath)
		return restoreCatchNulls(raw["Catch"], s.Catch)
	case *MapState:
		fix("InputPath", &s.InputPath)
		fix("OutputPath", &s.OutputPath)
		fix("ResultPath", &s.ResultPath)
		return restoreCatchNulls(raw["Catch"], s.Catch)
	case *ParallelState:
		fix("InputPath", &s.InputPath)
		fix("OutputPath", &s.OutputPath)
		fix("ResultPath", &s.ResultPath)
		return restoreCatchNulls(raw["Catch"], s.Catch)
	case *ChoiceState:
		fix("InputPath", &s.InputPath)
		fix("OutputPath", &s.OutputPath)
	case *WaitState:
		fix("InputPath", &s.InputPath)
		fix("OutputPath", &s.OutputPath)
	case *SucceedState:
		fix("InputPath", &s.InputPath)
		fix("OutputPath", &s.OutputPath)
	}
	return nil
}

func restoreCatchNulls(data json.RawMessage, catchers []Catcher) error {
	if len(data) == 0 {
		return nil
	}
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for i := range catchers {
		if i >= len(raw) {
			break
		}
		if v, ok := raw[i]["ResultPath"]; ok && bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			catchers[i].ResultPath = NullPath()
		}
	}
	return nil
}

type passJSON struct {
	Type       Type          `json:"Type"`
	Comment    string        `json:"Comment,omitempty"`
	InputPath  *OptionalPath `json:"InputPath,omitempty"`
	OutputPath *OptionalPath `json:"OutputPath,omitempty"`
	ResultPath *OptionalPath `json:"ResultPath,omitempty"`
	Parameters any           `json:"Parameters,omitempty"`
	Result     any           `json:"Result,omitempty"`
	Next       string        `json:"Next,omitempty"`
	End        bool          `json:"End,omitempty"`
}

func (s *PassState) MarshalJSON() ([]byte, error) {
	return json.Marshal(passJSON{
		Type: TypePass, Comment: s.Comment,
		InputPath: s.InputPath, OutputPath: s.OutputPath, ResultPath: s.ResultPath,
		Parameters: s.Parameters, Result: s.Result,
		Next: s.Next, End: s.End,
	})
}

func (s *PassState) UnmarshalJSON(data []byte) error {
	var v passJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = PassState{
		Comment:   v.Comment,
		InputPath: v.InputPath, OutputPath: v.OutputPath, ResultPath: v.ResultPath,
		Parameters: v.Parameters, Result: v.Result,
		Next: v.Next, End: v.End,
	}
	return nil
}

type taskJSON struct {
	Type             Type          `json:"Type"`
	Comment          string        `json:"Comment,omitempty"`
	Resource         string        `json:"Resource"`
	InputPath        *OptionalPath `json:"InputPath,omitempty"`
	OutputPath       *OptionalPath `json:"OutputPath,omitempty"`
	ResultPath       *OptionalPath `json:"ResultPath,omitempty"`
	Parameters       any           `json:"Parameters,omitempty"`
	ResultSelector   any           `json:"ResultSelector,omitempty"`
	TimeoutSeconds   int           `json:"TimeoutSeconds,omitempty"`
	HeartbeatSeconds int           `json:"HeartbeatSeconds,omitempty"`
	Retry            []Retrier     `json:"Retry,omitempty"`
	Catch            []Catcher     `json:"Catch,omitempty"`
	Next             string        `json:"Next,omitempty"`
	End              bool          `json:"End,omitempty"`
}

func (s *TaskState) MarshalJSON() ([]byte, error) {
	return json.Marshal(taskJSON{
		Type: TypeTask, Comment: s.Comment, Resource: s.Resource,
		InputPath: s.InputPath, OutputPath: s.OutputPath, ResultPath: s.ResultPath,
		Parameters: s.Parameters, ResultSelector: s.ResultSelector,
		TimeoutSeconds: s.TimeoutSeconds, HeartbeatSeconds: s.HeartbeatSeconds,
		Retry: s.Retry, Catch: s.Catch,
		Next: s.Next, End: s.End,
	})
}

func (s *TaskState) UnmarshalJSON(data []byte) error {
	var v taskJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = TaskState{
		Comment: v.Comment, Resource: v.Resource,
		InputPath: v.InputPath, OutputPath: v.OutputPath, ResultPath: v.ResultPath,
		Parameters: v.Parameters, ResultSelector: v.ResultSelector,
		TimeoutSeconds: v.TimeoutSeconds, HeartbeatSeconds: v.HeartbeatSeconds,
		Retry: v.Retry, Catch: v.Catch,
		Next: v.Next, End: v.End,
	}
	return nil
}

type mapJSON struct {
	Type           Type          `json:"Type"`
	Comment        string        `json:"Comment,omitempty"`
	InputPath      *OptionalPath `json:"InputPath,omitempty"`
	OutputPath     *OptionalPath `json:"OutputPath,omitempty"`
	ResultPath     *OptionalPath `json:"ResultPath,omitempty"`
	ItemsPath      string        `json:"ItemsPath,omitempty"`
	Parameters     any           `json:"Parameters,omitempty"`
	ResultSelector any           `json:"ResultSelector,omitempty"`
	Iterator       Machine       `json:"Iterator"`
	MaxConcurrency int           `json:"MaxConcurrency,omitempty"`
	Retry          []Retrier     `json:"Retry,omitempty"`
	Catch          []Catcher     `json:"Catch,omitempty"`
	Next           string        `json:"Next,omitempty"`
	End            bool          `json:"End,omitempty"`
}

func (s *MapState) MarshalJSON() ([]byte, error) {
	return json.Marshal(mapJSON{
		Type: TypeMap, Comment: s.Comment,
		InputPath: s.InputPath, OutputPath: s.OutputPath, ResultPath: s.ResultPath,
		ItemsPath: s.ItemsPath, Parameters: s.Parameters, ResultSelector: s.ResultSelector,
		Iterator: s.Iterator, MaxConcurrency: s.MaxConcurrency,
		Retry: s.Retry, Catch: s.Catch,
		Next: s.Next, End: s.End,
	})
}

func (s *MapState) UnmarshalJSON(data []byte) error {
	var v mapJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = MapState{
		Comment:   v.Comment,
		InputPath: v.InputPath, OutputPath: v.OutputPath, ResultPath: v.ResultPath,
		ItemsPath: v.ItemsPath, Parameters: v.Parameters, ResultSelector: v.ResultSelector,
		Iterator: v.Iterator, MaxConcurrency: v.MaxConcurrency,
		Retry: v.Retry, Catch: v.Catch,
		Next: v.Next, End: v.End,
	}
	return nil
}

type parallelJSON struct {
	Type           Type          `json:"Type"`
	Comment        string        `json:"Comment,omitempty"`
	InputPath      *OptionalPath `json:"InputPath,omitempty"`
	OutputPath     *OptionalPath `json:"OutputPath,omitempty"`
	ResultPath     *OptionalPath `json:"ResultPath,omitempty"`
	Parameters     any           `json:"Parameters,omitempty"`
	ResultSelector any           `json:"ResultSelector,omitempty"`
	Branches       []Machine     `json:"Branches"`
	Retry          []Retrier     `json:"Retry,omitempty"`
	Catch          []Catcher     `json:"Catch,omitempty"`
	Next           string        `json:"Next,omitempty"`
	End            bool          `json:"End,omitempty"`
}

func (s *ParallelState) MarshalJSON() ([]byte, error) {
	return json.Marshal(parallelJSON{
		Type: TypeParallel, Comment: s.Comment,
		InputPath: s.InputPath, OutputPath: s.OutputPath, ResultPath: s.ResultPath,
		Parameters: s.Parameters, ResultSelector: s.ResultSelector,
		Branches: s.Branches,
		Retry:    s.Retry, Catch: s.Catch,
		Next: s.Next, End: s.End,
	})
}

func (s *ParallelState) UnmarshalJSON(data []byte) error {
	var v parallelJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = ParallelState{
		Comment:   v.Comment,
		InputPath: v.InputPath, OutputPath: v.OutputPath, ResultPath: v.ResultPath,
		Parameters: v.Parameters, ResultSelector: v.ResultSelector,
		Branches: v.Branches,
		Retry:    v.Retry, Catch: v.Catch,
		Next: v.Next, End: v.End,
	}
	return nil
}

type choiceJSON struct {
	Type       Type          `json:"Type"`
	Comment    string        `json:"Comment,omitempty"`
	InputPath  *OptionalPath `json:"InputPath,omitempty"`
	OutputPath *OptionalPath `json:"OutputPath,omitempty"`
	Choices    []ChoiceRule  `json:"Choices"`
	Default    string        `json:"Default,omitempty"`
}

func (s *ChoiceState) MarshalJSON() ([]byte, error) {
	return json.Marshal(choiceJSON{
		Type: TypeChoice, Comment: s.Comment,
		InputPath: s.InputPath, OutputPath: s.OutputPath,
		Choices: s.Choices, Default: s.Default,
	})
}

func (s *ChoiceState) UnmarshalJSON(data []byte) error {
	var v choiceJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = ChoiceState{
		Comment:   v.Comment,
		InputPath: v.InputPath, OutputPath: v.OutputPath,
		Choices: v.Choices, Default: v.Default,
	}
	return nil
}

type waitJSON struct {
	Type          Type          `json:"Type"`
	Comment       string        `json:"Comment,omitempty"`
	InputPath     *OptionalPath `json:"InputPath,omitempty"`
	OutputPath    *OptionalPath `json:"OutputPath,omitempty"`
	Seconds       *int          `json:"Seconds,omitempty"`
	SecondsPath   string        `json:"SecondsPath,omitempty"`
	Timestamp     string        `json:"Timestamp,omitempty"`
	TimestampPath string        `json:"TimestampPath,omitempty"`
	Next          string        `json:"Next,omitempty"`
	End           bool          `json:"End,omitempty"`
}

func (s *WaitState) MarshalJSON() ([]byte, error) {
	return json.Marshal(waitJSON{
		Type: TypeWait, Comment: s.Comment,
		InputPath: s.InputPath, OutputPath: s.OutputPath,
		Seconds: s.Seconds, SecondsPath: s.SecondsPath,
		Timestamp: s.Timestamp, TimestampPath: s.TimestampPath,
		Next: s.Next, End: s.End,
	})
}

func (s *WaitState) UnmarshalJSON(data []byte) error {
	var v waitJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = WaitState{
		Comment:   v.Comment,
		InputPath: v.InputPath, OutputPath: v.OutputPath,
		Seconds: v.Seconds, SecondsPath: v.SecondsPath,
		Timestamp: v.Timestamp, TimestampPath: v.TimestampPath,
		Next: v.Next, End: v.End,
	}
	return nil
}

type succeedJSON struct {
	Type       Type          `json:"Type"`
	Comment    string        `json:"Comment,omitempty"`
	InputPath  *OptionalPath `json:"InputPath,omitempty"`
	OutputPath *OptionalPath `json:"OutputPath,omitempty"`
}

func (s *SucceedState) MarshalJSON() ([]byte, error) {
	return json.Marshal(succeedJSON{
		Type: TypeSucceed, Comment: s.Comment,
		InputPath: s.InputPath, OutputPath: s.OutputPath,
	})
}

func (s *SucceedState) UnmarshalJSON(data []byte) error {
	var v succeedJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = SucceedState{Comment: v.Comment, InputPath: v.InputPath, OutputPath: v.OutputPath}
	return nil
}

type failJSON struct {
	Type    Type   `json:"Type"`
	Comment string `json:"Comment,omitempty"`
	Error   string `json:"Error,omitempty"`
	Cause   string `json:"Cause,omitempty"`
}

func (s *FailState) MarshalJSON() ([]byte, error) {
	return json.Marshal(failJSON{Type: TypeFail, Comment: s.Comment, Error: s.Error, Cause: s.Cause})
}

func (s *FailState) UnmarshalJSON(data []byte) error {
	var v failJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = FailState{Comment: v.Comment, Error: v.Error, Cause: v.Cause}
	return nil
}

// MarshalJSON flattens the rule's condition next to "Next".
func (r ChoiceRule) MarshalJSON() ([]byte, error) {
	m := r.Condition.toMap()
	m["Next"] = r.Next
	return json.Marshal(m)
}

func (r *ChoiceRule) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if next, ok := raw["Next"]; ok {
		if err := json.Unmarshal(next, &r.Next); err != nil {
			return err
		}
		delete(raw, "Next")
	}
	return r.Condition.fromRaw(raw)
}

// MarshalJSON encodes the condition in its Choice-rule form.
func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.toMap())
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return c.fromRaw(raw)
}

func (c Condition) toMap() map[string]any {
	switch {
	case c.And != nil:
		return map[string]any{"And": c.And}
	case c.Or != nil:
		return map[string]any{"Or": c.Or}
	case c.Not != nil:
		return map[string]any{"Not": *c.Not}
	}
	m := map[string]any{}
	if c.Variable != "" {
		m["Variable"] = c.Variable
	}
	if c.Operator != "" {
		m[string(c.Operator)] = c.Value
	}
	return m
}

func (c *Condition) fromRaw(raw map[string]json.RawMessage) error {
	*c = Condition{}
	if v, ok := raw["And"]; ok {
		return json.Unmarshal(v, &c.And)
	}
	if v, ok := raw["Or"]; ok {
		return json.Unmarshal(v, &c.Or)
	}
	if v, ok := raw["Not"]; ok {
		var n Condition
		if err := json.Unmarshal(v, &n); err != nil {
			return err
		}
		c.Not = &n
		return nil
	}
	if v, ok := raw["Variable"]; ok {
		if err := json.Unmarshal(v, &c.Variable); err != nil {
			return err
		}
	}
	for _, key := range slices.Sorted(maps.Keys(raw)) {
		if !IsOperator(key) {
			continue
		}
		c.Operator = Operator(key)
		return json.Unmarshal(raw[key], &c.Value)
	}
	return fmt.Errorf("%w: condition without operator", ErrInvalidCondition)
}
