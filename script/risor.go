package script

import (
	"context"
	"fmt"
	"sort"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/modules/all"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/parser"
)

// RisorEngine compiles and evaluates Risor source. Engine-level globals are
// declared at compile time; call-time globals with the same names override
// them at evaluation.
type RisorEngine struct {
	globals map[string]any
}

// NewRisorEngine creates a Risor compiler with the given globals. Every
// global name a script references must be present here, even if its value is
// only supplied at evaluation time.
func NewRisorEngine(globals map[string]any) *RisorEngine {
	return &RisorEngine{globals: globals}
}

func (e *RisorEngine) Compile(ctx context.Context, source string) (Script, error) {
	ast, err := parser.Parse(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	var names []string
	for name := range e.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	code, err := compiler.Compile(ast, compiler.WithGlobalNames(names))
	if err != nil {
		return nil, fmt.Errorf("failed to compile script: %w", err)
	}
	return &risorScript{engine: e, code: code}, nil
}

type risorScript struct {
	engine *RisorEngine
	code   *compiler.Code
}

func (s *risorScript) Evaluate(ctx context.Context, globals map[string]any) (Value, error) {
	combined := make(map[string]any, len(s.engine.globals)+len(globals))
	for name, value := range s.engine.globals {
		combined[name] = value
	}
	for name, value := range globals {
		combined[name] = value
	}
	obj, err := risor.EvalCode(ctx, s.code, risor.WithGlobals(combined))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate script: %w", err)
	}
	return &risorValue{obj: obj}, nil
}

type risorValue struct {
	obj object.Object
}

func (v *risorValue) Value() any {
	return toGoValue(v.obj)
}

func (v *risorValue) String() string {
	if s, ok := v.obj.(*object.String); ok {
		return s.Value()
	}
	return v.obj.Inspect()
}

func (v *risorValue) IsTruthy() bool {
	return v.obj.IsTruthy()
}

// toGoValue converts a Risor object into a plain Go value.
func toGoValue(obj object.Object) any {
	switch o := obj.(type) {
	case *object.String:
		return o.Value()
	case *object.Int:
		return o.Value()
	case *object.Float:
		return o.Value()
	case *object.Bool:
		return o.Value()
	case *object.Time:
		return o.Value()
	case *object.NilType:
		return nil
	case *object.List:
		var out []any
		for _, item := range o.Value() {
			out = append(out, toGoValue(item))
		}
		return out
	case *object.Set:
		var out []any
		for _, item := range o.Value() {
			out = append(out, toGoValue(item))
		}
		return out
	case *object.Map:
		out := make(map[string]any, len(o.Value()))
		for key, value := range o.Value() {
			out[key] = toGoValue(value)
		}
		return out
	default:
		return obj.Inspect()
	}
}

// DefaultGlobals returns the builtin functions available to scripts.
func DefaultGlobals() map[string]any {
	globals := map[string]any{}
	for name, value := range all.Builtins() {
		globals[name] = value
	}
	return globals
}
