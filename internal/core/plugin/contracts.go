package plugin

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Context carries caller-provided information about the project under analysis.
type Context map[string]any

// Options are per-call options passed through to a plugin.
type Options map[string]any

// Params are integration action parameters.
type Params map[string]any

// FixSpec describes a fix a fixer should apply. "type" selects the rollback strategy.
type FixSpec map[string]any

// Result is the free-form value every plugin operation returns.
type Result map[string]any

// Analyzer inspects tool output and explains it.
type Analyzer interface {
	Supports(actx Context) bool
	Analyze(ctx context.Context, output string, actx Context) (Result, error)
}

// Provider answers prompts through a model backend.
type Provider interface {
	Query(ctx context.Context, prompt string, opts Options) (Result, error)
	IsAvailable(ctx context.Context) bool
}

// Fixer applies fixes to a project.
type Fixer interface {
	Fix(ctx context.Context, spec FixSpec, actx Context) (Result, error)
	CanFix(fixType string, actx Context) bool
}

// QualityCheck runs checks and reports metrics over a set of files.
type QualityCheck interface {
	Check(ctx context.Context, files []string, opts Options) (Result, error)
	Metrics(ctx context.Context, files []string) (Result, error)
}

// Integration drives an external tool.
type Integration interface {
	Execute(ctx context.Context, action string, params Params) (Result, error)
	IsConfigured() bool
}

// Initializer is an optional lifecycle hook called once after a successful load.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Cleaner is an optional lifecycle hook called on shutdown.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

var contracts = map[Category]reflect.Type{
	CategoryAnalyzer:    reflect.TypeOf((*Analyzer)(nil)).Elem(),
	CategoryProvider:    reflect.TypeOf((*Provider)(nil)).Elem(),
	CategoryFixer:       reflect.TypeOf((*Fixer)(nil)).Elem(),
	CategoryQuality:     reflect.TypeOf((*QualityCheck)(nil)).Elem(),
	CategoryIntegration: reflect.TypeOf((*Integration)(nil)).Elem(),
}

// RequiredMethods returns the method names a category contract requires.
func RequiredMethods(c Category) []string {
	iface, ok := contracts[c]
	if !ok {
		return nil
	}
	names := make([]string, iface.NumMethod())
	for i := range names {
		names[i] = iface.Method(i).Name
	}
	return names
}

// ValidateContract checks that instance exposes every method its category requires.
// The check is structural only; behavior is never exercised.
func ValidateContract(c Category, instance any) error {
	iface, ok := contracts[c]
	if !ok {
		return fmt.Errorf("unknown plugin type %q", c)
	}
	if instance == nil {
		return fmt.Errorf("constructor returned nil instance")
	}

	t := reflect.TypeOf(instance)
	if t.Implements(iface) {
		return nil
	}

	var missing []string
	for i := 0; i < iface.NumMethod(); i++ {
		want := iface.Method(i)
		got, ok := t.MethodByName(want.Name)
		if !ok {
			missing = append(missing, want.Name)
			continue
		}
		if !sameSignature(got.Type, want.Type) {
			missing = append(missing, want.Name+" (wrong signature)")
		}
	}
	if len(missing) == 0 {
		missing = append(missing, "method set mismatch")
	}
	return fmt.Errorf("%s contract not satisfied: missing %s", c, strings.Join(missing, ", "))
}

// sameSignature compares a method value type (receiver first) with an interface method type.
func sameSignature(method, want reflect.Type) bool {
	if method.NumIn()-1 != want.NumIn() || method.NumOut() != want.NumOut() {
		return false
	}
	for i := 0; i < want.NumIn(); i++ {
		if method.In(i+1) != want.In(i) {
			return false
		}
	}
	for i := 0; i < want.NumOut(); i++ {
		if method.Out(i) != want.Out(i) {
			return false
		}
	}
	return true
}
