// Package macro manages filter macros: CRUD over the metadata store and
// sandboxed Starlark expansion into filter expressions.
package macro

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"quarry/internal/domain"
)

const (
	defaultMaxSteps    = uint64(50_000)
	defaultEvalTimeout = 2 * time.Second
	maxOutputBytes     = 256 * 1024
	maxBodyBytes       = 64 * 1024
	maxArgsBytes       = 64 * 1024
)

// Runtime executes macro bodies as sandboxed Starlark functions. A macro's
// body becomes the body of def <name>(<parameters>); single expressions are
// returned implicitly. Execution is capped in steps, wall time, and output
// size.
type Runtime struct {
	maxSteps    uint64
	evalTimeout time.Duration
}

var _ domain.MacroExpander = (*Runtime)(nil)

// NewRuntime creates a Runtime with the default execution limits.
func NewRuntime() *Runtime {
	return &Runtime{
		maxSteps:    defaultMaxSteps,
		evalTimeout: defaultEvalTimeout,
	}
}

// Expand runs the macro with the given keyword arguments and returns the
// generated filter expression text. Argument values are Starlark expressions:
// 7, 'eu', [1, 2].
func (r *Runtime) Expand(ctx context.Context, m *domain.Macro, args map[string]string) (string, error) {
	globals, err := r.load(ctx, m)
	if err != nil {
		return "", err
	}
	fn, ok := globals[m.Name].(starlark.Callable)
	if !ok {
		return "", domain.ErrValidation("macro %q does not define a callable function", m.Name)
	}

	total := 0
	for _, raw := range args {
		total += len(raw)
	}
	if total > maxArgsBytes {
		return "", domain.ErrValidation("macro %q arguments exceed %d bytes", m.Name, maxArgsBytes)
	}

	thread := &starlark.Thread{Name: "macro-expand"}
	thread.SetMaxExecutionSteps(r.maxSteps)

	kwargs, err := buildKwargs(thread, args)
	if err != nil {
		return "", err
	}

	var result starlark.Value
	if err := r.run(ctx, thread, func() error {
		v, err := starlark.Call(thread, fn, nil, kwargs)
		if err != nil {
			return err
		}
		result = v
		return nil
	}); err != nil {
		if passthroughErr(err) {
			return "", err
		}
		return "", domain.ErrValidation("macro %q failed: %v", m.Name, err)
	}

	text, ok := starlark.AsString(result)
	if !ok {
		return "", domain.ErrValidation("macro %q must return a string, got %s", m.Name, result.Type())
	}
	if len(text) > maxOutputBytes {
		return "", domain.ErrValidation("macro %q output exceeds %d bytes", m.Name, maxOutputBytes)
	}
	return text, nil
}

// CompileCheck loads the macro body and verifies it defines a callable
// function, catching syntax errors before the macro is stored.
func (r *Runtime) CompileCheck(ctx context.Context, m *domain.Macro) error {
	globals, err := r.load(ctx, m)
	if err != nil {
		return err
	}
	if _, ok := globals[m.Name].(starlark.Callable); !ok {
		return domain.ErrValidation("macro %q does not define a callable function", m.Name)
	}
	return nil
}

func (r *Runtime) load(ctx context.Context, m *domain.Macro) (starlark.StringDict, error) {
	src, err := renderFunctionSource(m)
	if err != nil {
		return nil, err
	}

	thread := &starlark.Thread{Name: "macro-load"}
	thread.SetMaxExecutionSteps(r.maxSteps)

	var globals starlark.StringDict
	if err := r.run(ctx, thread, func() error {
		loaded, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, m.Name+".star", src, nil)
		if err != nil {
			return err
		}
		globals = loaded
		return nil
	}); err != nil {
		if passthroughErr(err) {
			return nil, err
		}
		return nil, domain.ErrValidation("macro %q failed to load: %v", m.Name, err)
	}
	return globals, nil
}

// passthroughErr reports whether err already carries the right shape for
// callers: a domain validation error or a context cancellation.
func passthroughErr(err error) bool {
	var verr *domain.ValidationError
	return errors.As(err, &verr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// run executes fn on its own goroutine, cancelling the thread on timeout or
// context cancellation.
func (r *Runtime) run(ctx context.Context, thread *starlark.Thread, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.evalTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		thread.Cancel("request cancelled")
		<-done
		return ctx.Err()
	case <-timer.C:
		thread.Cancel("macro execution timed out")
		<-done
		return domain.ErrValidation("macro execution timed out after %s", r.evalTimeout)
	}
}

// renderFunctionSource turns a macro into Starlark source: a def wrapping the
// body, with single-expression bodies returned implicitly.
func renderFunctionSource(m *domain.Macro) (string, error) {
	if !isValidIdent(m.Name) {
		return "", domain.ErrValidation("invalid macro name %q", m.Name)
	}
	for _, p := range m.Parameters {
		if !isValidIdent(p) {
			return "", domain.ErrValidation("invalid macro parameter %q", p)
		}
	}
	if len(m.Body) > maxBodyBytes {
		return "", domain.ErrValidation("macro %q body exceeds %d bytes", m.Name, maxBodyBytes)
	}
	body := strings.TrimSpace(m.Body)
	if body == "" {
		return "", domain.ErrValidation("macro %q body cannot be empty", m.Name)
	}

	var b strings.Builder
	b.WriteString("def ")
	b.WriteString(m.Name)
	b.WriteByte('(')
	b.WriteString(strings.Join(m.Parameters, ", "))
	b.WriteString("):\n")

	lines := strings.Split(body, "\n")
	if len(lines) == 1 && !looksLikeStatement(lines[0]) {
		b.WriteString("    return ")
		b.WriteString(strings.TrimSpace(lines[0]))
		b.WriteByte('\n')
		return b.String(), nil
	}
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			b.WriteString("    \n")
			continue
		}
		b.WriteString("    ")
		b.WriteString(trimmed)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func buildKwargs(thread *starlark.Thread, args map[string]string) ([]starlark.Tuple, error) {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	kwargs := make([]starlark.Tuple, 0, len(names))
	for _, name := range names {
		raw := args[name]
		val, err := starlark.EvalOptions(&syntax.FileOptions{}, thread, "<macro-arg>", raw, nil)
		if err != nil {
			return nil, domain.ErrValidation("invalid macro argument %s=%s: %v", name, raw, err)
		}
		kwargs = append(kwargs, starlark.Tuple{starlark.String(name), val})
	}
	return kwargs, nil
}

func isValidIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 {
			if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
				return false
			}
			continue
		}
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func looksLikeStatement(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, prefix := range []string{"return ", "if ", "for ", "while ", "def ", "pass", "break", "continue", "load("} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
