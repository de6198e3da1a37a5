// Package sandbox evaluates author-supplied JavaScript expressions in isolated runtimes.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dop251/goja"
	lru "github.com/hashicorp/golang-lru/v2"
)

const programName = "expression"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Config configures a Sandbox.
type Config struct {
	// Namespace is the global object exposing the helper functions.
	Namespace string
	CacheSize int
	// Timeout bounds the wall-clock time of a single call.
	Timeout          time.Duration
	MaxCallStackSize int
	// AsyncBuiltins name the helpers under Namespace that authors may await. Helpers run
	// synchronously, so the await in front of <namespace>.<name>. calls is removed before
	// compiling.
	AsyncBuiltins []string
	DefaultValue  any
}

func DefaultConfig() Config {
	return Config{
		Namespace:        "$",
		CacheSize:        1000,
		Timeout:          2 * time.Second,
		MaxCallStackSize: 256,
		AsyncBuiltins:    []string{"workflow", "hash", "date"},
	}
}

// Options customizes one evaluation.
type Options struct {
	// CheckArrow returns the code itself when it is not a function.
	CheckArrow bool
	// ThrowOnUndefined fails empty code instead of returning the default value.
	ThrowOnUndefined bool
	// DefaultValue overrides Config.DefaultValue for empty code.
	DefaultValue any
	// Caller names the evaluation site in errors and logs.
	Caller string
	// WorkflowTemplateID selects the custom functions bound to <namespace>.workflow.
	WorkflowTemplateID int64
}

// Sandbox compiles expressions once and runs every call in a fresh runtime.
type Sandbox struct {
	cfg    Config
	logger *slog.Logger
	cache  *lru.Cache[uint64, *Function]
	await  *regexp.Regexp

	mu        sync.RWMutex
	functions map[int64]map[string]*Function
}

func New(cfg Config, logger *slog.Logger) (*Sandbox, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = "$"
	}

	if !identifierPattern.MatchString(cfg.Namespace) || cfg.Namespace == "console" {
		return nil, fmt.Errorf("invalid sandbox namespace %q", cfg.Namespace)
	}

	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}

	if cfg.MaxCallStackSize <= 0 {
		cfg.MaxCallStackSize = 256
	}

	cache, err := lru.New[uint64, *Function](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create expression cache: %w", err)
	}

	return &Sandbox{
		cfg:       cfg,
		logger:    logger.With("module", "sandbox"),
		cache:     cache,
		await:     awaitPattern(cfg.Namespace, cfg.AsyncBuiltins),
		functions: make(map[int64]map[string]*Function),
	}, nil
}

// Eval compiles code, or returns the cached compilation of identical code.
func (s *Sandbox) Eval(code string, opts Options) (*Function, error) {
	source := normalize(code)
	if source == "" {
		return nil, ErrUndefinedCode
	}

	key := xxhash.Sum64String(source)

	if fn, ok := s.cache.Get(key); ok && fn.Source == source {
		return fn, nil
	}

	fn, err := s.compile(source, opts)
	if err != nil {
		return nil, err
	}

	s.cache.Add(key, fn)

	return fn, nil
}

// EvalWithArgs evaluates code and, when it is a function, calls it with args truncated
// to its declared parameter count.
func (s *Sandbox) EvalWithArgs(ctx context.Context, code string, args []any, opts Options) (any, error) {
	if normalize(code) == "" {
		if opts.ThrowOnUndefined {
			return nil, ErrUndefinedCode
		}

		if opts.DefaultValue != nil {
			return opts.DefaultValue, nil
		}

		return s.cfg.DefaultValue, nil
	}

	fn, err := s.Eval(code, opts)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to compile expression", "caller", opts.Caller, "error", err)

		return nil, err
	}

	if opts.CheckArrow && !fn.Classification.IsFunction() {
		return code, nil
	}

	if fn.Classification.IsFunction() && len(args) > fn.Classification.ParamCount {
		args = args[:fn.Classification.ParamCount]
	}

	result, err := fn.CallWith(ctx, opts, args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to evaluate expression", "caller", opts.Caller, "error", err)

		return nil, err
	}

	return result, nil
}

// RegisterTemplateFunctions compiles the custom functions of a workflow template and
// exposes them as <namespace>.workflow.<name> to calls with that template id.
func (s *Sandbox) RegisterTemplateFunctions(workflowTemplateID int64, sources map[string]string) error {
	functions := make(map[string]*Function, len(sources))

	for name, source := range sources {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("invalid function name %q in workflow template %d", name, workflowTemplateID)
		}

		fn, err := s.compile(normalize(source), Options{
			Caller: fmt.Sprintf("workflow template %d function %s", workflowTemplateID, name),
		})
		if err != nil {
			return err
		}

		if !fn.Classification.IsFunction() {
			return fmt.Errorf("workflow template %d function %s: %w", workflowTemplateID, name, ErrNotAFunction)
		}

		functions[name] = fn
	}

	s.mu.Lock()
	s.functions[workflowTemplateID] = functions
	s.mu.Unlock()

	return nil
}

func (s *Sandbox) templateFunctions(workflowTemplateID int64) map[string]*Function {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.functions[workflowTemplateID]
}

// globalNames are the parameters of the compiled wrapper, in binding order.
func (s *Sandbox) globalNames() []string {
	names := []string{s.cfg.Namespace, "console"}
	sort.Strings(names)

	return names
}

func (s *Sandbox) compile(source string, opts Options) (*Function, error) {
	if source == "" {
		return nil, ErrUndefinedCode
	}

	compiled := s.await.ReplaceAllString(source, "$1")

	classification, err := classify(compiled)
	if err != nil {
		return nil, newEvalError(err, compiled, opts.Caller)
	}

	wrapper := "(function(" + strings.Join(s.globalNames(), ", ") + ") { return (\n" + compiled + "\n); })"

	program, err := goja.Compile(programName, wrapper, false)
	if err != nil {
		return nil, newEvalError(err, compiled, opts.Caller)
	}

	return &Function{
		Source:         source,
		compiled:       compiled,
		Classification: classification,
		program:        program,
		sandbox:        s,
	}, nil
}

func normalize(code string) string {
	return strings.TrimRight(strings.TrimSpace(code), "; \t\r\n")
}

func awaitPattern(namespace string, builtins []string) *regexp.Regexp {
	if len(builtins) == 0 {
		return regexp.MustCompile(`$^`)
	}

	quoted := make([]string, 0, len(builtins))
	for _, builtin := range builtins {
		quoted = append(quoted, regexp.QuoteMeta(namespace+"."+builtin+"."))
	}

	return regexp.MustCompile(`\bawait\s+((?:` + strings.Join(quoted, "|") + `))`)
}

// interruptCause returns the error a call was interrupted with, or nil.
func interruptCause(err error) error {
	var interrupted *goja.InterruptedError
	if !errors.As(err, &interrupted) {
		return nil
	}

	if cause, ok := interrupted.Value().(error); ok {
		return cause
	}

	return ErrTimeout
}
