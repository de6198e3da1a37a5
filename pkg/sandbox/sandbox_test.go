package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSandbox(t *testing.T, mutate ...func(*Config)) *Sandbox {
	t.Helper()

	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	s, err := New(cfg, slog.Default())
	require.NoError(t, err)

	return s
}

func TestEvalWithArgs_TruncatesArguments(t *testing.T) {
	s := newTestSandbox(t)

	result, err := s.EvalWithArgs(context.Background(), "(a,b) => a+b", []any{1, 2, 3}, Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, result)

	result, err = s.EvalWithArgs(context.Background(), "function (a) { return arguments.length }", []any{1, 2, 3}, Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result)
}

func TestEvalWithArgs_RestParameters(t *testing.T) {
	s := newTestSandbox(t)

	result, err := s.EvalWithArgs(context.Background(), "(...xs) => xs.length", []any{"a", "b", "c"}, Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result)

	result, err = s.EvalWithArgs(context.Background(), "(docs, ...rest) => rest[0]", []any{"documents", "events", "extra"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "events", result)
}

func TestEvalWithArgs_CheckArrow(t *testing.T) {
	s := newTestSandbox(t)

	result, err := s.EvalWithArgs(context.Background(), "5", nil, Options{CheckArrow: true})
	require.NoError(t, err)
	assert.Equal(t, "5", result)

	result, err = s.EvalWithArgs(context.Background(), "5", nil, Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 5, result)

	result, err = s.EvalWithArgs(context.Background(), "(n) => n * 2", []any{21}, Options{CheckArrow: true})
	require.NoError(t, err)
	assert.EqualValues(t, 42, result)
}

func TestEvalWithArgs_EmptyCode(t *testing.T) {
	s := newTestSandbox(t, func(c *Config) { c.DefaultValue = false })

	result, err := s.EvalWithArgs(context.Background(), "  ", nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, false, result)

	result, err = s.EvalWithArgs(context.Background(), "", nil, Options{DefaultValue: "fallback"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", result)

	_, err = s.EvalWithArgs(context.Background(), "", nil, Options{ThrowOnUndefined: true})
	assert.ErrorIs(t, err, ErrUndefinedCode)
}

func TestEvalWithArgs_DocumentsAreData(t *testing.T) {
	s := newTestSandbox(t)

	docs := []map[string]any{
		{"name": "invoice", "data": map[string]any{"amount": 120}},
		{"name": "receipt", "data": map[string]any{"amount": 30}},
	}

	result, err := s.EvalWithArgs(context.Background(),
		"(docs, events) => docs.filter(d => d.data.amount > 100).map(d => d.name)",
		[]any{docs, []any{}},
		Options{},
	)
	require.NoError(t, err)
	assert.Equal(t, []any{"invoice"}, result)

	result, err = s.EvalWithArgs(context.Background(), "() => ({ok: true, count: 2})", nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true, "count": int64(2)}, result)
}

func TestEval_Caches(t *testing.T) {
	s := newTestSandbox(t)

	first, err := s.Eval("(a) => a + 1", Options{})
	require.NoError(t, err)

	second, err := s.Eval("  (a) => a + 1;  ", Options{})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, s.cache.Len())
}

func TestEval_CommentsAndSemicolons(t *testing.T) {
	s := newTestSandbox(t)

	result, err := s.EvalWithArgs(context.Background(), "(a) => a * 2 // double it\n;", []any{4}, Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 8, result)

	result, err = s.EvalWithArgs(context.Background(), "/* leading */ (a) => {\n  // inside\n  return a - 1\n}", []any{4}, Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, result)
}

func TestEval_SyntaxError(t *testing.T) {
	s := newTestSandbox(t)

	_, err := s.Eval("(a) => a +* 2", Options{Caller: "gateway 10 formula 0"})
	require.Error(t, err)

	var evalErr *EvalError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, "gateway 10 formula 0", evalErr.Caller)
	assert.Equal(t, 1, evalErr.Line)
	assert.Equal(t, "(a) => a +* 2", evalErr.Function)
	assert.Contains(t, evalErr.Excerpt, "(a) => a +* 2\n")
	assert.Contains(t, evalErr.Excerpt, "^")
	assert.Contains(t, evalErr.Error(), "gateway 10 formula 0: ")
}

func TestEval_RuntimeError(t *testing.T) {
	s := newTestSandbox(t)

	_, err := s.EvalWithArgs(context.Background(), "(doc) => doc.missing.field", []any{map[string]any{}}, Options{})
	require.Error(t, err)

	var evalErr *EvalError
	require.True(t, errors.As(err, &evalErr))
	assert.Contains(t, evalErr.Message, "TypeError")
}

func TestCall_Timeout(t *testing.T) {
	s := newTestSandbox(t, func(c *Config) { c.Timeout = 50 * time.Millisecond })

	start := time.Now()

	_, err := s.EvalWithArgs(context.Background(), "() => { while (true) {} }", nil, Options{})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCall_ContextCancelled(t *testing.T) {
	s := newTestSandbox(t, func(c *Config) { c.Timeout = 0 })

	fn, err := s.Eval("() => { while (true) {} }", Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = fn.Call(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()

	_, err = fn.Call(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCall_StackLimit(t *testing.T) {
	s := newTestSandbox(t, func(c *Config) { c.MaxCallStackSize = 64 })

	_, err := s.EvalWithArgs(context.Background(), "() => { const f = (n) => f(n + 1); return f(0) }", nil, Options{})
	assert.Error(t, err)
}

func TestCall_IsolatedRuntimes(t *testing.T) {
	s := newTestSandbox(t)

	code := "() => { globalThis.counter = (globalThis.counter || 0) + 1; return globalThis.counter }"

	for range 3 {
		result, err := s.EvalWithArgs(context.Background(), code, nil, Options{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, result)
	}
}

func TestGlobals(t *testing.T) {
	s := newTestSandbox(t)

	tests := []struct {
		name     string
		code     string
		args     []any
		expected any
	}{
		{name: "md5", code: "() => $.hash.md5('abc')", expected: "900150983cd24fb0d6963f7d28e17f72"},
		{name: "sha1", code: "(v) => $.hash.sha1(v)", args: []any{"abc"}, expected: "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{name: "sha256", code: "() => $.hash.sha256('abc')", expected: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{name: "date parse", code: "() => $.date.parse('2024-01-01T00:00:00Z')", expected: int64(1704067200000)},
		{name: "date format", code: "() => $.date.format(1704067200000, '2006-01-02')", expected: "2024-01-01"},
		{name: "date format string", code: "() => $.date.format('2024-03-05')", expected: "2024-03-05T00:00:00Z"},
		{name: "console", code: "() => { console.log('hello', 1); $.log.warn('careful'); return true }", expected: true},
		{name: "await shim", code: "(v) => await $.hash.md5(v)", args: []any{"abc"}, expected: "900150983cd24fb0d6963f7d28e17f72"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.EvalWithArgs(context.Background(), tt.code, tt.args, Options{})
			require.NoError(t, err)
			assert.EqualValues(t, tt.expected, result)
		})
	}
}

func TestGlobals_InvalidDate(t *testing.T) {
	s := newTestSandbox(t)

	_, err := s.EvalWithArgs(context.Background(), "() => $.date.parse('yesterday')", nil, Options{})
	assert.Error(t, err)
}

func TestRegisterTemplateFunctions(t *testing.T) {
	s := newTestSandbox(t)

	err := s.RegisterTemplateFunctions(1, map[string]string{
		"isVip":    "(doc) => doc.data.vip === true",
		"vipCount": "(docs) => docs.filter(d => $.workflow.isVip(d)).length",
	})
	require.NoError(t, err)

	docs := []any{
		map[string]any{"data": map[string]any{"vip": true}},
		map[string]any{"data": map[string]any{"vip": false}},
	}

	result, err := s.EvalWithArgs(context.Background(), "(docs) => $.workflow.vipCount(docs) === 1", []any{docs}, Options{WorkflowTemplateID: 1})
	require.NoError(t, err)
	assert.Equal(t, true, result)

	_, err = s.EvalWithArgs(context.Background(), "(docs) => $.workflow.vipCount(docs)", []any{docs}, Options{WorkflowTemplateID: 2})
	assert.Error(t, err)
}

func TestRegisterTemplateFunctions_Invalid(t *testing.T) {
	s := newTestSandbox(t)

	err := s.RegisterTemplateFunctions(1, map[string]string{"answer": "42"})
	assert.ErrorIs(t, err, ErrNotAFunction)

	err = s.RegisterTemplateFunctions(1, map[string]string{"broken": "(a) => a +* 1"})

	var evalErr *EvalError
	assert.True(t, errors.As(err, &evalErr))

	err = s.RegisterTemplateFunctions(1, map[string]string{"not valid": "() => 1"})
	assert.Error(t, err)
}

func TestNew_CustomNamespace(t *testing.T) {
	s := newTestSandbox(t, func(c *Config) {
		c.Namespace = "ctx"
	})

	result, err := s.EvalWithArgs(context.Background(), "() => ctx.hash.md5('abc')", nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", result)

	result, err = s.EvalWithArgs(context.Background(), "(v) => await ctx.hash.md5(v)", []any{"abc"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", result)

	_, err = New(Config{Namespace: "1bad"}, slog.Default())
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code       string
		kind       Kind
		paramCount int
	}{
		{code: "() => 1", kind: KindArrowFn},
		{code: "a => a", kind: KindArrowFn, paramCount: 1},
		{code: "(docs, events) => docs.length > 0", kind: KindArrowFn, paramCount: 2},
		{code: "function (a, b, c) { return a }", kind: KindFunction, paramCount: 3},
		{code: "(...xs) => xs.length", kind: KindArrowFn, paramCount: 1},
		{code: "(a, ...rest) => rest", kind: KindArrowFn, paramCount: 2},
		{code: "function (...xs) { return xs }", kind: KindFunction, paramCount: 1},
		{code: "42", kind: KindLiteral},
		{code: "'text'", kind: KindLiteral},
		{code: "{a: 1}", kind: KindLiteral},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			classification, err := classify(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, classification.Kind)
			assert.Equal(t, tt.paramCount, classification.ParamCount)
		})
	}
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(int64(0)))
	assert.False(t, Truthy(0.0))
	assert.True(t, Truthy(true))
	assert.True(t, Truthy("false"))
	assert.True(t, Truthy(int64(2)))
	assert.True(t, Truthy([]any{}))
	assert.True(t, Truthy(map[string]any{}))
}

func TestEvalError_Excerpt(t *testing.T) {
	assert.Equal(t, "a + b\n    ^", excerpt("a + b", 1, 5))
	assert.Equal(t, "", excerpt("a + b", 3, 1))
	assert.Equal(t, "line two\n^", excerpt("line one\nline two", 2, 0))
}
