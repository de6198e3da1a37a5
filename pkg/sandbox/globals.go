package sandbox

import (
	"context"
	"crypto/md5" //nolint:gosec // authors use md5 for fingerprints, not security
	"crypto/sha1" //nolint:gosec
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// bindGlobals builds the globals of one runtime and returns them in globalNames order.
func (s *Sandbox) bindGlobals(vm *goja.Runtime, opts Options) ([]goja.Value, error) {
	vm.SetMaxCallStackSize(s.cfg.MaxCallStackSize)
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	logger := s.logger.With("source", "expression")
	if opts.Caller != "" {
		logger = logger.With("caller", opts.Caller)
	}

	namespace := vm.NewObject()
	workflow := vm.NewObject()

	objects := map[string]map[string]any{
		"hash": {
			"md5":    hashFunc(md5Sum),
			"sha1":   hashFunc(sha1Sum),
			"sha256": hashFunc(sha256Sum),
		},
		"date": {
			"now":    func() string { return time.Now().UTC().Format(time.RFC3339Nano) },
			"parse":  parseDate,
			"format": formatDate(vm),
		},
		"log": {
			"debug": logFunc(logger, slog.LevelDebug),
			"info":  logFunc(logger, slog.LevelInfo),
			"warn":  logFunc(logger, slog.LevelWarn),
			"error": logFunc(logger, slog.LevelError),
		},
	}

	for name, members := range objects {
		object := vm.NewObject()

		for member, fn := range members {
			err := object.Set(member, fn)
			if err != nil {
				return nil, err
			}
		}

		err := namespace.Set(name, object)
		if err != nil {
			return nil, err
		}
	}

	err := namespace.Set("workflow", workflow)
	if err != nil {
		return nil, err
	}

	console := vm.NewObject()

	err = console.Set("log", logFunc(logger, slog.LevelInfo))
	if err != nil {
		return nil, err
	}

	byName := map[string]goja.Value{
		s.cfg.Namespace: namespace,
		"console":       console,
	}

	names := s.globalNames()
	globals := make([]goja.Value, 0, len(names))

	for _, name := range names {
		globals = append(globals, byName[name])
	}

	for name, fn := range s.templateFunctions(opts.WorkflowTemplateID) {
		value, err := fn.instantiate(vm, globals)
		if err != nil {
			return nil, newEvalError(err, fn.compiled, fmt.Sprintf("workflow function %s", name))
		}

		err = workflow.Set(name, value)
		if err != nil {
			return nil, err
		}
	}

	return globals, nil
}

func md5Sum(b []byte) []byte {
	sum := md5.Sum(b) //nolint:gosec

	return sum[:]
}

func sha1Sum(b []byte) []byte {
	sum := sha1.Sum(b) //nolint:gosec

	return sum[:]
}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)

	return sum[:]
}

func hashFunc(sum func([]byte) []byte) func(string) string {
	return func(input string) string {
		return hex.EncodeToString(sum([]byte(input)))
	}
}

// parseDate returns the unix time in milliseconds of an RFC 3339 date.
func parseDate(input string) (int64, error) {
	parsed, err := time.Parse(time.RFC3339Nano, input)
	if err != nil {
		parsed, err = time.Parse(time.DateOnly, input)
		if err != nil {
			return 0, fmt.Errorf("invalid date %q", input)
		}
	}

	return parsed.UnixMilli(), nil
}

// formatDate formats a unix millisecond timestamp or an RFC 3339 string with a Go layout.
func formatDate(vm *goja.Runtime) func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		input := call.Argument(0)

		var moment time.Time

		switch value := input.Export().(type) {
		case int64:
			moment = time.UnixMilli(value)
		case float64:
			moment = time.UnixMilli(int64(value))
		case string:
			millis, err := parseDate(value)
			if err != nil {
				panic(vm.NewGoError(err))
			}

			moment = time.UnixMilli(millis)
		default:
			panic(vm.NewTypeError("date.format expects a timestamp or a date string"))
		}

		layout := time.RFC3339
		if arg := call.Argument(1); !goja.IsUndefined(arg) {
			layout = arg.String()
		}

		return vm.ToValue(moment.UTC().Format(layout))
	}
}

func logFunc(logger *slog.Logger, level slog.Level) func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}

		logger.Log(context.Background(), level, strings.Join(parts, " "))

		return goja.Undefined()
	}
}
