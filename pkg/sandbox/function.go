package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// Function is a compiled expression. It is safe for concurrent use: every call runs
// in its own runtime.
type Function struct {
	Source         string
	Classification Classification

	compiled string
	program  *goja.Program
	sandbox  *Sandbox
}

// Call runs the expression without workflow custom functions.
func (f *Function) Call(ctx context.Context, args ...any) (any, error) {
	return f.CallWith(ctx, Options{}, args...)
}

// CallWith runs the expression. A function expression is invoked with args; any other
// expression yields its value.
func (f *Function) CallWith(ctx context.Context, opts Options, args ...any) (result any, err error) {
	err = ctx.Err()
	if err != nil {
		return nil, err
	}

	vm := goja.New()

	if f.sandbox.cfg.Timeout > 0 {
		timer := time.AfterFunc(f.sandbox.cfg.Timeout, func() {
			vm.Interrupt(ErrTimeout)
		})
		defer timer.Stop()
	}

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = newEvalError(fmt.Errorf("expression panicked: %v", r), f.compiled, opts.Caller)
		}
	}()

	value, err := f.run(vm, opts, args)
	if err != nil {
		if cause := interruptCause(err); cause != nil {
			evalErr := newEvalError(cause, f.compiled, opts.Caller)
			evalErr.Err = cause

			return nil, evalErr
		}

		var evalErr *EvalError
		if errors.As(err, &evalErr) {
			return nil, err
		}

		return nil, newEvalError(err, f.compiled, opts.Caller)
	}

	return export(value, f.compiled, opts.Caller)
}

func (f *Function) run(vm *goja.Runtime, opts Options, args []any) (goja.Value, error) {
	globals, err := f.sandbox.bindGlobals(vm, opts)
	if err != nil {
		return nil, err
	}

	value, err := f.instantiate(vm, globals)
	if err != nil {
		return nil, err
	}

	fn, ok := goja.AssertFunction(value)
	if !ok {
		return value, nil
	}

	jsArgs, err := toJSValues(vm, args)
	if err != nil {
		return nil, err
	}

	return fn(goja.Undefined(), jsArgs...)
}

// instantiate evaluates the wrapper with the runtime globals and returns the expression value.
func (f *Function) instantiate(vm *goja.Runtime, globals []goja.Value) (goja.Value, error) {
	wrapperValue, err := vm.RunProgram(f.program)
	if err != nil {
		return nil, err
	}

	wrapper, ok := goja.AssertFunction(wrapperValue)
	if !ok {
		return nil, fmt.Errorf("compiled wrapper is not callable")
	}

	return wrapper(goja.Undefined(), globals...)
}

func toJSValues(vm *goja.Runtime, args []any) ([]goja.Value, error) {
	jsonObject := vm.Get("JSON").ToObject(vm)

	parse, ok := goja.AssertFunction(jsonObject.Get("parse"))
	if !ok {
		return nil, fmt.Errorf("JSON.parse is not available")
	}

	values := make([]goja.Value, 0, len(args))

	for _, arg := range args {
		if arg == nil {
			values = append(values, goja.Null())

			continue
		}

		body, err := json.Marshal(arg)
		if err != nil {
			values = append(values, vm.ToValue(arg))

			continue
		}

		value, err := parse(jsonObject, vm.ToValue(string(body)))
		if err != nil {
			return nil, err
		}

		values = append(values, value)
	}

	return values, nil
}

func export(value goja.Value, source, caller string) (any, error) {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}

	exported := value.Export()

	promise, ok := exported.(*goja.Promise)
	if !ok {
		return exported, nil
	}

	switch promise.State() {
	case goja.PromiseStateFulfilled:
		return export(promise.Result(), source, caller)
	case goja.PromiseStateRejected:
		return nil, newEvalError(fmt.Errorf("promise rejected: %s", promise.Result().String()), source, caller)
	default:
		return nil, newEvalError(errors.New("promise did not settle"), source, caller)
	}
}
