package tracing

import (
	"context"
	"fmt"
	"reflect"
)

// Wrap0 returns fn instrumented as the business operation name. The
// returned function has the same signature and behaves identically: the
// result and error pass through unchanged and a panic propagates with its
// original value. When ctx carries no active request nothing is recorded.
func Wrap0[R any](name string, fn func(context.Context) (R, error)) func(context.Context) (R, error) {
	return func(ctx context.Context) (R, error) {
		rc, ok := Current(ctx)
		s := enterCall(rc, ok, name, nil, nil)
		defer s.recoverPanic()

		r, err := fn(ctx)
		s.exit(r, err)
		return r, err
	}
}

// Wrap1 is Wrap0 for operations taking one argument.
func Wrap1[A, R any](name string, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	return func(ctx context.Context, a A) (R, error) {
		rc, ok := Current(ctx)
		s := enterCall(rc, ok, name, []any{a}, nil)
		defer s.recoverPanic()

		r, err := fn(ctx, a)
		s.exit(r, err)
		return r, err
	}
}

// Wrap2 is Wrap0 for operations taking two arguments.
func Wrap2[A, B, R any](name string, fn func(context.Context, A, B) (R, error)) func(context.Context, A, B) (R, error) {
	return func(ctx context.Context, a A, b B) (R, error) {
		rc, ok := Current(ctx)
		s := enterCall(rc, ok, name, []any{a, b}, nil)
		defer s.recoverPanic()

		r, err := fn(ctx, a, b)
		s.exit(r, err)
		return r, err
	}
}

// Wrap3 is Wrap0 for operations taking three arguments.
func Wrap3[A, B, C, R any](name string, fn func(context.Context, A, B, C) (R, error)) func(context.Context, A, B, C) (R, error) {
	return func(ctx context.Context, a A, b B, c C) (R, error) {
		rc, ok := Current(ctx)
		s := enterCall(rc, ok, name, []any{a, b, c}, nil)
		defer s.recoverPanic()

		r, err := fn(ctx, a, b, c)
		s.exit(r, err)
		return r, err
	}
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// WrapFunc instruments a function of any signature. fn must accept a
// context.Context; the first one is used to find the request. If fn's last
// result is an error, a non-nil value marks the call as failed. Other
// results are recorded as the call's result: a single value as itself,
// several as a list.
//
// WrapFunc panics if fn is not a function or takes no context.
func WrapFunc[F any](name string, fn F) F {
	return wrapReflect(name, nil, fn)
}

// WrapNamed is WrapFunc recording arguments by name. params names the
// arguments after the context, in order; arguments beyond len(params) are
// recorded positionally.
func WrapNamed[F any](name string, params []string, fn F) F {
	return wrapReflect(name, params, fn)
}

func wrapReflect[F any](name string, params []string, fn F) F {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		panic(fmt.Sprintf("tracing: wrap %s: expected a function, got %T", name, fn))
	}
	t := v.Type()

	ctxIdx := -1
	for i := 0; i < t.NumIn(); i++ {
		if t.In(i).Implements(contextType) {
			ctxIdx = i
			break
		}
	}
	if ctxIdx < 0 {
		panic(fmt.Sprintf("tracing: wrap %s: %s takes no context.Context", name, t))
	}

	errIdx := -1
	if n := t.NumOut(); n > 0 && t.Out(n-1) == errorType {
		errIdx = n - 1
	}

	wrapped := reflect.MakeFunc(t, func(in []reflect.Value) []reflect.Value {
		ctx, _ := in[ctxIdx].Interface().(context.Context)
		rc, ok := Current(ctx)

		var s *callScope
		if ok {
			positional, keyword := splitArgs(in, ctxIdx, params)
			s = enterCall(rc, ok, name, positional, keyword)
		}
		defer s.recoverPanic()

		var out []reflect.Value
		if t.IsVariadic() {
			out = v.CallSlice(in)
		} else {
			out = v.Call(in)
		}

		if s != nil {
			result, err := splitResults(out, errIdx)
			s.exit(result, err)
		}
		return out
	})

	return wrapped.Interface().(F)
}

func splitArgs(in []reflect.Value, ctxIdx int, params []string) ([]any, map[string]any) {
	var (
		positional []any
		keyword    map[string]any
		n          int
	)
	for i, arg := range in {
		if i == ctxIdx {
			continue
		}
		if n < len(params) && params[n] != "" {
			if keyword == nil {
				keyword = make(map[string]any, len(params))
			}
			keyword[params[n]] = arg.Interface()
		} else {
			positional = append(positional, arg.Interface())
		}
		n++
	}
	return positional, keyword
}

func splitResults(out []reflect.Value, errIdx int) (any, error) {
	var err error
	if errIdx >= 0 {
		err, _ = out[errIdx].Interface().(error)
		out = out[:errIdx]
	}

	switch len(out) {
	case 0:
		return nil, err
	case 1:
		return out[0].Interface(), err
	}
	results := make([]any, len(out))
	for i, o := range out {
		results[i] = o.Interface()
	}
	return results, err
}
