package funcs

import (
	"context"
	"fmt"
	"reflect"

	"github.com/HansdasC/utype"
	"github.com/HansdasC/utype/rule"
)

// Generator is the synchronous generator protocol: Next produces values
// until exhaustion, Send feeds a value for the next step, and Return yields
// the final result once Next has reported exhaustion.
type Generator interface {
	Next() (any, bool, error)
	Send(v any) error
	Return() (any, error)
}

// AsyncGenerator mirrors Generator for context-aware iteration. There is no
// return slot.
type AsyncGenerator interface {
	Next(ctx context.Context) (any, bool, error)
	Send(ctx context.Context, v any) error
}

var (
	generatorType      = reflect.TypeOf((*Generator)(nil)).Elem()
	asyncGeneratorType = reflect.TypeOf((*AsyncGenerator)(nil)).Elem()
)

func (w *Func) wrapGenerator(rt *utype.Runtime, ctx context.Context, out any) (any, error) {
	yield, send, ret, _ := w.result.IteratorSlots()
	switch w.genKind {
	case rule.Iterator, rule.Generator:
		g, ok := out.(Generator)
		if !ok {
			return nil, utype.Issues{{
				Path:    "<return>",
				Code:    utype.CodeInvalidType,
				Message: fmt.Sprintf("%s did not return a Generator", w.name),
			}}
		}
		return &coercingGenerator{
			rt: rt, inner: g,
			yield: yield, send: send, ret: ret,
		}, nil
	default:
		g, ok := out.(AsyncGenerator)
		if !ok {
			return nil, utype.Issues{{
				Path:    "<return>",
				Code:    utype.CodeInvalidType,
				Message: fmt.Sprintf("%s did not return an AsyncGenerator", w.name),
			}}
		}
		return &coercingAsyncGenerator{
			rt: rt, inner: g,
			yield: yield, send: send,
		}, nil
	}
}

// coercingGenerator validates each produced and sent value against the
// declared slots. A generator yielded by the wrapped generator is a tail
// call: the wrapper keeps pumping it transparently.
type coercingGenerator struct {
	rt    *utype.Runtime
	inner Generator
	stack []Generator
	yield *rule.Rule
	send  *rule.Rule
	ret   *rule.Rule
	idx   int
}

func (g *coercingGenerator) top() Generator {
	if n := len(g.stack); n > 0 {
		return g.stack[n-1]
	}
	return g.inner
}

func (g *coercingGenerator) Next() (any, bool, error) {
	for {
		cur := g.top()
		v, ok, err := cur.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			if len(g.stack) > 0 {
				g.stack = g.stack[:len(g.stack)-1]
				continue
			}
			return nil, false, nil
		}
		if tail, isTail := v.(Generator); isTail {
			g.stack = append(g.stack, tail)
			continue
		}
		i := g.idx
		g.idx++
		coerced, err := g.rt.Transformer().Transform(g.rt, v, g.yield)
		if err != nil {
			return nil, false, resultIssues(fmt.Sprintf("<generator.yield[%d]>", i), v, g.yield.String(), err)
		}
		return coerced, true, nil
	}
}

func (g *coercingGenerator) Send(v any) error {
	coerced, err := g.rt.Transformer().Transform(g.rt, v, g.send)
	if err != nil {
		return resultIssues("<generator.send>", v, g.send.String(), err)
	}
	return g.top().Send(coerced)
}

func (g *coercingGenerator) Return() (any, error) {
	v, err := g.inner.Return()
	if err != nil {
		return nil, err
	}
	coerced, err := g.rt.Transformer().Transform(g.rt, v, g.ret)
	if err != nil {
		return nil, resultIssues("<generator.return>", v, g.ret.String(), err)
	}
	return coerced, nil
}

type coercingAsyncGenerator struct {
	rt    *utype.Runtime
	inner AsyncGenerator
	stack []AsyncGenerator
	yield *rule.Rule
	send  *rule.Rule
	idx   int
}

func (g *coercingAsyncGenerator) top() AsyncGenerator {
	if n := len(g.stack); n > 0 {
		return g.stack[n-1]
	}
	return g.inner
}

func (g *coercingAsyncGenerator) Next(ctx context.Context) (any, bool, error) {
	for {
		cur := g.top()
		v, ok, err := cur.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			if len(g.stack) > 0 {
				g.stack = g.stack[:len(g.stack)-1]
				continue
			}
			return nil, false, nil
		}
		if tail, isTail := v.(AsyncGenerator); isTail {
			g.stack = append(g.stack, tail)
			continue
		}
		i := g.idx
		g.idx++
		coerced, err := g.rt.Transformer().Transform(g.rt, v, g.yield)
		if err != nil {
			return nil, false, resultIssues(fmt.Sprintf("<generator.yield[%d]>", i), v, g.yield.String(), err)
		}
		return coerced, true, nil
	}
}

func (g *coercingAsyncGenerator) Send(ctx context.Context, v any) error {
	coerced, err := g.rt.Transformer().Transform(g.rt, v, g.send)
	if err != nil {
		return resultIssues("<generator.send>", v, g.send.String(), err)
	}
	return g.top().Send(ctx, coerced)
}

// SliceGenerator is a Generator over a fixed item list. Sent values are
// recorded on Sent; Return reports Ret.
type SliceGenerator struct {
	Items []any
	Ret   any
	Sent  []any
	i     int
}

func (g *SliceGenerator) Next() (any, bool, error) {
	if g.i < len(g.Items) {
		v := g.Items[g.i]
		g.i++
		return v, true, nil
	}
	return nil, false, nil
}

func (g *SliceGenerator) Send(v any) error {
	g.Sent = append(g.Sent, v)
	return nil
}

func (g *SliceGenerator) Return() (any, error) { return g.Ret, nil }

// ChanGenerator adapts a context-aware channel into an AsyncGenerator.
type ChanGenerator struct {
	C    <-chan any
	Sent []any
}

func (g *ChanGenerator) Next(ctx context.Context) (any, bool, error) {
	select {
	case v, ok := <-g.C:
		if !ok {
			return nil, false, nil
		}
		return v, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (g *ChanGenerator) Send(ctx context.Context, v any) error {
	g.Sent = append(g.Sent, v)
	return nil
}
