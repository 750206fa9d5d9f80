// Package funcs wraps callables with validated signatures: declared
// parameters are parsed like schema fields, positional and keyword calling
// conventions are reconciled, results are coerced against the declared
// return rule, and generator output is validated item by item.
package funcs

import (
	"github.com/HansdasC/utype"
	"github.com/HansdasC/utype/rule"
)

// Param declares one parameter of a wrapped callable.
type Param struct {
	name           string
	r              *rule.Rule
	field          *utype.Field
	positionalOnly bool
	keywordOnly    bool
	hasDefault     bool
	def            any
}

// P declares a parameter by name and rule.
func P(name string, r *rule.Rule) *Param {
	return &Param{name: name, r: r}
}

// PositionalOnly restricts the parameter to positional supply.
func (p *Param) PositionalOnly() *Param { p.positionalOnly = true; return p }

// KeywordOnly restricts the parameter to keyword supply.
func (p *Param) KeywordOnly() *Param { p.keywordOnly = true; return p }

// Default makes the parameter optional with the given value.
func (p *Param) Default(v any) *Param {
	p.hasDefault = true
	p.def = v
	return p
}

// Spec attaches a full Field spec for options P cannot express.
func (p *Param) Spec(f *utype.Field) *Param { p.field = f; return p }

// Option configures Wrap.
type Option func(*config)

type config struct {
	name     string
	params   []*Param
	opts     utype.Options
	varArgs  *rule.Rule
	hasVar   bool
	varKw    *rule.Rule
	hasVarKw bool
	result   *rule.Rule
	receiver any // reflect.Type, set via Receiver
	noParse  bool
}

// Name overrides the callable's display name in errors.
func Name(n string) Option { return func(c *config) { c.name = n } }

// Params declares the callable's parameters in order.
func Params(ps ...*Param) Option {
	return func(c *config) { c.params = append(c.params, ps...) }
}

// Args enables variadic positional overflow, validating each extra value
// against elem. Pass nil to accept extras unvalidated.
func Args(elem *rule.Rule) Option {
	return func(c *config) { c.varArgs = elem; c.hasVar = true }
}

// Kwargs enables extra keyword arguments, validating each against elem and
// delivering them through the callable's trailing map parameter. Pass nil to
// accept extras unvalidated.
func Kwargs(elem *rule.Rule) Option {
	return func(c *config) { c.varKw = elem; c.hasVarKw = true }
}

// Returns declares the result rule. Use rule.GeneratorOf and friends for
// generator-shaped callables.
func Returns(r *rule.Rule) Option {
	return func(c *config) { c.result = r }
}

// WithOptions sets the parser options for parameter validation.
func WithOptions(o utype.Options) Option {
	return func(c *config) { c.opts = o }
}

// NoParse disables parameter validation; arguments pass straight through and
// only the result side is enforced.
func NoParse() Option { return func(c *config) { c.noParse = true } }
