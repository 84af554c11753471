package nebulite

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

type assignTarget uint8

const (
	targetSelf assignTarget = iota
	targetOther
	targetGlobal
)

func parseAssignTarget(s string) (assignTarget, error) {
	switch s {
	case "self":
		return targetSelf, nil
	case "other":
		return targetOther, nil
	case "global":
		return targetGlobal, nil
	default:
		return 0, fmt.Errorf("invoke: unknown assignment target %q", s)
	}
}

type assignOp uint8

const (
	opSet assignOp = iota
	opAdd
	opMultiply
	opConcat
)

var opTokens = map[string]assignOp{
	"=":  opSet,
	"+=": opAdd,
	"*=": opMultiply,
	"|=": opConcat,
}

// Assignment is one compiled "<target>.<key> <op> <value>" expr from an
// Invoke Entry (spec.md §6).
type Assignment struct {
	target assignTarget
	key    string
	op     assignOp
	raw    string

	value *ExpressionPool
}

// parseAssignment tokenizes a raw exprs string: the first whitespace run
// separates "<target>.<key>", the second separates the operator, and
// everything after is the value template verbatim (it may itself contain
// spaces).
func parseAssignment(raw string) (target assignTarget, key string, op assignOp, valueTemplate string, err error) {
	trimmed := strings.TrimSpace(raw)
	firstSpace := strings.IndexAny(trimmed, " \t")
	if firstSpace < 0 {
		return 0, "", 0, "", fmt.Errorf("invoke: malformed expr %q", raw)
	}
	targetKey := trimmed[:firstSpace]
	rest := strings.TrimLeft(trimmed[firstSpace:], " \t")

	secondSpace := strings.IndexAny(rest, " \t")
	if secondSpace < 0 {
		return 0, "", 0, "", fmt.Errorf("invoke: malformed expr %q", raw)
	}
	opToken := rest[:secondSpace]
	value := strings.TrimLeft(rest[secondSpace:], " \t")

	dot := strings.IndexByte(targetKey, '.')
	if dot < 0 {
		return 0, "", 0, "", fmt.Errorf("invoke: malformed target.key %q", targetKey)
	}
	target, err = parseAssignTarget(targetKey[:dot])
	if err != nil {
		return 0, "", 0, "", err
	}
	key = targetKey[dot+1:]

	op, ok := opTokens[opToken]
	if !ok {
		return 0, "", 0, "", fmt.Errorf("invoke: unknown operator %q", opToken)
	}
	return target, key, op, value, nil
}

// InvokeEntry is the compiled form of the JSON wire format in spec.md §6.
type InvokeEntry struct {
	ID uint32

	Topic               string   `json:"topic"`
	LogicalArg          string   `json:"logicalArg"`
	Exprs               []string `json:"exprs"`
	FunctioncallsSelf   []string `json:"functioncalls_self"`
	FunctioncallsOther  []string `json:"functioncalls_other"`
	FunctioncallsGlobal []string `json:"functioncalls_global"`

	guard       *ExpressionPool
	assignments []*Assignment

	owner *RenderObject

	compiled      bool
	compileFailed bool
}

// ensureCompiled lazily compiles e against (self, global, cache) the first
// time it is used, so that entries built via AddLocalEntry (never routed
// through reparseRules) and entries parsed from a RenderObject's "invokes"
// array share one compilation path. A compile failure is logged once and
// does not abort the frame (spec.md §7): the entry is simply skipped by
// its caller from then on.
func ensureCompiled(e *InvokeEntry, self, global *Document, cache *DocumentCache) {
	if e.compiled || e.compileFailed {
		return
	}
	if err := e.Compile(self, global, cache); err != nil {
		log.Warnw("invoke entry compile failed, skipping", "topic", e.Topic, "error", err)
		e.compileFailed = true
		return
	}
	e.compiled = true
}

var entryIDCounter uint32

func nextEntryID() uint32 {
	return atomic.AddUint32(&entryIDCounter, 1)
}

// ParseInvokeEntry decodes one Invoke Entry from its JSON wire form. Call
// Compile afterward to bind the guard and assignment expressions.
func ParseInvokeEntry(raw []byte) (*InvokeEntry, error) {
	var e InvokeEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("invoke: decode entry: %w", err)
	}
	e.ID = nextEntryID()
	return &e, nil
}

// IsLocal reports whether this entry runs entirely within its owning
// RenderObject (topic == "", spec.md §4.5).
func (e *InvokeEntry) IsLocal() bool { return e.Topic == "" }

// Compile parses the guard and every assignment's value template into
// ExpressionPools bound to self/global/cache. other-context variables are
// left unbound until evaluation, per spec.md §4.3.
func (e *InvokeEntry) Compile(self, global *Document, cache *DocumentCache) error {
	e.guard = NewExpressionPool(self, global, cache)
	logicalArg := e.LogicalArg
	if logicalArg == "" {
		logicalArg = "1"
	}
	if err := e.guard.Parse(fmt.Sprintf("$(%s)", logicalArg)); err != nil {
		return fmt.Errorf("invoke: compile guard %q: %w", e.LogicalArg, err)
	}

	e.assignments = e.assignments[:0]
	for _, raw := range e.Exprs {
		target, key, op, valueTemplate, err := parseAssignment(raw)
		if err != nil {
			return err
		}
		pool := NewExpressionPool(self, global, cache)
		if err := pool.Parse(valueTemplate); err != nil {
			return fmt.Errorf("invoke: compile value %q: %w", raw, err)
		}
		e.assignments = append(e.assignments, &Assignment{
			target: target,
			key:    key,
			op:     op,
			raw:    raw,
			value:  pool,
		})
	}
	return nil
}

// EvalGuard evaluates the guard expression against other, returning the
// raw numeric result (spec.md §4.5 step 1: magnitude >= eps is truthy).
func (e *InvokeEntry) EvalGuard(other *Document) float64 {
	return e.guard.EvalAsDouble(other)
}

const guardEps = 1e-9

// guardTruthy implements spec.md §4.5 step 1: NaN is false (and logged by
// the caller), otherwise truthy iff |result| >= eps.
func guardTruthy(v float64) bool {
	if v != v { // NaN
		return false
	}
	if v < 0 {
		v = -v
	}
	return v >= guardEps
}

// Apply runs every assignment in array order against the (self, other,
// global) triple, per spec.md §4.5 step 2 and P5.
func (e *InvokeEntry) Apply(self, other, global *Document) {
	for _, a := range e.assignments {
		a.apply(self, other, global)
	}
}

func (a *Assignment) targetDoc(self, other, global *Document) *Document {
	switch a.target {
	case targetSelf:
		return self
	case targetOther:
		return other
	case targetGlobal:
		return global
	}
	return nil
}

func (a *Assignment) apply(self, other, global *Document) {
	doc := a.targetDoc(self, other, global)
	if doc == nil {
		return
	}
	switch a.op {
	case opSet:
		if a.value.ReturnableAsDouble() {
			doc.SetDouble(a.key, a.value.EvalAsDouble(other))
		} else {
			doc.SetString(a.key, a.value.Eval(other))
		}
	case opAdd:
		doc.SetAdd(a.key, a.numericValue(other))
	case opMultiply:
		doc.SetMultiply(a.key, a.numericValue(other))
	case opConcat:
		doc.SetConcat(a.key, a.value.Eval(other))
	}
}

// numericValue evaluates the value expression as a double for an
// arithmetic assignment op (+=, *=), per spec.md §4.5 step 2: the fast
// EvalAsDouble path when the expression is returnable_as_double, otherwise
// falling back to string evaluation and a non-fatal stod-style parse
// (spec.md §4.1's conversion-failure rule — default to 0, not NaN).
func (a *Assignment) numericValue(other *Document) float64 {
	if a.value.ReturnableAsDouble() {
		return a.value.EvalAsDouble(other)
	}
	d, err := strconv.ParseFloat(a.value.Eval(other), 64)
	if err != nil {
		return 0
	}
	return d
}
