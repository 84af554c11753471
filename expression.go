package nebulite

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type castKind uint8

const (
	castNone castKind = iota
	castInt
	castDouble
)

// exprFormat is a parsed `[0][width][.precision][if]` numeric format tag
// (spec.md §4.3).
type exprFormat struct {
	zeroPad      bool
	width        int
	hasWidth     bool
	precision    int
	hasPrecision bool
	cast         castKind
}

func parseFormat(s string) (exprFormat, error) {
	var f exprFormat
	i := 0
	if i < len(s) && s[i] == '0' {
		f.zeroPad = true
		i++
	}
	start := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i > start {
		w, err := strconv.Atoi(s[start:i])
		if err != nil {
			return f, fmt.Errorf("expression: bad width in format %q: %w", s, err)
		}
		f.width = w
		f.hasWidth = true
	}
	if i < len(s) && s[i] == '.' {
		i++
		start = i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		p, err := strconv.Atoi(s[start:i])
		if err != nil {
			return f, fmt.Errorf("expression: bad precision in format %q: %w", s, err)
		}
		f.precision = p
		f.hasPrecision = true
	}
	if i < len(s) {
		switch s[i] {
		case 'i':
			f.cast = castInt
		case 'f':
			f.cast = castDouble
		default:
			return f, fmt.Errorf("expression: unexpected trailing format char %q in %q", s[i], s)
		}
		i++
	}
	if i != len(s) {
		return f, fmt.Errorf("expression: malformed format %q", s)
	}
	return f, nil
}

// scanEvalOpen scans the optional `[0][width][.precision][if]` format token
// starting at pos (the character right after '$'), per spec.md §4.3's
// `$[<fmt>](<expr>)` grammar — the format sits directly between '$' and
// '(', with no enclosing delimiter of its own (e.g. "$03.2f(...)", "$f(...)",
// or the bare "$(...)" form with no format at all). It reports the index of
// the '(' that must terminate the token and whether such a '(' was found;
// if not, the '$' at the caller's position is ordinary literal text.
func scanEvalOpen(source string, pos int) (parenIdx int, matched bool) {
	n := len(source)
	j := pos
	if j < n && source[j] == '0' {
		j++
	}
	for j < n && isDigit(source[j]) {
		j++
	}
	if j < n && source[j] == '.' {
		j++
		for j < n && isDigit(source[j]) {
			j++
		}
	}
	if j < n && (source[j] == 'i' || source[j] == 'f') {
		j++
	}
	if j < n && source[j] == '(' {
		return j, true
	}
	return 0, false
}

// render formats value according to f.
func (f exprFormat) render(value float64) string {
	var s string
	if f.cast == castInt {
		s = strconv.FormatInt(int64(value), 10)
	} else if f.hasPrecision {
		s = strconv.FormatFloat(value, 'f', f.precision, 64)
	} else {
		s = strconv.FormatFloat(value, 'g', -1, 64)
	}
	if f.hasWidth && len(s) < f.width {
		pad := f.width - len(s)
		padChar := byte(' ')
		if f.zeroPad {
			padChar = '0'
		}
		neg := strings.HasPrefix(s, "-")
		if neg && f.zeroPad {
			s = "-" + strings.Repeat(string(padChar), pad) + s[1:]
		} else {
			s = strings.Repeat(string(padChar), pad) + s
		}
	}
	return s
}

type exprEntryKind uint8

const (
	entryText exprEntryKind = iota
	entryVar
	entryEval
)

type exprEntry struct {
	kind exprEntryKind

	text string // entryText

	varCtx varContext // entryVar
	varKey string

	mathSrc string // entryEval
	tree    *mathNode
	format  exprFormat
	hasFmt  bool
}

// Expression is a parsed sequence of literal/variable/eval entries compiled
// from a mixed text-and-math template (spec.md C3). Parse binds self/global
// variable references directly to the owning document's stable-double
// slots; other-context references are refreshed per evaluation.
type Expression struct {
	source             string
	entries            []exprEntry
	otherVars          []*VirtualDouble
	returnableAsDouble bool

	self   *Document
	global *Document
	cache  *DocumentCache
}

// NewExpression allocates an unparsed Expression bound to the given
// remanent documents and resource cache.
func NewExpression(self, global *Document, cache *DocumentCache) *Expression {
	return &Expression{self: self, global: global, cache: cache}
}

// Parse compiles source, replacing any previously compiled state atomically
// from the caller's perspective (spec.md §4.3 "reset/parse idempotence").
func (e *Expression) Parse(source string) error {
	entries, otherVars, err := parseTemplate(source, e.self, e.global, e.cache)
	if err != nil {
		return err
	}
	e.source = source
	e.entries = entries
	e.otherVars = otherVars
	e.returnableAsDouble = len(entries) == 1 && entries[0].kind == entryEval && !entries[0].hasFmt
	return nil
}

// ReturnableAsDouble reports whether EvalAsDouble may be used instead of
// Eval (spec.md §4.3).
func (e *Expression) ReturnableAsDouble() bool { return e.returnableAsDouble }

// Eval renders the full template against the given "other" document.
func (e *Expression) Eval(other *Document) string {
	for _, v := range e.otherVars {
		v.refresh(other)
	}
	var b strings.Builder
	for _, ent := range e.entries {
		b.WriteString(e.renderEntry(ent, other))
	}
	return b.String()
}

// EvalAsDouble evaluates the single compiled eval entry directly, skipping
// string concatenation. Only valid when ReturnableAsDouble is true.
func (e *Expression) EvalAsDouble(other *Document) float64 {
	if !e.returnableAsDouble {
		return math.NaN()
	}
	for _, v := range e.otherVars {
		v.refresh(other)
	}
	return e.entries[0].tree.eval()
}

func (e *Expression) renderEntry(ent exprEntry, other *Document) string {
	switch ent.kind {
	case entryText:
		return ent.text
	case entryVar:
		return e.lookupVarString(ent.varCtx, ent.varKey, other)
	case entryEval:
		v := ent.tree.eval()
		return ent.format.render(v)
	}
	return ""
}

func (e *Expression) lookupVarString(ctx varContext, key string, other *Document) string {
	switch ctx {
	case ctxSelf:
		if e.self == nil {
			return ""
		}
		return e.self.GetString(key, "")
	case ctxOther:
		if other == nil {
			return ""
		}
		return other.GetString(key, "")
	case ctxGlobal:
		if e.global == nil {
			return ""
		}
		return e.global.GetString(key, "")
	case ctxResource:
		if e.cache == nil {
			return ""
		}
		return e.cache.GetString(key, "")
	}
	return ""
}

// splitVarRef resolves a bare reference (used both by `{<path>}` variable
// entries and by identifiers inside `$(...)` math expressions) into its
// context and key, per the leading-token grammar in spec.md §4.3.
func splitVarRef(ref string) (varContext, string) {
	switch {
	case strings.HasPrefix(ref, "self."):
		return ctxSelf, ref[len("self."):]
	case strings.HasPrefix(ref, "other."):
		return ctxOther, ref[len("other."):]
	case strings.HasPrefix(ref, "global."):
		return ctxGlobal, ref[len("global."):]
	default:
		return ctxResource, ref
	}
}

// parseTemplate scans source left-to-right, producing the entry sequence
// and the set of "other"-context VirtualDoubles bound by eval entries that
// need per-evaluation refresh.
func parseTemplate(source string, self, global *Document, cache *DocumentCache) ([]exprEntry, []*VirtualDouble, error) {
	var entries []exprEntry
	var text strings.Builder
	bound := map[string]*VirtualDouble{}
	var otherVars []*VirtualDouble

	flushText := func() {
		if text.Len() > 0 {
			entries = append(entries, exprEntry{kind: entryText, text: text.String()})
			text.Reset()
		}
	}

	lookup := func(name string) *float64 {
		ctx, key := splitVarRef(name)
		if existing, ok := bound[ctx.cacheKeyFor(key)]; ok {
			return existing.ptr()
		}
		var vd *VirtualDouble
		switch ctx {
		case ctxSelf:
			vd = newRemanentVirtualDouble(ctxSelf, key, self)
		case ctxGlobal:
			vd = newRemanentVirtualDouble(ctxGlobal, key, global)
		case ctxOther:
			vd = newOtherVirtualDouble(key)
			otherVars = append(otherVars, vd)
		case ctxResource:
			vd = &VirtualDouble{key: key, context: ctxResource}
			if cache != nil {
				vd.external = cache.StableDouble(key)
			} else {
				vd.external = new(float64)
			}
		}
		bound[ctx.cacheKeyFor(key)] = vd
		return vd.ptr()
	}

	i := 0
	for i < len(source) {
		c := source[i]

		if c == '$' {
			parenIdx, matched := scanEvalOpen(source, i+1)
			if !matched {
				text.WriteByte(c)
				i++
				continue
			}
			flushText()
			fmtSpec := source[i+1 : parenIdx]
			hasFmt := fmtSpec != ""
			i = parenIdx

			depth := 0
			start := i
			for i < len(source) {
				if source[i] == '(' {
					depth++
				} else if source[i] == ')' {
					depth--
					if depth == 0 {
						i++
						break
					}
				}
				i++
			}
			if depth != 0 {
				return nil, nil, fmt.Errorf("expression: unbalanced parens in %q", source)
			}
			inner := source[start+1 : i-1]
			inner = strings.ReplaceAll(inner, "$", "")

			tree, err := parseMathExpr(inner, lookup)
			if err != nil {
				return nil, nil, err
			}
			ent := exprEntry{kind: entryEval, mathSrc: inner, tree: tree}
			if hasFmt {
				f, err := parseFormat(fmtSpec)
				if err != nil {
					return nil, nil, err
				}
				ent.format = f
				ent.hasFmt = true
			}
			entries = append(entries, ent)
			continue
		}

		if c == '{' {
			close := strings.IndexByte(source[i:], '}')
			if close < 0 {
				return nil, nil, fmt.Errorf("expression: unterminated variable entry in %q", source)
			}
			flushText()
			ref := source[i+1 : i+close]
			ctx, key := splitVarRef(ref)
			entries = append(entries, exprEntry{kind: entryVar, varCtx: ctx, varKey: key})
			i += close + 1
			continue
		}

		text.WriteByte(c)
		i++
	}
	flushText()
	return entries, otherVars, nil
}

// cacheKeyFor disambiguates identical keys used under different contexts.
func (c varContext) cacheKeyFor(key string) string {
	switch c {
	case ctxSelf:
		return "self." + key
	case ctxOther:
		return "other." + key
	case ctxGlobal:
		return "global." + key
	default:
		return "resource:" + key
	}
}
