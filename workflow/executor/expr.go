package executor

import (
	"fmt"
	"strconv"
	"strings"
)

// SecretsClient is the collaborator @secret('name') consults. It is
// satisfied by secrets.MemoryStore's GetSecretValue; the interface lives here so
// executor does not import secrets directly (keeping the dependency
// direction the same as queue's Dispatcher interface).
type SecretsClient interface {
	GetSecretValue(name string) (string, bool, error)
}

// Evaluator resolves the Azure-Logic-Apps-style @function(...) expression
// grammar from spec.md §4.6 against one workflow instance's bound values.
// No ecosystem parser in the pack matches this grammar (gojq's syntax is
// unrelated), so this is a small hand-written recursive-descent parser —
// justified by grammar mismatch, not by avoiding a dependency.
type Evaluator struct {
	Parameters map[string]any
	Actions    map[string]any // name -> recorded output (itself a map for field access)
	Variables  map[string]any
	Secrets    SecretsClient
}

// EvaluateValue walks v recursively: strings are evaluated as expressions
// (or interpolated, if the @expression is embedded inside a larger
// string), maps and slices are walked element-wise, and every other JSON
// scalar passes through unchanged, per spec.md §4.6 "Non-string inputs
// pass through."
func (e *Evaluator) EvaluateValue(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return e.EvaluateString(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			ev, err := e.EvaluateValue(val)
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			ev, err := e.EvaluateValue(val)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	default:
		return v, nil
	}
}

// EvaluateString evaluates s as a template string. If s starts with '@' and
// is exactly one expression (trailing whitespace allowed), its evaluated (possibly non-string)
// value is returned directly. Otherwise every '@'-prefixed expression
// embedded in s is evaluated and stringified in place, Logic-Apps style.
func (e *Evaluator) EvaluateString(s string) (any, error) {
	if strings.HasPrefix(s, "@@") {
		// literal escape: a value that starts with a literal '@'.
		return s[1:], nil
	}
	if strings.HasPrefix(s, "@") {
		p := &exprParser{src: s, pos: 1}
		val, err := p.parseExpr(e)
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos == len(p.src) {
			return val, nil
		}
		// trailing text after the expression: fall through to
		// interpolation below so "@variables('x') suffix" still works.
	}
	if !strings.Contains(s, "@") {
		return s, nil
	}
	return e.interpolate(s)
}

func (e *Evaluator) interpolate(s string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '@' && i+1 < len(s) && s[i+1] == '@' {
			b.WriteByte('@')
			i += 2
			continue
		}
		if s[i] == '@' && i+1 < len(s) && (isIdentStart(s[i+1])) {
			p := &exprParser{src: s, pos: i + 1}
			val, err := p.parseExpr(e)
			if err != nil {
				return "", err
			}
			b.WriteString(stringify(val))
			i = p.pos
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String(), nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// exprParser is a minimal recursive-descent parser over the expression
// grammar embedded after an '@'. It supports function calls with
// comma-separated arguments (string/number/bool literals or nested calls),
// a leading '@' on nested calls is optional, and a trailing '.field.field'
// chain for indexing into the call's result.
type exprParser struct {
	src string
	pos int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) parseExpr(e *Evaluator) (any, error) {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '@' {
		p.pos++
	}
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '(' {
		return nil, fmt.Errorf("workflow: expected '(' after %q at position %d", name, p.pos)
	}
	p.pos++ // consume '('
	args, err := p.parseArgs(e)
	if err != nil {
		return nil, err
	}
	if p.pos >= len(p.src) || p.src[p.pos] != ')' {
		return nil, fmt.Errorf("workflow: unclosed call to %q", name)
	}
	p.pos++ // consume ')'

	val, err := callFunction(e, name, args)
	if err != nil {
		return nil, err
	}

	for {
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != '.' {
			break
		}
		p.pos++
		field, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		val, err = indexField(val, field)
		if err != nil {
			return nil, err
		}
	}
	return val, nil
}

func (p *exprParser) parseIdent() (string, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentChar(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", fmt.Errorf("workflow: expected identifier at position %d", start)
	}
	return p.src[start:p.pos], nil
}

func (p *exprParser) parseArgs(e *Evaluator) ([]any, error) {
	var args []any
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ')' {
		return args, nil
	}
	for {
		p.skipSpace()
		arg, err := p.parseArg(e)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
			continue
		}
		break
	}
	return args, nil
}

func (p *exprParser) parseArg(e *Evaluator) (any, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("workflow: unexpected end of expression")
	}
	switch c := p.src[p.pos]; {
	case c == '\'' || c == '"':
		return p.parseStringLiteral(c)
	case c == '@' || isIdentStart(c):
		return p.parseExpr(e)
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return nil, fmt.Errorf("workflow: unexpected character %q at position %d", c, p.pos)
	}
}

func (p *exprParser) parseStringLiteral(quote byte) (string, error) {
	p.pos++ // consume opening quote
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != quote {
		p.pos++
	}
	if p.pos >= len(p.src) {
		return "", fmt.Errorf("workflow: unterminated string literal")
	}
	s := p.src[start:p.pos]
	p.pos++ // consume closing quote
	return s, nil
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	if p.src[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.src) && (p.src[p.pos] == '.' || (p.src[p.pos] >= '0' && p.src[p.pos] <= '9')) {
		p.pos++
	}
	return strconv.ParseFloat(p.src[start:p.pos], 64)
}

// indexField looks up field on v, supporting map[string]any; indexing nil
// yields nil and any other type is an error.
func indexField(v any, field string) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		return t[field], nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("workflow: cannot index field %q on %T", field, v)
	}
}

// callFunction dispatches one of the grammar's built-in functions, per
// spec.md §4.6.
func callFunction(e *Evaluator, name string, args []any) (any, error) {
	switch name {
	case "parameters":
		key, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		return e.Parameters[key], nil
	case "variables":
		key, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		return e.Variables[key], nil
	case "actions":
		key, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		return e.Actions[key], nil
	case "secret":
		key, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		if e.Secrets == nil {
			return nil, fmt.Errorf("No secrets client configured")
		}
		val, ok, err := e.Secrets.GetSecretValue(key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("Secret not found: %s", key)
		}
		return val, nil
	case "equals":
		if len(args) != 2 {
			return nil, fmt.Errorf("workflow: equals expects 2 arguments")
		}
		return looseEqual(args[0], args[1]), nil
	case "less":
		a, b, err := argNumbers(args)
		if err != nil {
			return nil, err
		}
		return a < b, nil
	case "greaterOrEquals":
		a, b, err := argNumbers(args)
		if err != nil {
			return nil, err
		}
		return a >= b, nil
	case "not":
		if len(args) != 1 {
			return nil, fmt.Errorf("workflow: not expects 1 argument")
		}
		b, ok := args[0].(bool)
		if !ok {
			return nil, fmt.Errorf("workflow: not expects a boolean argument")
		}
		return !b, nil
	default:
		return nil, fmt.Errorf("workflow: unknown expression function %q", name)
	}
}

func argString(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("workflow: missing argument %d", i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("workflow: argument %d is not a string", i)
	}
	return s, nil
}

func argNumbers(args []any) (float64, float64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("workflow: expected 2 numeric arguments")
	}
	a, err := toFloat(args[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := toFloat(args[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, fmt.Errorf("workflow: cannot convert %T to number", v)
	}
}

func looseEqual(a, b any) bool {
	af, aerr := toFloat(a)
	bf, berr := toFloat(b)
	if aerr == nil && berr == nil {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
