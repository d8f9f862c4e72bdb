package expr

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Program is a compiled predicate expression.
//
// Supported syntax:
//   - truthiness checks: `fl_viagem`, `!fl_viagem`
//   - equality: `tp_plano == "E"`, `fl_deslocamento != 'R'`, `qt_usuarios == 3`
//   - numeric ordering: `vl_contrato >= 1000`, `qt_usuarios < 5`
//   - composition: `a == true && (b != "x" || !c)`
//
// Identifiers are looked up in the flat value map passed to Eval. Missing
// identifiers behave as null.
type Program struct {
	source      string
	root        node
	identifiers []string
}

// Compile parses src. An empty expression always evaluates to true.
func Compile(src string) (*Program, error) {
	trimmed := strings.TrimSpace(src)
	program := &Program{source: trimmed}
	if trimmed == "" {
		return program, nil
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	stream := &tokenStream{tokens: tokens}
	root, err := parseOr(stream)
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		return nil, fmt.Errorf("rules/expr: unexpected token %q", stream.tokens[stream.pos].raw)
	}
	program.root = root
	program.identifiers = collectIdentifiers(root)
	return program, nil
}

// MustCompile panics when src does not parse. Useful for static rule tables.
func MustCompile(src string) *Program {
	program, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return program
}

// Source returns the trimmed expression text.
func (p *Program) Source() string {
	if p == nil {
		return ""
	}
	return p.source
}

// Identifiers lists the field names the expression reads, sorted and unique.
func (p *Program) Identifiers() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.identifiers...)
}

// Eval evaluates the expression against values.
func (p *Program) Eval(values map[string]any) (bool, error) {
	if p == nil || p.root == nil {
		return true, nil
	}
	return p.root.eval(values)
}

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenLt
	tokenLte
	tokenGt
	tokenGte
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	raw  string
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '!', '=', '&', '|', '<', '>':
		return true
	default:
		return false
	}
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0
	peek := func(offset int) byte {
		if i+offset >= len(input) {
			return 0
		}
		return input[i+offset]
	}

	for i < len(input) {
		ch := input[i]
		switch ch {
		case ' ', '\t', '\n', '\r':
			i++
		case '(':
			tokens = append(tokens, token{kind: tokenLParen, raw: "("})
			i++
		case ')':
			tokens = append(tokens, token{kind: tokenRParen, raw: ")"})
			i++
		case '!':
			if peek(1) == '=' {
				tokens = append(tokens, token{kind: tokenNeq, raw: "!="})
				i += 2
				continue
			}
			tokens = append(tokens, token{kind: tokenNot, raw: "!"})
			i++
		case '=':
			if peek(1) != '=' {
				return nil, errors.New("rules/expr: unexpected '='; use '=='")
			}
			tokens = append(tokens, token{kind: tokenEq, raw: "=="})
			i += 2
		case '<', '>':
			kind, raw := tokenLt, "<"
			if ch == '>' {
				kind, raw = tokenGt, ">"
			}
			if peek(1) == '=' {
				kind++
				raw += "="
				i++
			}
			tokens = append(tokens, token{kind: kind, raw: raw})
			i++
		case '&':
			if peek(1) != '&' {
				return nil, errors.New("rules/expr: unexpected '&'; use '&&'")
			}
			tokens = append(tokens, token{kind: tokenAnd, raw: "&&"})
			i += 2
		case '|':
			if peek(1) != '|' {
				return nil, errors.New("rules/expr: unexpected '|'; use '||'")
			}
			tokens = append(tokens, token{kind: tokenOr, raw: "||"})
			i += 2
		case '"', '\'':
			quote := ch
			start := i + 1
			end := -1
			for j := start; j < len(input); j++ {
				if input[j] == '\\' {
					j++
					continue
				}
				if input[j] == quote {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, errors.New("rules/expr: unterminated string literal")
			}
			body := input[start:end]
			if quote == '\'' {
				body = strings.ReplaceAll(body, `\'`, `'`)
				body = strings.ReplaceAll(body, `"`, `\"`)
			}
			value, err := strconv.Unquote(`"` + body + `"`)
			if err != nil {
				return nil, fmt.Errorf("rules/expr: invalid string literal: %w", err)
			}
			tokens = append(tokens, token{kind: tokenString, raw: value})
			i = end + 1
		default:
			start := i
			for i < len(input) && !isDelimiter(input[i]) {
				i++
			}
			raw := input[start:i]
			switch strings.ToLower(raw) {
			case "true", "false":
				tokens = append(tokens, token{kind: tokenBool, raw: strings.ToLower(raw)})
			case "null", "nil", "undefined":
				tokens = append(tokens, token{kind: tokenNull, raw: "null"})
			default:
				if looksLikeNumber(raw) {
					tokens = append(tokens, token{kind: tokenNumber, raw: raw})
				} else {
					tokens = append(tokens, token{kind: tokenIdentifier, raw: raw})
				}
			}
		}
	}
	return tokens, nil
}

func looksLikeNumber(raw string) bool {
	if raw == "" {
		return false
	}
	ch := raw[0]
	return (ch >= '0' && ch <= '9') || ch == '-' || ch == '+'
}

type tokenStream struct {
	tokens []token
	pos    int
}

func (s *tokenStream) match(kinds ...tokenKind) (token, bool) {
	if s.pos >= len(s.tokens) {
		return token{}, false
	}
	for _, kind := range kinds {
		if s.tokens[s.pos].kind == kind {
			tok := s.tokens[s.pos]
			s.pos++
			return tok, true
		}
	}
	return token{}, false
}

func parseOr(stream *tokenStream) (node, error) {
	left, err := parseAnd(stream)
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := stream.match(tokenOr); !ok {
			return left, nil
		}
		right, err := parseAnd(stream)
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
}

func parseAnd(stream *tokenStream) (node, error) {
	left, err := parseUnary(stream)
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := stream.match(tokenAnd); !ok {
			return left, nil
		}
		right, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
}

func parseUnary(stream *tokenStream) (node, error) {
	if _, ok := stream.match(tokenNot); ok {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return parsePrimary(stream)
}

func parsePrimary(stream *tokenStream) (node, error) {
	if _, ok := stream.match(tokenLParen); ok {
		inner, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		if _, ok := stream.match(tokenRParen); !ok {
			return nil, errors.New("rules/expr: missing closing ')'")
		}
		return inner, nil
	}

	ident, ok := stream.match(tokenIdentifier)
	if !ok {
		if stream.pos >= len(stream.tokens) {
			return nil, errors.New("rules/expr: empty expression")
		}
		return nil, fmt.Errorf("rules/expr: expected identifier, got %q", stream.tokens[stream.pos].raw)
	}

	op, ok := stream.match(tokenEq, tokenNeq, tokenLt, tokenLte, tokenGt, tokenGte)
	if !ok {
		return truthyNode{identifier: ident.raw}, nil
	}
	lit, err := consumeLiteral(stream)
	if err != nil {
		return nil, err
	}
	if op.kind >= tokenLt && op.kind <= tokenGte && lit.kind != tokenNumber {
		return nil, fmt.Errorf("rules/expr: operator %q requires a number literal", op.raw)
	}
	return compareNode{identifier: ident.raw, op: op.kind, literal: lit}, nil
}

func consumeLiteral(stream *tokenStream) (token, error) {
	if stream.pos >= len(stream.tokens) {
		return token{}, errors.New("rules/expr: missing literal")
	}
	tok := stream.tokens[stream.pos]
	stream.pos++
	switch tok.kind {
	case tokenString, tokenNumber, tokenBool, tokenNull:
		return tok, nil
	case tokenIdentifier:
		// bare words compare as strings: `tp_plano == E`
		return token{kind: tokenString, raw: tok.raw}, nil
	default:
		return token{}, fmt.Errorf("rules/expr: expected literal, got %q", tok.raw)
	}
}

func collectIdentifiers(root node) []string {
	seen := make(map[string]struct{})
	var walk func(n node)
	walk = func(n node) {
		switch typed := n.(type) {
		case orNode:
			walk(typed.left)
			walk(typed.right)
		case andNode:
			walk(typed.left)
			walk(typed.right)
		case notNode:
			walk(typed.inner)
		case compareNode:
			seen[typed.identifier] = struct{}{}
		case truthyNode:
			seen[typed.identifier] = struct{}{}
		}
	}
	walk(root)

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
