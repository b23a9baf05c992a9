package mbl

import (
	"fmt"
	"strconv"
)

// Parse lexes and parses MBL source into a TaskDefinition. The returned
// tree has not been validated; see Validate.
func Parse(src, fileName string) (*TaskDefinition, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	return p.parseTask(fileName)
}

type parser struct {
	tokens []Token
	pos    int
}

// actionKeywords are the keywords that can start an action line.
var actionKeywords = map[string]bool{
	"expect": true, "click": true, "double-click": true, "right-click": true,
	"type": true, "select": true, "key": true, "extract": true,
	"output": true, "screenshot": true, "abort": true, "if": true,
}

func (p *parser) cur() Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

// skipBlank absorbs newline runs and indentation between productions.
func (p *parser) skipBlank() {
	for p.cur().Type == TokenNewline || p.cur().Type == TokenIndent {
		p.advance()
	}
}

func (p *parser) atKeyword(kw string) bool {
	t := p.cur()
	return t.Type == TokenKeyword && t.Value == kw
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.cur().Line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(tt TokenType, what string) (Token, error) {
	t := p.cur()
	if t.Type != tt {
		return Token{}, p.errorf("expected %s, got %s", what, t)
	}
	return p.advance(), nil
}

func (p *parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return p.errorf("expected %q, got %s", kw, p.cur())
	}
	p.advance()
	return nil
}

// endOfLine consumes the newline terminating an action or header line.
func (p *parser) endOfLine() error {
	t := p.cur()
	if t.Type == TokenEOF {
		return nil
	}
	if t.Type != TokenNewline {
		return p.errorf("unexpected %s at end of line", t)
	}
	p.advance()
	return nil
}

func (p *parser) parseTask(fileName string) (*TaskDefinition, error) {
	task := &TaskDefinition{FileName: fileName}

	p.skipBlank()
	if err := p.expectKeyword("task"); err != nil {
		return nil, err
	}
	name, err := p.expect(TokenString, "task name string")
	if err != nil {
		return nil, err
	}
	task.Name = name.Value
	if err := p.endOfLine(); err != nil {
		return nil, err
	}

	p.skipBlank()
	if p.atKeyword("input") {
		if err := p.parseInputs(task); err != nil {
			return nil, err
		}
	}

	p.skipBlank()
	for p.atKeyword("step") {
		step, err := p.parseStep()
		if err != nil {
			return nil, err
		}
		task.Steps = append(task.Steps, *step)
		p.skipBlank()
	}

	for p.atKeyword("on") {
		if err := p.parseHandler(task); err != nil {
			return nil, err
		}
		p.skipBlank()
	}

	if p.cur().Type != TokenEOF {
		return nil, p.errorf("unexpected %s", p.cur())
	}
	return task, nil
}

func (p *parser) parseInputs(task *TaskDefinition) error {
	p.advance() // input
	seen := map[string]bool{}
	for {
		ident, err := p.expect(TokenIdentifier, "input parameter name")
		if err != nil {
			return err
		}
		if seen[ident.Value] {
			return &ParseError{Line: ident.Line, Msg: fmt.Sprintf("duplicate input %q", ident.Value)}
		}
		seen[ident.Value] = true
		task.Inputs = append(task.Inputs, ident.Value)
		if p.cur().Type != TokenComma {
			break
		}
		p.advance()
	}
	return p.endOfLine()
}

func (p *parser) parseStep() (*Step, error) {
	p.advance() // step
	desc, err := p.expect(TokenString, "step description string")
	if err != nil {
		return nil, err
	}
	step := &Step{Description: desc.Value}
	if err := p.endOfLine(); err != nil {
		return nil, err
	}

	p.skipBlank()
	if p.atKeyword("timeout") {
		p.advance()
		n, err := p.expect(TokenInteger, "timeout seconds")
		if err != nil {
			return nil, err
		}
		secs, convErr := strconv.Atoi(n.Value)
		if convErr != nil || secs <= 0 {
			return nil, &ParseError{Line: n.Line, Msg: fmt.Sprintf("step timeout must be a positive integer, got %q", n.Value)}
		}
		step.TimeoutSeconds = secs
		if err := p.endOfLine(); err != nil {
			return nil, err
		}
	}

	actions, err := p.parseActions()
	if err != nil {
		return nil, err
	}
	step.Actions = actions
	return step, nil
}

// parseActions parses a run of action lines, stopping at the first token
// that cannot start an action (step, on, else, end, EOF).
func (p *parser) parseActions() ([]Action, error) {
	var actions []Action
	for {
		p.skipBlank()
		t := p.cur()
		if t.Type != TokenKeyword || !actionKeywords[t.Value] {
			return actions, nil
		}
		action, err := p.parseAction()
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
}

func (p *parser) parseAction() (Action, error) {
	kw := p.advance()
	switch kw.Value {
	case "expect":
		s, err := p.expect(TokenString, `description string after "expect"`)
		if err != nil {
			return nil, err
		}
		return ExpectAction{Description: s.Value}, p.endOfLine()

	case "click", "double-click", "right-click":
		s, err := p.expect(TokenString, fmt.Sprintf("target string after %q", kw.Value))
		if err != nil {
			return nil, err
		}
		if err := p.endOfLine(); err != nil {
			return nil, err
		}
		switch kw.Value {
		case "double-click":
			return DoubleClickAction{Target: s.Value}, nil
		case "right-click":
			return RightClickAction{Target: s.Value}, nil
		default:
			return ClickAction{Target: s.Value}, nil
		}

	case "type":
		value, isParam, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		appendMode := false
		if p.atKeyword("append") {
			p.advance()
			appendMode = true
		}
		if err := p.expectKeyword("into"); err != nil {
			return nil, err
		}
		target, err := p.expect(TokenString, `target string after "into"`)
		if err != nil {
			return nil, err
		}
		return TypeAction{Value: value, IsParam: isParam, Target: target.Value, Append: appendMode}, p.endOfLine()

	case "select":
		value, isParam, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("in"); err != nil {
			return nil, err
		}
		target, err := p.expect(TokenString, `target string after "in"`)
		if err != nil {
			return nil, err
		}
		return SelectAction{Value: value, IsParam: isParam, Target: target.Value}, p.endOfLine()

	case "key":
		combo, err := p.expect(TokenKeyCombo, `key combination after "key"`)
		if err != nil {
			return nil, err
		}
		return KeyAction{Combo: combo.Value}, p.endOfLine()

	case "extract":
		ident, err := p.expect(TokenIdentifier, `variable name after "extract"`)
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("from"); err != nil {
			return nil, err
		}
		source, err := p.expect(TokenString, `source string after "from"`)
		if err != nil {
			return nil, err
		}
		return ExtractAction{Variable: ident.Value, Source: source.Value}, p.endOfLine()

	case "output":
		ident, err := p.expect(TokenIdentifier, `variable name after "output"`)
		if err != nil {
			return nil, err
		}
		return OutputAction{Variable: ident.Value}, p.endOfLine()

	case "screenshot":
		return ScreenshotAction{}, p.endOfLine()

	case "abort":
		msg, err := p.expect(TokenString, `message string after "abort"`)
		if err != nil {
			return nil, err
		}
		return AbortAction{Message: msg.Value}, p.endOfLine()

	case "if":
		return p.parseIf()

	default:
		return nil, &ParseError{Line: kw.Line, Msg: fmt.Sprintf("unexpected keyword %q", kw.Value)}
	}
}

// parseValue parses an action value: a string literal or a parameter
// reference by identifier.
func (p *parser) parseValue() (value string, isParam bool, err error) {
	t := p.cur()
	switch t.Type {
	case TokenString:
		p.advance()
		return t.Value, false, nil
	case TokenIdentifier:
		p.advance()
		return t.Value, true, nil
	default:
		return "", false, p.errorf("expected string literal or parameter name, got %s", t)
	}
}

func (p *parser) parseIf() (Action, error) {
	if err := p.expectKeyword("screen"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("shows"); err != nil {
		return nil, err
	}
	cond, err := p.expect(TokenString, `condition string after "shows"`)
	if err != nil {
		return nil, err
	}
	if err := p.endOfLine(); err != nil {
		return nil, err
	}

	action := IfScreenShowsAction{Condition: cond.Value}
	action.Then, err = p.parseActions()
	if err != nil {
		return nil, err
	}

	p.skipBlank()
	if p.atKeyword("else") {
		p.advance()
		if err := p.endOfLine(); err != nil {
			return nil, err
		}
		action.Else, err = p.parseActions()
		if err != nil {
			return nil, err
		}
		p.skipBlank()
	}

	if err := p.expectKeyword("end"); err != nil {
		return nil, err
	}
	return action, p.endOfLine()
}

func (p *parser) parseHandler(task *TaskDefinition) error {
	p.advance() // on
	kindTok := p.cur()
	var kind string
	switch {
	case p.atKeyword("timeout"):
		kind = "timeout"
	case p.atKeyword("error"):
		kind = "error"
	default:
		return p.errorf(`expected "timeout" or "error" after "on", got %s`, kindTok)
	}
	p.advance()
	if err := p.endOfLine(); err != nil {
		return err
	}

	actions, err := p.parseActions()
	if err != nil {
		return err
	}
	handler := &ErrorHandler{Actions: actions}

	// Declaring the same handler twice is rejected rather than last-wins.
	if kind == "timeout" {
		if task.OnTimeout != nil {
			return &ParseError{Line: kindTok.Line, Msg: `duplicate "on timeout" handler`}
		}
		task.OnTimeout = handler
	} else {
		if task.OnError != nil {
			return &ParseError{Line: kindTok.Line, Msg: `duplicate "on error" handler`}
		}
		task.OnError = handler
	}
	return nil
}
