package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zerbitx/mockserver/directive"
	"github.com/zerbitx/mockserver/mock"
)

type (
	// Processor expands directives in a piece of mock file text
	Processor interface {
		Process(text string, scope directive.Scope) string
	}

	// Parser turns mock file text into a mock.Definition
	Parser struct {
		processor Processor
	}

	// ParseError reports a mock file that cannot be turned into a response
	ParseError struct {
		File   string
		Line   int
		Reason string
	}

	passthrough struct{}
)

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
}

func (passthrough) Process(text string, _ directive.Scope) string {
	return text
}

// New returns a Parser expanding directives with processor. A nil processor leaves directives untouched.
func New(processor Processor) *Parser {
	if processor == nil {
		processor = passthrough{}
	}

	return &Parser{processor: processor}
}

// Parse reads the status line, the headers up to the first blank line and the body. scope.File is
// the mock file's path inside the store, used by directives and error messages.
func (p *Parser) Parse(content string, scope directive.Scope) (*mock.Definition, error) {
	lines := strings.Split(normalizeLineEndings(content), "\n")

	status, err := parseStatus(p.processor.Process(lines[0], scope))
	if err != nil {
		return nil, &ParseError{File: scope.File, Line: 1, Reason: err.Error()}
	}

	def := &mock.Definition{Status: status}

	header := scope
	header.Header = true

	i := 1
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			i++
			break
		}

		name, value, ok := strings.Cut(line, ":")
		// Lines that are not "Name: value" carry nothing we could send
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}

		def.Headers.Add(name, p.processor.Process(strings.TrimLeft(value, " \t"), header))
	}

	if i < len(lines) {
		def.Body = p.processor.Process(strings.Join(lines[i:], "\n"), scope)
	}

	return def, nil
}

// parseStatus pulls the status code following the protocol token, "HTTP/1.1 200 OK" gives 200
func parseStatus(line string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, fmt.Errorf("no status code in %q", line)
	}

	code := fields[1]
	status, err := strconv.Atoi(code)
	if err != nil || len(code) != 3 || status < 100 || status > 599 {
		return 0, fmt.Errorf("invalid status code %q", code)
	}

	return status, nil
}

func normalizeLineEndings(s string) string {
	return strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(s)
}
