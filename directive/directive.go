// Package directive expands the inline markers a mock file may carry: file imports, inline
// expressions, #header expressions and {% hook() %} calls.
package directive

import (
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zerbitx/mockserver/encode"
	"github.com/zerbitx/mockserver/mock"
)

// ScriptExtension marks imported files whose content is evaluated instead of copied
const ScriptExtension = ".expr"

var (
	importPattern = regexp.MustCompile(`(?m)^#import\s+(.*);`)
	inlinePattern = regexp.MustCompile(`(?s)\{\{(.+?)\}\}`)
	headerPattern = regexp.MustCompile(`(?m)^#header (.*);`)
	hookPattern   = regexp.MustCompile(`\{%\s*(\w+)\((.*?)\)\s*%\}`)
)

type (
	// Reader reads slash separated files relative to the mock store root
	Reader interface {
		Read(name string) (string, error)
	}

	// Scope is what a directive can see: the mock file it lives in and the request being answered.
	// Header is set while expanding a header value, the only place #header applies.
	Scope struct {
		File    string
		Request *mock.Request
		Header  bool
	}

	// Processor applies every directive, in order, to a piece of mock file text
	Processor struct {
		reader    Reader
		evaluator *Evaluator
		hooks     Hooks
		logger    logrus.FieldLogger
	}

	config struct {
		logger logrus.FieldLogger
		now    func() time.Time
		hooks  Hooks
	}

	// Option is a function that can modify a default config
	Option func(c *config)
)

// New returns a Processor reading imports through reader
func New(reader Reader, options ...Option) *Processor {
	c := &config{
		logger: logrus.StandardLogger(),
		now:    time.Now,
	}

	for _, applyOption := range options {
		applyOption(c)
	}

	hooks := DefaultHooks(c.now)
	for name, hook := range c.hooks {
		hooks[name] = hook
	}

	return &Processor{
		reader:    reader,
		evaluator: NewEvaluator(c.now),
		hooks:     hooks,
		logger:    c.logger,
	}
}

// WithLogger overrides the default logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithClock overrides the clock used by time based expressions and hooks
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithHook registers an extra hook, replacing a built-in one of the same name
func WithHook(name string, hook Hook) Option {
	return func(c *config) {
		if c.hooks == nil {
			c.hooks = Hooks{}
		}
		c.hooks[name] = hook
	}
}

// Process expands imports first, then inline expressions, then #header expressions and finally hooks.
// A directive that fails is left as it was.
func (p *Processor) Process(text string, scope Scope) string {
	text = p.imports(text, scope)
	text = p.inline(text, scope)
	if scope.Header {
		text = p.headers(text, scope)
	}

	return p.callHooks(text, scope)
}

func (p *Processor) imports(text string, scope Scope) string {
	if !strings.Contains(text, "#import") {
		return text
	}

	dir := path.Dir(scope.File)

	return importPattern.ReplaceAllStringFunc(text, func(statement string) string {
		target := strings.Trim(strings.TrimSpace(importPattern.FindStringSubmatch(statement)[1]), `'"`)
		name := path.Join(dir, target)

		content, err := p.reader.Read(name)
		if err != nil {
			p.warn(err, "#import", scope)
			return statement
		}
		content = normalizeLineEndings(content)

		if !strings.HasSuffix(target, ScriptExtension) {
			return content
		}

		result, err := p.evaluator.Eval(strings.TrimSpace(content), scope.Request)
		if err != nil {
			p.warn(err, "#import", scope)
			return statement
		}

		out, err := encode.JSON(result)
		if err != nil {
			p.warn(err, "#import", scope)
			return statement
		}

		return out
	})
}

func (p *Processor) inline(text string, scope Scope) string {
	if !strings.Contains(text, "{{") {
		return text
	}

	return inlinePattern.ReplaceAllStringFunc(text, func(marker string) string {
		expression := strings.TrimSpace(inlinePattern.FindStringSubmatch(marker)[1])

		out, err := p.evaluator.EvalString(expression, scope.Request)
		if err != nil {
			p.warn(err, "inline", scope)
			return marker
		}

		return out
	})
}

func (p *Processor) headers(text string, scope Scope) string {
	if !strings.Contains(text, "#header") {
		return text
	}

	return headerPattern.ReplaceAllStringFunc(text, func(statement string) string {
		expression := strings.Map(func(r rune) rune {
			if r == '$' || r == '{' || r == '}' {
				return -1
			}
			return r
		}, headerPattern.FindStringSubmatch(statement)[1])

		out, err := p.evaluator.EvalString(strings.TrimSpace(expression), scope.Request)
		if err != nil {
			p.warn(err, "#header", scope)
			return statement
		}

		return normalizeLineEndings(out)
	})
}

func (p *Processor) callHooks(text string, scope Scope) string {
	if !strings.Contains(text, "{%") {
		return text
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if !strings.Contains(line, "{%") {
			continue
		}

		var failed error
		replaced := hookPattern.ReplaceAllStringFunc(line, func(marker string) string {
			m := hookPattern.FindStringSubmatch(marker)

			out, err := p.hooks.Call(m[1], splitArgs(m[2]))
			if err != nil && failed == nil {
				failed = err
			}
			return out
		})

		if failed != nil {
			p.warn(failed, "hook", scope)
			continue
		}
		lines[i] = replaced
	}

	return strings.Join(lines, "\n")
}

func (p *Processor) warn(err error, directive string, scope Scope) {
	p.logger.
		WithError(err).
		WithFields(logrus.Fields{"directive": directive, "file": scope.File}).
		Warn("directive left unchanged")
}

func normalizeLineEndings(s string) string {
	return strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(s)
}
