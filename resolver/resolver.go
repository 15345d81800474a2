package resolver

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zerbitx/mockserver/directive"
	"github.com/zerbitx/mockserver/mock"
	"github.com/zerbitx/mockserver/parser"
	"github.com/zerbitx/mockserver/store"
)

type (
	// Store is the read-only mock tree the resolver probes
	Store interface {
		Read(name string) (string, error)
		Wildcards() []string
	}

	// Resolver finds the mock file answering a request and renders it
	Resolver struct {
		store   Store
		parser  *parser.Parser
		watched []string
		logger  logrus.FieldLogger
	}

	config struct {
		watched []string
		logger  logrus.FieldLogger
		parser  *parser.Parser
	}

	// Option is a function that can modify a default config
	Option func(c *config)
)

// New returns a Resolver over s. Directives are expanded against s unless WithParser says otherwise.
func New(s Store, options ...Option) *Resolver {
	c := &config{
		logger: logrus.StandardLogger(),
	}

	for _, applyOption := range options {
		applyOption(c)
	}

	if c.parser == nil {
		c.parser = parser.New(directive.New(s, directive.WithLogger(c.logger)))
	}

	return &Resolver{
		store:   s,
		parser:  c.parser,
		watched: c.watched,
		logger:  c.logger,
	}
}

// WithWatchedHeaders sets the request headers that take part in file name matching
func WithWatchedHeaders(headers []string) Option {
	return func(c *config) {
		c.watched = append([]string(nil), headers...)
	}
}

// WithLogger overrides the default logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithParser overrides the parser used on located mock files
func WithParser(p *parser.Parser) Option {
	return func(c *config) {
		c.parser = p
	}
}

// Resolve locates and renders the mock for req. Requests nothing matches get the Not Mocked
// response; the only error is a mock file that cannot be parsed.
func (r *Resolver) Resolve(req *mock.Request) (*mock.Response, error) {
	file, content, ok := r.Locate(req)
	if !ok {
		r.logger.WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.Path,
		}).Debug("not mocked")

		return mock.NotMocked(), nil
	}

	def, err := r.parser.Parse(content, directive.Scope{File: file, Request: req})
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}

	return &mock.Response{
		Status:  def.Status,
		Headers: def.Headers.Without(DelayHeader),
		Body:    def.Body,
		Delay:   ResponseDelay(def.Headers),
		File:    file,
		Matched: true,
	}, nil
}

// Locate returns the store path and content of the mock file answering req. The request
// directory is searched first, then the best wildcard directory.
func (r *Resolver) Locate(req *mock.Request) (string, string, bool) {
	candidates := Candidates(req.Method, r.watchedValues(req))
	suffix := Suffix(req)

	if file, content, ok := r.search(store.Join(req.Path), candidates, suffix); ok {
		return file, content, true
	}

	dir, ok := MatchWildcard(r.store.Wildcards(), req.Segments())
	if !ok {
		return "", "", false
	}

	return r.search(dir, candidates, suffix)
}

// Suffix distinguishes mock files by query string or, when there is none, by body
func Suffix(req *mock.Request) string {
	switch {
	case req.Query != "":
		return "--" + req.Query
	case req.Body != "":
		return "--" + req.Body
	default:
		return ""
	}
}

// search stops at the first candidate with a file, preferring the suffixed file over the bare one
func (r *Resolver) search(dir string, candidates []string, suffix string) (string, string, bool) {
	for _, prefix := range candidates {
		names := []string{prefix + suffix + store.Extension}
		if suffix != "" {
			names = append(names, prefix+store.Extension)
		}

		for _, name := range names {
			// A body or query holding a slash can never name a file in dir
			if strings.Contains(name, "/") {
				continue
			}
			file := store.Join(dir, name)

			content, err := r.store.Read(file)
			if err != nil {
				r.logger.WithFields(logrus.Fields{"file": file}).Debug("not matched")
				continue
			}

			r.logger.WithFields(logrus.Fields{"file": file}).Debug("matched")
			return file, content, true
		}
	}

	return "", "", false
}

func (r *Resolver) watchedValues(req *mock.Request) []HeaderValue {
	values := WatchedValues(req, r.watched)
	if len(values) > MaxWatchedHeaders {
		r.logger.WithFields(logrus.Fields{
			"present": len(values),
			"limit":   MaxWatchedHeaders,
		}).Warn("ignoring watched headers past the limit")

		values = values[:MaxWatchedHeaders]
	}

	return values
}
