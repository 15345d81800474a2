package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber"
	"github.com/sirupsen/logrus"
	"github.com/zerbitx/mockserver/mock"
)

type (
	// Resolver turns a buffered request into the response to send
	Resolver interface {
		Resolve(req *mock.Request) (*mock.Response, error)
	}

	// Server answers every request with the mock file the resolver picks
	Server struct {
		app      *fiber.App
		resolver Resolver
		logger   logrus.FieldLogger
		port     int
		host     string
	}

	config struct {
		port   int
		host   string
		logger logrus.FieldLogger
	}

	// Option is a function that can modify a default config
	Option func(c *config)
)

const (
	// ServerHeader is sent with every response
	ServerHeader = "Mockserver"

	// InvalidMockBody is sent when the matched mock file cannot be parsed
	InvalidMockBody = "Invalid Mock"
)

// New returns a new Server on 127.0.0.1:8080 unless told otherwise
func New(resolver Resolver, options ...Option) *Server {
	c := &config{
		port:   8080,
		logger: logrus.StandardLogger(),
		host:   "127.0.0.1",
	}

	for _, applyOption := range options {
		applyOption(c)
	}

	app := fiber.New(&fiber.Settings{
		ServerHeader:          ServerHeader,
		DisableStartupMessage: true,
		Immutable:             true,
	})

	s := &Server{
		app:      app,
		resolver: resolver,
		logger:   c.logger,
		port:     c.port,
		host:     c.host,
	}

	app.Use(s.handle)

	return s
}

// WithLogger overrides the default logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithHost sets the host
func WithHost(host string) Option {
	return func(c *config) {
		c.host = host
	}
}

// WithPort sets the port
func WithPort(port int) Option {
	return func(c *config) {
		c.port = port
	}
}

// App exposes the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens until the server fails or is shut down
func (s *Server) Start() error {
	s.logger.WithFields(logrus.Fields{"host": s.host, "port": s.port}).Info("main")

	return s.app.Listen(fmt.Sprintf("%s:%d", s.host, s.port))
}

// Shutdown gracefully shuts down the app
func (s *Server) Shutdown() error {
	if shutdownErr := s.app.Shutdown(); shutdownErr != nil {
		return fmt.Errorf("failed to shutdown app %w", shutdownErr)
	}

	return nil
}

func (s *Server) handle(c *fiber.Ctx) {
	headers := map[string]string{}
	c.Fasthttp.Request.Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = string(value)
	})

	req := mock.NewRequest(
		c.Method(),
		string(c.Fasthttp.Path()),
		string(c.Fasthttp.URI().QueryString()),
		c.Body(),
		headers,
	)

	res, err := s.resolver.Resolve(req)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.Path,
		}).Error("failed to render mock")

		c.Status(http.StatusInternalServerError)
		c.Send(InvalidMockBody)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"method": req.Method,
		"path":   req.Path,
		"file":   res.File,
		"status": res.Status,
		"delay":  res.Delay,
	}).Debug("serving")

	// Only this request's goroutine waits
	if res.Delay > 0 {
		<-time.After(res.Delay)
	}

	c.Status(res.Status)
	for _, header := range res.Headers {
		for i, value := range header.Values {
			// Set replaces fiber's defaults such as Content-Type, Add would send both
			if i == 0 {
				c.Set(header.Name, value)
				continue
			}
			c.Fasthttp.Response.Header.Add(header.Name, value)
		}
	}
	c.Send(res.Body)
}
