package directive

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/google/uuid"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/zerbitx/mockserver/encode"
	"github.com/zerbitx/mockserver/mock"
)

type (
	// Evaluator runs sandboxed expressions against a request. Compiled programs are cached by source.
	Evaluator struct {
		now func() time.Time

		programMu sync.RWMutex
		programs  map[string]*vm.Program
	}

	requestEnv struct {
		Method  string            `expr:"method"`
		Path    string            `expr:"path"`
		Query   string            `expr:"query"`
		Body    string            `expr:"body"`
		Headers map[string]string `expr:"headers"`
	}
)

// NewEvaluator returns an Evaluator using now as its clock
func NewEvaluator(now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}

	return &Evaluator{
		now:      now,
		programs: map[string]*vm.Program{},
	}
}

// Eval evaluates expression with the request in scope
func (e *Evaluator) Eval(expression string, req *mock.Request) (interface{}, error) {
	env := e.env(req)

	program, err := e.compile(expression, env)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", expression, err)
	}

	return result, nil
}

// EvalString evaluates expression and renders the result as text
func (e *Evaluator) EvalString(expression string, req *mock.Request) (string, error) {
	result, err := e.Eval(expression, req)
	if err != nil {
		return "", err
	}

	return Stringify(result)
}

func (e *Evaluator) compile(expression string, env map[string]interface{}) (*vm.Program, error) {
	e.programMu.RLock()
	if program, ok := e.programs[expression]; ok {
		e.programMu.RUnlock()
		return program, nil
	}
	e.programMu.RUnlock()

	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return nil, err
	}

	e.programMu.Lock()
	if existing, ok := e.programs[expression]; ok {
		e.programMu.Unlock()
		return existing, nil
	}
	e.programs[expression] = program
	e.programMu.Unlock()

	return program, nil
}

// env has the same shape for every request so cached programs stay valid
func (e *Evaluator) env(req *mock.Request) map[string]interface{} {
	r := requestEnv{Headers: map[string]string{}}
	if req != nil {
		r.Method, r.Path, r.Query, r.Body = req.Method, req.Path, req.Query, req.Body
		for name, value := range req.Headers {
			r.Headers[name] = value
		}
	}

	return map[string]interface{}{
		"request":  r,
		"jsonPath": jsonPath,
		"now": func() string {
			return e.now().UTC().Format(time.RFC3339)
		},
		"unix": func() int64 {
			return e.now().Unix()
		},
		"uuid": func() string {
			return uuid.New().String()
		},
	}
}

// jsonPath returns the first value at path inside the JSON document text, nil when there is none
func jsonPath(text, path string) interface{} {
	data, err := oj.ParseString(text)
	if err != nil {
		return nil
	}

	x, err := jp.ParseString(path)
	if err != nil {
		return nil
	}

	return x.First(data)
}

// Stringify renders an evaluation result as text: strings verbatim, scalars with their natural
// formatting, everything else as JSON.
func Stringify(v interface{}) (string, error) {
	switch value := v.(type) {
	case nil:
		return "", nil
	case string:
		return value, nil
	case bool:
		return strconv.FormatBool(value), nil
	case int:
		return strconv.Itoa(value), nil
	case int64:
		return strconv.FormatInt(value, 10), nil
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), nil
	case fmt.Stringer:
		return value.String(), nil
	default:
		return encode.JSON(v)
	}
}
