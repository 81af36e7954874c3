package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/pagecraft-dev/pagecraft/internal/core"
)

// DefaultEvalTimeout bounds a single expression evaluation.
const DefaultEvalTimeout = 250 * time.Millisecond

// ErrEvalTimeout is returned when an expression runs past its timeout.
var ErrEvalTimeout = errors.New("evaluation timed out")

// GojaEvaluator evaluates expressions in a fresh goja runtime per call. The
// scope is copied in as JSON so expressions cannot reach host objects.
type GojaEvaluator struct {
	Timeout time.Duration
}

var _ core.Evaluator = (*GojaEvaluator)(nil)

// NewGojaEvaluator returns an evaluator; a zero timeout selects DefaultEvalTimeout.
func NewGojaEvaluator(timeout time.Duration) *GojaEvaluator {
	if timeout <= 0 {
		timeout = DefaultEvalTimeout
	}
	return &GojaEvaluator{Timeout: timeout}
}

// Eval evaluates code with every key of scope in lexical scope. Expression
// results are returned as plain JSON-compatible Go values; undefined maps to nil.
func (e *GojaEvaluator) Eval(code string, scope map[string]any) (any, error) {
	data, err := json.Marshal(jsonSafe(scope))
	if err != nil {
		return nil, fmt.Errorf("encode scope: %w", err)
	}

	vm := goja.New()
	if err := vm.Set("__scope", string(data)); err != nil {
		return nil, err
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultEvalTimeout
	}
	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt(ErrEvalTimeout)
	})
	defer timer.Stop()

	src := "(function (state) { with (state) { return (" + code + "\n); } })(JSON.parse(__scope))"
	v, err := vm.RunString(src)
	if err != nil {
		return nil, evalError(err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return jsonSafe(v.Export()), nil
}

// evalError turns a goja failure into an error whose message is the thrown
// value's message.
func evalError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return ErrEvalTimeout
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		if obj, ok := ex.Value().(*goja.Object); ok {
			if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
				return &core.RuntimeError{Message: msg.String(), Stack: ex.Error()}
			}
		}
		return &core.RuntimeError{Message: ex.Value().String()}
	}
	return &core.RuntimeError{Message: err.Error()}
}
