// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package spans

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/tombee/tracebridge/internal/tracing/storage"
	tberrors "github.com/tombee/tracebridge/pkg/errors"
)

// predicate is a compiled --where expression.
type predicate struct {
	program *vm.Program
}

// compileWhere compiles a boolean expression over a span's fields. Unknown
// identifiers evaluate to nil rather than failing, so attribute names that
// only some spans carry can be used freely.
func compileWhere(expression string) (*predicate, error) {
	prog, err := expr.Compile(expression,
		expr.Env(spanEnv(&storage.Span{})),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &tberrors.ValidationError{
			Field:   "where",
			Message: fmt.Sprintf("failed to compile expression: %s", err.Error()),
			Hint:    `Compare span fields, e.g. duration_ms > 50 && target startsWith "app"`,
		}
	}
	return &predicate{program: prog}, nil
}

// match reports whether s satisfies the expression. Evaluation errors count
// as no match.
func (p *predicate) match(s *storage.Span) bool {
	out, err := expr.Run(p.program, spanEnv(s))
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

func spanEnv(s *storage.Span) map[string]any {
	attrs := s.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return map[string]any{
		"trace_id":    s.TraceID,
		"span_id":     s.SpanID,
		"parent_id":   s.ParentID,
		"root":        s.ParentID == "",
		"name":        s.Name,
		"target":      s.Target,
		"level":       s.Level,
		"status":      s.Status.String(),
		"message":     s.StatusMessage,
		"duration_ms": float64(s.Duration().Microseconds()) / 1000,
		"events":      len(s.Events),
		"attrs":       attrs,
	}
}

// filterSpans keeps the spans p matches, up to limit (0 for all).
func filterSpans(spans []*storage.Span, p *predicate, limit int) []*storage.Span {
	out := spans[:0]
	for _, s := range spans {
		if !p.match(s) {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
