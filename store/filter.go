package store

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// AppFilter is a compiled CEL expression evaluated against a single app.
//
// The app is exposed as the map variable `app` with the fields
// id, title, category, description, rating and has_rating. An absent
// rating reads as 0 with has_rating false.
type AppFilter struct {
	expr    string
	program cel.Program
}

// ErrInvalidFilter marks app filters that fail to compile or to evaluate
// against an app. Test with errors.Is.
var ErrInvalidFilter = errors.New("invalid app filter")

var appFilterEnv *cel.Env

func init() {
	env, err := cel.NewEnv(
		cel.Variable("app", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		panic(errors.Wrap(err, "failed to create app filter environment"))
	}
	appFilterEnv = env
}

// CompileAppFilter parses and type-checks a filter expression. The
// expression must evaluate to a bool.
func CompileAppFilter(expr string) (*AppFilter, error) {
	ast, issues := appFilterEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "invalid app filter %q", expr)
	}
	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return nil, errors.Errorf("app filter %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	program, err := appFilterEnv.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build app filter %q", expr)
	}
	return &AppFilter{expr: expr, program: program}, nil
}

// Match reports whether the app satisfies the filter.
func (f *AppFilter) Match(app *App) (bool, error) {
	out, _, err := f.program.Eval(map[string]any{
		"app": appActivation(app),
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to evaluate app filter %q on app %s", f.expr, app.ID)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("app filter %q returned %T, want bool", f.expr, out.Value())
	}
	return matched, nil
}

// String returns the source expression.
func (f *AppFilter) String() string {
	return f.expr
}

func appActivation(app *App) map[string]any {
	return map[string]any{
		"id":          app.ID,
		"title":       app.Title,
		"category":    app.Category,
		"description": app.Description,
		"rating":      app.RatingOrZero(),
		"has_rating":  app.Rating != nil,
	}
}
