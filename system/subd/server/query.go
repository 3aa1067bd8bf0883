package server

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/saulx/selva/go-selva/debug"
	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/system/subd/api"
)

// Query is a compiled live query.  It is an expression over
//
//	nodes   map of node id to node value
//	commit  the commit the nodes reflect
//
// whose result is the value subscribers follow, for example
//
//	sortBy(filter(values(nodes), .type == "user"), .name)
//
// Map iteration order is not stable, so queries producing arrays from
// maps should sort them; otherwise subscribers see spurious patches.
type Query struct {
	Source string
	prg    *vm.Program
}

func queryEnv(nodes map[string]any, commit int64) map[string]any {
	return map[string]any{
		"nodes":  nodes,
		"commit": commit,
	}
}

// CompileQuery compiles src.  Errors are api errors with code
// invalid_query.
func CompileQuery(src string) (*Query, error) {
	prg, err := expr.Compile(src, expr.Env(queryEnv(map[string]any{}, 0)))
	if err != nil {
		return nil, api.NewError(api.ErrCodeInvalidQuery, err.Error())
	}
	return &Query{Source: src, prg: prg}, nil
}

// Eval evaluates the query against nodes, an object of node values by id.
func (q *Query) Eval(nodes *ir.Value, commit int64) (*ir.Value, error) {
	m, _ := ir.ToAny(nodes).(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	res, err := expr.Run(q.prg, queryEnv(m, commit))
	if err != nil {
		return nil, api.NewError(api.ErrCodeInvalidQuery, err.Error())
	}
	v, err := ir.FromAny(res)
	if err != nil {
		return nil, api.NewError(api.ErrCodeInvalidQuery, fmt.Sprintf("query result: %v", err))
	}
	if debug.Diff() {
		debug.Logf("query %q at commit %d: %s\n", q.Source, commit, v.MustJSON())
	}
	return v, nil
}
