package compiler

import (
	"fmt"
	"strings"

	"github.com/pghatch/pghatch/internal/catalog"
	"github.com/pghatch/pghatch/internal/errs"
)

// CompileCall compiles a named-argument call to a callable (function,
// procedure, aggregate, or window function mounted as an endpoint).
// Every declared IN/INOUT/VARIADIC argument without a default must be
// present in args; unknown argument names fail with MissingArgument's
// sibling validation error.
func (c *Compiler) CompileCall(fn catalog.Callable, args map[string]any) (*CompiledStatement, error) {
	b := &argBuilder{}
	named := make([]string, 0, len(fn.Arguments))

	for _, arg := range fn.Arguments {
		if arg.Mode == catalog.ArgOut || arg.Mode == catalog.ArgTable {
			continue
		}
		v, present := args[arg.Name]
		if !present {
			if arg.HasDefault {
				continue
			}
			return nil, errs.MissingArgument(arg.Name)
		}
		named = append(named, fmt.Sprintf("%s := %s", quoteIdent(arg.Name), b.add(v)))
	}

	for name := range args {
		if _, ok := fn.ArgumentByName(name); !ok {
			return nil, errs.New(errs.Validation, "unknown argument %q", name)
		}
	}

	qname := quoteQualified(fn.Namespace, fn.Name)
	call := fmt.Sprintf("%s(%s)", qname, strings.Join(named, ", "))

	var sql string
	switch fn.ReturnShape {
	case catalog.ReturnVoid:
		if fn.Kind == catalog.CallableProcedure {
			sql = "CALL " + call
		} else {
			sql = fmt.Sprintf("SELECT %s", call)
		}
	case catalog.ReturnScalar:
		sql = fmt.Sprintf("SELECT %s AS result", call)
	default: // composite, set_of_composite, table
		sql = fmt.Sprintf("SELECT * FROM %s", call)
	}

	if err := validate(sql); err != nil {
		return nil, err
	}

	return &CompiledStatement{SQL: sql, Args: b.args, Decode: DecodeRows}, nil
}
