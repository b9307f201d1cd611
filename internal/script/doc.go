// Package script lets Lua functions act as signal receivers and predicates.
//
// An Engine wraps one sandboxed gopher-lua state. Only the base, table,
// string and math libraries are opened, and the loaders that reach the
// filesystem are removed. Payloads are handed to Lua as tables built from
// their JSON form, so struct json tags decide the field names.
//
//	eng := script.New(script.WithLogger(logger))
//	defer eng.Close()
//	if err := eng.DoString(`
//	    function audit(order)
//	        signals.log("order " .. order.id)
//	    end
//	    function large(order) return order.total > 100 end
//	`); err != nil {
//	    return err
//	}
//	sig.ConnectIf(script.Receiver[Order](eng, "audit"), script.Predicate[Order](eng, "large"))
//
// A Lua receiver fails when it raises an error, returns false, or returns a
// string (used as the error message). gopher-lua states are single
// threaded; an Engine serializes calls with a mutex.
package script
