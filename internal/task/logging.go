package task

// Trace, when non-nil, is called at significant scheduler events --
// thread creation, dispatch, and exit -- with a fmt.Sprintf-style format
// and args. It is nil by default and costs nothing when left that way,
// the same way the scheduler this package is modeled on gates its own
// debug output behind a compile-time verbose flag rather than pay for
// formatting a message that will never be printed. cpu.Boot wires this
// to a structured logger when one is configured; tests that want to
// observe scheduling decisions set it directly.
var Trace func(format string, args ...any)

func trace(format string, args ...any) {
	if Trace != nil {
		Trace(format, args...)
	}
}
