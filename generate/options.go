package generate

import "github.com/tliron/commonlog"

var generateLog = commonlog.GetLogger("arbor.generate")

type options struct {
	strict bool
	logger commonlog.Logger
}

// Option configures Compile.
type Option func(*options)

// WithStrictConflicts makes conflicts that precedence, associativity and
// declared conflict groups cannot resolve fail compilation instead of
// producing a Warning.
func WithStrictConflicts() Option {
	return func(o *options) { o.strict = true }
}

// WithLogger sets the logger for compile diagnostics.
func WithLogger(l commonlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
