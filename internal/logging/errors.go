package logging

import (
	"context"

	"github.com/samber/oops"
)

// LogError logs err at error level. Errors built with oops contribute their
// code and context as separate attributes.
func LogError(ctx context.Context, logger Logger, msg string, err error, args ...any) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := append([]any{}, args...)
		attrs = append(attrs, "error", oopsErr.Error())
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if c := oopsErr.Context(); len(c) > 0 {
			attrs = append(attrs, "context", c)
		}
		logger.Error(ctx, msg, attrs...)
		return
	}
	logger.Error(ctx, msg, append(args, "error", err)...)
}
