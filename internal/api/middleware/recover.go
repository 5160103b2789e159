package middleware

import (
	"bytes"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

const maxStackLines = 32

// Recover turns a handler panic into ErrInternal, rendered by the app's
// ErrorHandler. Only the log gets the stack.
func Recover(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			logger.Error("panic recovered",
				slog.Any("panic", r),
				slog.String("route", c.Route().Path),
				slog.String("method", c.Method()),
				slog.String("request_id", requestID(c)),
				slog.String("stack", stackTop(debug.Stack(), maxStackLines)),
			)

			err = c.App().ErrorHandler(c, domain.ErrInternal.WithError(fmt.Errorf("panic: %v", r)))
		}()
		return c.Next()
	}
}

// stackTop keeps the first n lines of a goroutine dump
func stackTop(stack []byte, n int) string {
	idx := 0
	for i := 0; i < n; i++ {
		next := bytes.IndexByte(stack[idx:], '\n')
		if next < 0 {
			return string(stack)
		}
		idx += next + 1
	}
	return string(stack[:idx]) + "..."
}
