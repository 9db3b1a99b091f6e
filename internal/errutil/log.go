// Package errutil bridges oops errors into structured logs and tests.
package errutil

import (
	"github.com/charmbracelet/log"
	"github.com/samber/oops"
)

// LogError logs err at error level. For oops errors the code, domain and
// context are attached as separate keys.
func LogError(logger *log.Logger, msg string, err error) {
	if logger == nil {
		logger = log.Default()
	}
	oe, ok := oops.AsOops(err)
	if !ok {
		logger.Error(msg, "err", err)
		return
	}
	kv := []any{"err", oe.Error()}
	if code := oe.Code(); code != nil && code != "" {
		kv = append(kv, "code", code)
	}
	if domain := oe.Domain(); domain != "" {
		kv = append(kv, "domain", domain)
	}
	if ctx := oe.Context(); len(ctx) > 0 {
		kv = append(kv, "context", ctx)
	}
	logger.Error(msg, kv...)
}

// Code returns the oops code carried by err, or "" when there is none.
func Code(err error) string {
	oe, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	s, _ := oe.Code().(string)
	return s
}
