package webserver

import (
	"strings"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const sessionName = "shopsync"

// Flash levels
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-shot message shown on the next page render
type Flash struct {
	Level   string
	Message string
}

// AddFlash queues a message for the next render. Session errors are logged only.
func AddFlash(c echo.Context, level, message string) {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		zap.L().Warn("session unavailable", zap.String("namespace", "web"), zap.Error(err))
		return
	}
	sess.AddFlash(level + "|" + message)
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		zap.L().Warn("session save failed", zap.String("namespace", "web"), zap.Error(err))
	}
}

// Flashes pops all queued messages
func Flashes(c echo.Context) []Flash {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return nil
	}
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	_ = sess.Save(c.Request(), c.Response())

	result := make([]Flash, 0, len(raw))
	for _, r := range raw {
		s, ok := r.(string)
		if !ok {
			continue
		}
		level, msg, found := strings.Cut(s, "|")
		if !found {
			level, msg = FlashSuccess, s
		}
		result = append(result, Flash{Level: level, Message: msg})
	}
	return result
}
