package middleware

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// RecoverFromPanic вызывается через defer в обработчике апдейта.
// fields попадают в лог вместе со стеком (update_id, chat_id).
func RecoverFromPanic(fields log.Fields) {
	r := recover()
	if r == nil {
		return
	}
	entry := log.WithFields(fields).WithFields(log.Fields{
		"component": "panic_recovery",
		"panic":     fmt.Sprintf("%v", r),
		"stack":     string(debug.Stack()),
	})
	entry.Error("ПАНИКА в обработчике апдейта, восстановлено")
}
