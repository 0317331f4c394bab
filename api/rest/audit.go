package rest

import (
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/audit"
	mw "github.com/JassinAlSafe/gamerfie-sub001/middleware"
	"github.com/gin-gonic/gin"
)

// auditLog records a mutating operation. auditor may be nil (tests).
func auditLog(auditor *audit.Service, c *gin.Context, action string, started time.Time, req, resp interface{}, err error) {
	if auditor == nil {
		return
	}
	entry := audit.Entry{
		TraceID:    mw.GetTraceID(c),
		Action:     action,
		Request:    req,
		Response:   resp,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(started).Milliseconds()),
	}
	if uid := mw.GetUserID(c); uid != 0 {
		entry.UserID = &uid
	}
	if err != nil {
		entry.Error = err.Error()
	}
	auditor.Log(entry)
}
