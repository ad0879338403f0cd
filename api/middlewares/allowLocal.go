package middlewares

import (
	"net/http"
	"net/netip"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/cloudsend/tool"
)

// OnlyAllowLocal rejects every request not coming from a loopback address.
func OnlyAllowLocal(c *gin.Context) {
	addr, err := netip.ParseAddr(c.ClientIP())
	if err != nil || !addr.Unmap().IsLoopback() {
		tool.DefaultLogger.Warnf("[API] Rejected request from %s", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusForbidden, tool.FastReturnError("Forbidden"))
		return
	}
	c.Next()
}
