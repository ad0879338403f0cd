package notifyhub

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/moyoez/cloudsend/tool"
	"github.com/moyoez/cloudsend/types"
)

// maxClientMessage bounds what a client may send; the stream is one way.
const maxClientMessage = 512

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // OnlyAllowLocal middleware already restricts to localhost
	},
}

// HandleNotifyWS upgrades the request and streams upload notifications to it
// until the client goes away. The first message is an info notification
// confirming the subscription.
func HandleNotifyWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			tool.DefaultLogger.Debugf("[NotifyHub] Upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxClientMessage)

		cl := hub.register(conn)
		defer hub.Unregister(conn)

		hello, err := sonic.Marshal(&types.Notification{
			Type:  types.NotifyTypeInfo,
			Title: "Subscribed",
			Data:  map[string]any{"clients": hub.Len()},
		})
		if err == nil {
			if err := cl.write(hello); err != nil {
				tool.DefaultLogger.Debugf("[NotifyHub] Failed to greet client: %v", err)
				return
			}
		}

		// Incoming messages are ignored; a read error means the client left.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}
