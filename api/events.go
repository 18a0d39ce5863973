package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

type grantEvent struct {
	ActionId string `json:"actionId"`
	PostId   uint64 `json:"postId"`
	Amount   int64  `json:"amount"`
}

// handleGrantEvents streams a message for every gated effect that is
// applied, so clients can unlock content without polling.
func (a *Api) handleGrantEvents() http.HandlerFunc {
	upgrader := &websocket.Upgrader{}

	return func(w http.ResponseWriter, r *http.Request) {
		client := a.gate.SubscribeGrants()
		defer client.Cancel()

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		done := make(chan struct{})

		// read pump
		go func() {
			defer close(done)
			defer c.Close()

			c.SetReadLimit(512)
			c.SetReadDeadline(time.Now().Add(60 * time.Second))
			c.SetPongHandler(func(string) error {
				c.SetReadDeadline(time.Now().Add(60 * time.Second))
				return nil
			})

			for {
				_, _, err := c.ReadMessage()
				if err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
						a.log.Errorf("unexpected websocket closure: %v", err)
					}
					break
				}
			}
		}()

		// write pump
		func() {
			defer c.Close()

			ticker := time.NewTicker(54 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case grant := <-client.Grants:
					c.SetWriteDeadline(time.Now().Add(10 * time.Second))

					err := c.WriteJSON(&grantEvent{
						ActionId: grant.ActionID,
						PostId:   grant.PostID,
						Amount:   grant.AmountSat,
					})
					if err != nil {
						return
					}
				case <-ticker.C:
					c.SetWriteDeadline(time.Now().Add(10 * time.Second))
					if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()
	}
}
