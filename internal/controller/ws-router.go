package controller

import (
	"github.com/couchsync/server/pkg/wsrouter"
)

// The router writes its replies through writeJSON, so they hold the same
// per-conn mutex as the relay forwarder's broadcasts.
func (c *controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New(c.writeJSON)

	mux.Use(c.wsRequestIdMw(), c.wsLoggerMw())

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)
	wsrouter.Handle(mux, "SYNC", c.handleSync)
	wsrouter.Handle(mux, "READY", c.handleReady)
	wsrouter.Handle(mux, "WEBRTC_SIGNAL", c.handleWebRTCSignal)
	wsrouter.Handle(mux, "GET_STATE", c.handleGetState)

	return mux
}
