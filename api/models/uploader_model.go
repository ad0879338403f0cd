package models

import (
	"sync"

	"github.com/moyoez/cloudsend/types"
	"github.com/moyoez/cloudsend/uploader"
)

var (
	uploaderMu sync.RWMutex
	engine     *uploader.Engine
	caller     types.Caller
	callerSet  bool
)

// SetUploadEngine sets the engine used by the local API.
func SetUploadEngine(e *uploader.Engine) {
	uploaderMu.Lock()
	defer uploaderMu.Unlock()
	engine = e
}

func GetUploadEngine() *uploader.Engine {
	uploaderMu.RLock()
	defer uploaderMu.RUnlock()
	return engine
}

// SetCaller sets the account uploads started through the local API run as.
func SetCaller(c types.Caller) {
	uploaderMu.Lock()
	defer uploaderMu.Unlock()
	caller = c
	callerSet = true
}

// ClearCaller forgets the account, e.g. after the store rejected its token.
func ClearCaller() {
	uploaderMu.Lock()
	defer uploaderMu.Unlock()
	caller = types.Caller{}
	callerSet = false
}

func GetCaller() (types.Caller, bool) {
	uploaderMu.RLock()
	defer uploaderMu.RUnlock()
	return caller, callerSet
}
