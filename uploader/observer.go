package uploader

import "github.com/moyoez/cloudsend/types"

// Observer receives progress of an upload run. Methods are called from the
// engine's goroutines and must not block for long.
type Observer interface {
	// SessionChanged is called after every status transition of a chunk session.
	SessionChanged(session types.UploadSession)
	// EntrySettled is called once per entry when its outcome is final.
	EntrySettled(outcome types.UploadOutcome, settled, total int)
}

type nopObserver struct{}

func (nopObserver) SessionChanged(types.UploadSession) {}

func (nopObserver) EntrySettled(types.UploadOutcome, int, int) {}
