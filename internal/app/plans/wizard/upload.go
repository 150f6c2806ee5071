package wizard

import (
	"context"
	"errors"

	"github.com/dalemusser/planhub/internal/app/system/apperr"
)

// Uploader stores image bytes and returns a URL for them.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (url string, err error)
}

type upload struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// ErrNoUpload is returned by WaitUpload when no upload was started.
var ErrNoUpload = errors.New("wizard: no upload in progress")

// StartImageUpload uploads data in the background. The draft's image is
// set when the upload lands; until then the first step reports the upload
// as in progress. Starting a new upload abandons the previous one.
func (w *Wizard) StartImageUpload(ctx context.Context, up Uploader, filename, contentType string, data []byte) {
	ctx, cancel := context.WithCancel(ctx)
	u := &upload{cancel: cancel, done: make(chan struct{})}

	w.mu.Lock()
	if w.upload != nil {
		w.upload.cancel()
	}
	w.upload = u
	w.draft.Uploading = true
	w.draft.UploadError = ""
	w.mu.Unlock()

	go func() {
		defer cancel()
		url, err := up.Upload(ctx, filename, contentType, data)
		if err == nil && url == "" {
			err = errors.New("upload returned no url")
		}

		w.mu.Lock()
		u.err = err
		// A newer upload or Cancel superseded this one.
		if w.upload == u {
			w.draft.Uploading = false
			if err != nil {
				w.draft.UploadError = uploadMessage(err)
			} else {
				w.draft.ImageURL = url
			}
		}
		w.mu.Unlock()
		close(u.done)
	}()
}

// WaitUpload blocks until the latest upload finishes and returns its error.
func (w *Wizard) WaitUpload(ctx context.Context) error {
	w.mu.Lock()
	u := w.upload
	w.mu.Unlock()
	if u == nil {
		return ErrNoUpload
	}
	select {
	case <-u.done:
		return u.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func uploadMessage(err error) string {
	if apperr.KindOf(err) != apperr.KindUnknown {
		return apperr.MessageOf(err)
	}
	return err.Error()
}
