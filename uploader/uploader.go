// Package uploader stores channel media fetched from Telegram, either on an
// S3-compatible CDN or in the local upload directory shared with the API
// server.
package uploader

import "context"

// An Uploader fetches a media file from its source URL, stores it under the
// given name and returns the location to persist with the post: an absolute
// URL for CDN storage, a bare filename for local storage.
type Uploader interface {
	Upload(ctx context.Context, sourceURL, name string) (string, error)
}
