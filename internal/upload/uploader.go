// Package upload owns the image upload lifecycle: tracked entries,
// document rewrites on completion, and the uploader backends that move
// bytes to durable storage.
package upload

import "context"

// File is an image payload captured from the editor.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result is the durable location an uploader assigned to a file. Width
// and Height are zero when the backend cannot measure the image.
type Result struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Uploader pushes a file to durable storage.
type Uploader interface {
	Upload(ctx context.Context, file File) (Result, error)
}

// UploaderFunc adapts a function to the Uploader interface.
type UploaderFunc func(ctx context.Context, file File) (Result, error)

func (f UploaderFunc) Upload(ctx context.Context, file File) (Result, error) {
	return f(ctx, file)
}
