// Package archive defines the optional store that keeps a copy of every
// delivered image. Implementations live in subpackages; this package must
// not import concrete storage clients.
package archive

import "context"

// Provider writes delivered image bytes and returns a URI for the copy.
type Provider interface {
	Save(ctx context.Context, objectName string, data []byte) (string, error)
}
