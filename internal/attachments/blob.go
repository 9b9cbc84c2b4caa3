//go:generate go run go.uber.org/mock/mockgen -source=blob.go -destination=mocks/mock_blob.go -package=mocks
package attachments

import "context"

// BlobStore persists processed attachment bytes and returns the public URL
// clients use to fetch them.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
