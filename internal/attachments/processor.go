// Package attachments validates, normalizes and stores files sent with chat
// messages.
package attachments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const MaxFileSize = 10 * 1024 * 1024

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

var allowedMimes = map[string]bool{
	"image/jpeg":         true,
	"image/jpg":          true,
	"image/png":          true,
	"image/gif":          true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// File is an attachment as received from a client.
type File struct {
	Data []byte
	Type string
	Name string
}

// Attachment is the stored reference saved on the message.
type Attachment struct {
	URL  string
	Type string
	Name string
}

type Processor struct {
	store BlobStore
	log   *zap.Logger
}

func NewProcessor(store BlobStore, log *zap.Logger) *Processor {
	return &Processor{store: store, log: log}
}

func (p *Processor) Process(ctx context.Context, f File) (Attachment, error) {
	ext := strings.ToLower(filepath.Ext(f.Name))
	mime := strings.ToLower(strings.TrimSpace(f.Type))

	if !allowedExtensions[ext] || !allowedMimes[mime] {
		return Attachment{}, ErrUnsupportedType
	}
	if len(f.Data) > MaxFileSize {
		return Attachment{}, ErrTooLarge
	}
	if len(f.Data) == 0 {
		return Attachment{}, ErrEmptyPayload
	}

	contentType := mime
	detected := mimetype.Detect(f.Data)
	switch {
	case detected.Is(mime):
	case allowedMimes[detected.String()]:
		p.log.Info("attachment type differs from content",
			zap.String("declared", mime), zap.String("detected", detected.String()))
		contentType = detected.String()
	default:
		p.log.Info("attachment content not recognised",
			zap.String("declared", mime), zap.String("detected", detected.String()))
	}

	data := f.Data
	if strings.HasPrefix(mime, "image/") {
		out, err := normalizeImage(f.Data, ext)
		if err != nil {
			p.log.Warn("image processing failed, storing original", zap.String("name", f.Name), zap.Error(err))
		} else {
			data = out
			// re-encoding follows the extension, not the original content
			if reencoded := mimetype.Detect(data).String(); allowedMimes[reencoded] {
				contentType = reencoded
			}
		}
	}

	name, err := randomName(ext)
	if err != nil {
		return Attachment{}, fmt.Errorf("%w: %w", ErrStore, err)
	}
	url, err := p.store.Put(ctx, "uploads/"+name, data, contentType)
	if err != nil {
		return Attachment{}, fmt.Errorf("%w: %w", ErrStore, err)
	}

	display := f.Name
	if display == "" {
		display = name
	}
	return Attachment{URL: url, Type: mime, Name: display}, nil
}

func randomName(ext string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random name: %w", err)
	}
	return hex.EncodeToString(b) + ext, nil
}
