package attachments

import (
	"errors"
	"fmt"
)

var ErrInvalidAttachment = errors.New("invalid attachment")

var (
	ErrUnsupportedType = fmt.Errorf("%w: unsupported file type", ErrInvalidAttachment)
	ErrTooLarge        = fmt.Errorf("%w: file too large", ErrInvalidAttachment)
	ErrEmptyPayload    = fmt.Errorf("%w: empty payload", ErrInvalidAttachment)
)

// ErrStore means the attachment was valid but could not be written.
var ErrStore = errors.New("attachment storage failed")
