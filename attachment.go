package imapkit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// BodyPart is one node of a message's MIME structure tree, addressed by a
// dotted part number like "1.2.1" mirroring the nesting of multipart
// boundaries. The root message itself is part number "".
type BodyPart struct {
	PartNumber  string
	ContentType string // major/minor, lowercased
	Params      map[string]string
	Disposition string // "attachment", "inline", or ""
	Filename    string
	Name        string
	ContentID   string // angle brackets stripped
	Size        int
	Encoding    string // Content-Transfer-Encoding, lowercased
	Charset     string

	Children []*BodyPart

	raw        []byte
	decodeOnce sync.Once
	decoded    []byte
	decodeErr  error
}

// IsAttachment reports whether this part should be classified as an
// attachment rather than a displayable body: any disposition of
// "attachment", or a non-text part, or a text part that carries a
// filename. An inline part with a displayable text content type and no
// filename is always a body, never an attachment.
func (p *BodyPart) IsAttachment() bool {
	if p.Disposition == "attachment" {
		return true
	}
	isDisplayableText := p.ContentType == "text/plain" || p.ContentType == "text/html"
	if isDisplayableText && p.Filename == "" {
		return false
	}
	return true
}

// ContentStore lets a caller plug in a cache for decoded attachment bytes
// keyed by (uid, part number), so repeated access to the same attachment
// does not re-decode or re-fetch. A nil store keeps bytes in memory on the
// Attachment value, which is the default.
type ContentStore interface {
	Get(uid uint32, partNumber string) ([]byte, bool, error)
	Put(uid uint32, partNumber string, data []byte) error
}

// Attachment is a BodyPart classified as an attachment, with lazy content
// decoding and an optional backing ContentStore.
type Attachment struct {
	part  *BodyPart
	uid   uint32
	store ContentStore
}

func newAttachment(uid uint32, part *BodyPart, store ContentStore) *Attachment {
	return &Attachment{part: part, uid: uid, store: store}
}

func (a *Attachment) Filename() string    { return sanitizeFilename(a.part.Filename) }
func (a *Attachment) ContentType() string { return a.part.ContentType }
func (a *Attachment) Disposition() string { return a.part.Disposition }
func (a *Attachment) ContentIDRaw() string { return a.part.ContentID }
func (a *Attachment) PartNumber() string  { return a.part.PartNumber }
func (a *Attachment) Size() int           { return a.part.Size }

// Extension infers a file extension from the filename, falling back to the
// MIME subtype when the filename has none.
func (a *Attachment) Extension() string {
	if ext := filepath.Ext(a.part.Filename); ext != "" {
		return strings.TrimPrefix(ext, ".")
	}
	_, sub, ok := strings.Cut(a.part.ContentType, "/")
	if ok {
		return sub
	}
	return ""
}

// Content returns the decoded attachment bytes, decoding on first access
// and checking the backing ContentStore (if any) before re-decoding.
func (a *Attachment) Content() ([]byte, error) {
	a.part.decodeOnce.Do(func() {
		if a.store != nil {
			if cached, ok, err := a.store.Get(a.uid, a.part.PartNumber); err == nil && ok {
				a.part.decoded = cached
				return
			}
		}
		a.part.decoded, a.part.decodeErr = decodeTransferEncoding(a.part.raw, a.part.Encoding)
		if a.part.decodeErr == nil && a.store != nil {
			_ = a.store.Put(a.uid, a.part.PartNumber, a.part.decoded)
		}
	})
	return a.part.decoded, a.part.decodeErr
}

// ID is the attachment's identity: the Content-ID with angle brackets
// stripped when present, otherwise a stable sha256 hash over the decoded
// content. Two attachments are equal iff their ids match.
func (a *Attachment) ID() string {
	if a.part.ContentID != "" {
		return a.part.ContentID
	}
	content, err := a.Content()
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "attachment"
	}
	return name
}

func normalizeContentID(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "<") && strings.HasSuffix(raw, ">") {
		return raw[1 : len(raw)-1]
	}
	return raw
}

func newContentTypeError(partNumber string, err error) error {
	return fmt.Errorf("imapkit: part %s: %w", partNumber, err)
}
