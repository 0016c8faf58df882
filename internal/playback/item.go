package playback

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// SinkID identifies an output sink. For Discord it is the guild ID.
type SinkID string

// PayloadKind tells which variant of a Payload is populated.
type PayloadKind int

const (
	// PayloadNone marks the zero Payload, which is never valid.
	PayloadNone PayloadKind = iota
	// PayloadBytes is an in-memory encoded audio stream.
	PayloadBytes
	// PayloadFile is audio already materialized on storage.
	PayloadFile
)

// String returns the string representation of the payload kind.
func (k PayloadKind) String() string {
	switch k {
	case PayloadBytes:
		return "stream"
	case PayloadFile:
		return "file"
	default:
		return "none"
	}
}

// Payload is a tagged union of {Bytes, FilePath}. Exactly one variant is set
// when built through BytesPayload, FilePayload or SpoolPayload.
type Payload struct {
	kind  PayloadKind
	data  []byte
	path  string
	owned bool // remove path on Release
}

// BytesPayload wraps an encoded audio stream held in memory.
func BytesPayload(data []byte) Payload {
	return Payload{kind: PayloadBytes, data: data}
}

// FilePayload references an audio file that outlives playback.
func FilePayload(path string) Payload {
	return Payload{kind: PayloadFile, path: path}
}

// SpoolPayload references an audio file owned by the payload. The file is
// removed when the payload is released, either after playback or when the
// item is dropped from the queue.
func SpoolPayload(path string) Payload {
	return Payload{kind: PayloadFile, path: path, owned: true}
}

// Kind returns the populated variant.
func (p Payload) Kind() PayloadKind { return p.kind }

// Bytes returns the in-memory stream, or nil for file payloads.
func (p Payload) Bytes() []byte { return p.data }

// Path returns the file path, or "" for byte payloads.
func (p Payload) Path() string { return p.path }

// Validate reports whether exactly one variant is populated.
func (p Payload) Validate() error {
	switch p.kind {
	case PayloadBytes:
		if len(p.data) == 0 {
			return fmt.Errorf("%w: empty audio stream", ErrInvalidItem)
		}
		if p.path != "" {
			return fmt.Errorf("%w: both stream and file set", ErrInvalidItem)
		}
	case PayloadFile:
		if p.path == "" {
			return fmt.Errorf("%w: empty file path", ErrInvalidItem)
		}
		if p.data != nil {
			return fmt.Errorf("%w: both stream and file set", ErrInvalidItem)
		}
	default:
		return fmt.Errorf("%w: no payload", ErrInvalidItem)
	}
	return nil
}

// Open returns a reader over the payload audio.
func (p Payload) Open() (io.ReadCloser, error) {
	switch p.kind {
	case PayloadBytes:
		return io.NopCloser(bytes.NewReader(p.data)), nil
	case PayloadFile:
		f, err := os.Open(p.path)
		if err != nil {
			return nil, fmt.Errorf("unable to open audio file: %w", err)
		}
		return f, nil
	default:
		return nil, ErrInvalidItem
	}
}

// Release frees resources owned by the payload. It is safe to call on any
// payload and more than once.
func (p Payload) Release() {
	if p.owned && p.path != "" {
		_ = os.Remove(p.path)
	}
}

// Item is one unit of queued audio and its destination. Items are immutable
// once built.
type Item struct {
	ID          string
	Sink        SinkID
	Payload     Payload
	Label       string // what the item says or which file it plays
	Requester   string
	SubmittedAt time.Time
}

// ItemOption customizes an Item under construction.
type ItemOption func(*Item)

// WithLabel sets the human-readable description shown by Inspect.
func WithLabel(label string) ItemOption {
	return func(i *Item) { i.Label = label }
}

// WithRequester records who asked for the item.
func WithRequester(name string) ItemOption {
	return func(i *Item) { i.Requester = name }
}

// WithSubmittedAt overrides the submission timestamp.
func WithSubmittedAt(t time.Time) ItemOption {
	return func(i *Item) { i.SubmittedAt = t }
}

// NewItem builds an item for sink. Malformed items are rejected here, before
// they can reach a queue.
func NewItem(sink SinkID, payload Payload, opts ...ItemOption) (Item, error) {
	if sink == "" {
		return Item{}, fmt.Errorf("%w: empty sink", ErrInvalidItem)
	}
	if err := payload.Validate(); err != nil {
		return Item{}, err
	}

	item := Item{
		ID:          uuid.NewString(),
		Sink:        sink,
		Payload:     payload,
		SubmittedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&item)
	}

	if item.Label == "" && payload.Kind() == PayloadFile {
		item.Label = filepath.Base(payload.Path())
	}

	return item, nil
}

// Descriptor is the read-only view of an item returned by Inspect.
type Descriptor struct {
	ID          string      `json:"id"`
	Label       string      `json:"label"`
	Kind        PayloadKind `json:"-"`
	KindName    string      `json:"kind"`
	Requester   string      `json:"requester,omitempty"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// Describe returns the item's descriptor.
func (i Item) Describe() Descriptor {
	return Descriptor{
		ID:          i.ID,
		Label:       i.Label,
		Kind:        i.Payload.Kind(),
		KindName:    i.Payload.Kind().String(),
		Requester:   i.Requester,
		SubmittedAt: i.SubmittedAt,
	}
}
