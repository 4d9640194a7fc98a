// Package loader reads definition and OpenAPI documents from local files, an
// fs.FS or HTTP. Construct one through form2.NewLoader.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/goliatone/go-form2/pkg/schema"
)

// MaxDocumentSize caps how many bytes a single document may occupy.
const MaxDocumentSize = 8 << 20

var (
	ErrNilSource      = errors.New("loader: source is nil")
	ErrHTTPDisabled   = errors.New("loader: http support disabled")
	ErrNoFileSystem   = errors.New("loader: filesystem is not configured")
	ErrUnsupported    = errors.New("loader: unsupported source kind")
	ErrDocumentTooBig = errors.New("loader: document exceeds size limit")
)

// Loader implements schema.Loader.
type Loader struct {
	files   fs.FS
	client  *http.Client
	timeout time.Duration
}

var _ schema.Loader = (*Loader)(nil)

// New builds a Loader from resolved options. URL sources only work when a
// client or the HTTP fallback was configured.
func New(options schema.LoaderOptions) *Loader {
	l := &Loader{files: options.FileSystem, timeout: options.RequestTimeout}
	switch {
	case options.HTTPClient != nil:
		clone := *options.HTTPClient
		if l.timeout > 0 && clone.Timeout == 0 {
			clone.Timeout = l.timeout
		}
		l.client = &clone
	case options.AllowHTTPFallback:
		l.client = &http.Client{Timeout: l.timeout}
	}
	return l
}

// Load fetches src and wraps the payload in a schema.Document.
func (l *Loader) Load(ctx context.Context, src schema.Source) (schema.Document, error) {
	if src == nil {
		return schema.Document{}, ErrNilSource
	}
	if err := ctx.Err(); err != nil {
		return schema.Document{}, err
	}

	var (
		data []byte
		err  error
	)
	switch src.Kind() {
	case schema.SourceKindFile:
		data, err = readFile(src.Location())
	case schema.SourceKindFS:
		data, err = l.readFS(src.Location())
	case schema.SourceKindURL:
		data, err = l.fetch(ctx, src.Location())
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupported, src.Kind())
	}
	if err != nil {
		return schema.Document{}, fmt.Errorf("load %s: %w", src.Location(), err)
	}
	return schema.NewDocument(src, data)
}
