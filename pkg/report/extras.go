package report

import (
	"context"
	"sync"
)

// Extra formats understood by the default template.
const (
	FormatURL   = "url"
	FormatText  = "text"
	FormatJSON  = "json"
	FormatImage = "image"
	FormatHTML  = "html"
)

// Extra is an attachment added to a test's report entry. The collector treats
// it as an opaque value; templates decide how to show each Format.
type Extra struct {
	Name      string `json:"name"`
	Format    string `json:"format_type"`
	Content   string `json:"content"`
	MIMEType  string `json:"mime_type,omitempty"`
	Extension string `json:"extension,omitempty"`
}

// URL returns a link extra.
func URL(content, name string) Extra {
	return Extra{Name: name, Format: FormatURL, Content: content}
}

// Text returns a plain-text extra.
func Text(content, name string) Extra {
	return Extra{Name: name, Format: FormatText, Content: content, MIMEType: "text/plain", Extension: "txt"}
}

// JSON returns an extra holding a JSON document.
func JSON(content, name string) Extra {
	return Extra{Name: name, Format: FormatJSON, Content: content, MIMEType: "application/json", Extension: "json"}
}

// Image returns an image extra. Content is a URL or a base64 data payload.
func Image(content, name, mimeType, extension string) Extra {
	return Extra{Name: name, Format: FormatImage, Content: content, MIMEType: mimeType, Extension: extension}
}

// HTML returns an extra holding raw HTML.
func HTML(content string) Extra {
	return Extra{Format: FormatHTML, Content: content}
}

// Extras is the per-test attachment buffer. Test code appends to it while the
// test runs; the runner drains it once when the call phase is reported.
type Extras struct {
	mu    sync.Mutex
	items []Extra
}

// Append adds extras to the buffer.
func (e *Extras) Append(extras ...Extra) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = append(e.items, extras...)
}

// Drain returns the buffered extras and clears the buffer.
func (e *Extras) Drain() []Extra {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.items
	e.items = nil
	return out
}

// Len reports the number of buffered extras.
func (e *Extras) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

type extrasKey struct{}

// WithExtras returns a context carrying a fresh, empty Extras buffer scoped to
// one test.
func WithExtras(ctx context.Context) (context.Context, *Extras) {
	e := &Extras{}
	return context.WithValue(ctx, extrasKey{}, e), e
}

// ExtrasFrom returns the buffer carried by ctx, or nil.
func ExtrasFrom(ctx context.Context) *Extras {
	e, _ := ctx.Value(extrasKey{}).(*Extras)
	return e
}

// AddExtra appends to the buffer in ctx. It reports false when ctx carries
// no buffer, i.e. the caller is not running inside a test scope.
func AddExtra(ctx context.Context, extras ...Extra) bool {
	e := ExtrasFrom(ctx)
	if e == nil {
		return false
	}
	e.Append(extras...)
	return true
}

// MergeExtras folds the test-scoped extras into a call-phase result: fixture
// extras first, then the ones the runner attached itself. Other phases are
// returned unchanged and the buffer is left alone.
func MergeExtras(r PhaseResult, fixture *Extras) PhaseResult {
	if r.Phase != PhaseCall || fixture == nil {
		return r
	}
	scoped := fixture.Drain()
	merged := make([]Extra, 0, len(scoped)+len(r.Extras))
	merged = append(merged, scoped...)
	merged = append(merged, r.Extras...)
	r.Extras = merged
	return r
}
