package deck

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

type MediaEntry struct {
	Name string
	Data []byte
}

// MediaRegistry numbers embedded payloads 0, 1, 2... in registration order.
// It lives for exactly one encode call.
type MediaRegistry struct {
	mu       sync.Mutex
	entries  []MediaEntry
	total    int64
	maxBytes int64
}

// NewMediaRegistry creates a registry refusing payloads once their sum would
// pass maxBytes. A non-positive maxBytes disables the ceiling.
func NewMediaRegistry(maxBytes int64) *MediaRegistry {
	return &MediaRegistry{maxBytes: maxBytes}
}

func (r *MediaRegistry) Register(payload []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxBytes > 0 && r.total+int64(len(payload)) > r.maxBytes {
		return "", tooLarge("media", r.maxBytes)
	}
	name := strconv.Itoa(len(r.entries))
	r.entries = append(r.entries, MediaEntry{Name: name, Data: payload})
	r.total += int64(len(payload))
	return name, nil
}

// RegisterDataURI registers the payload of a data URI. ok is false when uri is
// not a decodable data URI, in which case nothing is registered.
func (r *MediaRegistry) RegisterDataURI(uri string) (name string, ok bool, err error) {
	payload, ok := decodeDataURI(uri)
	if !ok {
		return "", false, nil
	}
	name, err = r.Register(payload)
	if err != nil {
		return "", true, err
	}
	return name, true, nil
}

var inlineDataSrc = regexp.MustCompile(`(?i)(\bsrc\s*=\s*)(["'])(data:[^"']*)(["'])`)

// RewriteReferences moves every inline data URI found in a src attribute into
// the registry and points the attribute at the assigned filename.
func (r *MediaRegistry) RewriteReferences(content string) (string, error) {
	if !strings.Contains(content, "data:") {
		return content, nil
	}

	matches := inlineDataSrc.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		uriStart, uriEnd := m[6], m[7]
		name, ok, err := r.RegisterDataURI(content[uriStart:uriEnd])
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		b.WriteString(content[last:uriStart])
		b.WriteString(name)
		last = uriEnd
	}
	b.WriteString(content[last:])
	return b.String(), nil
}

func (r *MediaRegistry) Entries() []MediaEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MediaEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *MediaRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *MediaRegistry) TotalBytes() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// decodeDataURI parses "data:[<mediatype>][;base64],<data>".
func decodeDataURI(uri string) ([]byte, bool) {
	if len(uri) < 5 || !strings.EqualFold(uri[:5], "data:") {
		return nil, false
	}
	header, body, found := strings.Cut(uri[5:], ",")
	if !found {
		return nil, false
	}
	if strings.HasSuffix(strings.ToLower(header), ";base64") {
		body = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, body)
		if payload, err := base64.StdEncoding.DecodeString(body); err == nil {
			return payload, true
		}
		if payload, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(body, "=")); err == nil {
			return payload, true
		}
		return nil, false
	}
	payload, err := url.PathUnescape(body)
	if err != nil {
		return nil, false
	}
	return []byte(payload), true
}

func encodeDataURI(mime string, payload []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(payload)
}
