package browser

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"transcript-insights/pkg/httpclient"
)

// Static is a browser driver for server-rendered pages. It fetches documents
// over HTTP and queries them with goquery; scripts are never executed, so an
// element that is absent after the fetch is reported as not found without
// waiting.
type Static struct {
	client *httpclient.HTTPClient
}

// NewStatic creates a static driver backed by client.
func NewStatic(client *httpclient.HTTPClient) *Static {
	return &Static{client: client}
}

// NewSession opens a session with one empty context.
func (b *Static) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &staticSession{
		client: b.client,
		docs:   make(map[string]*goquery.Document),
	}
	s.current = s.addContext()
	return s, nil
}

type staticSession struct {
	mu      sync.Mutex
	client  *httpclient.HTTPClient
	docs    map[string]*goquery.Document
	seq     int
	current string
	closed  bool
}

func (s *staticSession) addContext() string {
	s.seq++
	handle := "ctx-" + strconv.Itoa(s.seq)
	s.docs[handle] = nil
	return handle
}

func (s *staticSession) activeDoc() (*goquery.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	doc, ok := s.docs[s.current]
	if !ok {
		return nil, ErrNoActiveContext
	}
	return doc, nil
}

func (s *staticSession) Navigate(ctx context.Context, rawURL string) error {
	if _, err := s.activeDoc(); err != nil {
		return err
	}

	body, _, err := s.client.Fetch(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", rawURL, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if _, ok := s.docs[s.current]; !ok {
		return ErrNoActiveContext
	}
	s.docs[s.current] = doc
	return nil
}

func (s *staticSession) find(ctx context.Context, selector string) (*goquery.Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	doc, err := s.activeDoc()
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return nil, ErrNotFound
	}
	return sel, nil
}

func (s *staticSession) Texts(ctx context.Context, selector string) ([]string, error) {
	sel, err := s.find(ctx, selector)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, sel.Length())
	sel.Each(func(_ int, el *goquery.Selection) {
		texts = append(texts, el.Text())
	})
	return texts, nil
}

func (s *staticSession) Attribute(ctx context.Context, selector, name string) (string, error) {
	sel, err := s.find(ctx, selector)
	if err != nil {
		return "", err
	}
	value, _ := sel.First().Attr(name)
	return value, nil
}

func (s *staticSession) HTML(ctx context.Context) (string, error) {
	doc, err := s.activeDoc()
	if err != nil {
		return "", err
	}
	if doc == nil {
		return "", nil
	}
	return doc.Html()
}

func (s *staticSession) Handle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *staticSession) OpenContext(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	s.current = s.addContext()
	return s.current, nil
}

func (s *staticSession) CloseContext(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if _, ok := s.docs[s.current]; !ok {
		return ErrNoActiveContext
	}
	delete(s.docs, s.current)
	s.current = ""
	return nil
}

func (s *staticSession) SwitchTo(handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if _, ok := s.docs[handle]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContext, handle)
	}
	s.current = handle
	return nil
}

func (s *staticSession) Handles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	handles := make([]string, 0, len(s.docs))
	for h := range s.docs {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles
}

func (s *staticSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.docs = nil
	s.current = ""
	return nil
}
