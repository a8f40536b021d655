package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/maltedev/catalog-scraper/internal/fetch"
)

const testBase = "https://shop.example"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFetcher serves canned pages by URL. Unknown URLs return 404.
type fakeFetcher struct {
	mu        sync.Mutex
	pages     map[string]string
	status    map[string]int
	errs      map[string]error
	submitted []url.Values
	submitTo  []string
	submitRes *fetch.Response
	requested []string
	closed    bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:  make(map[string]string),
		status: make(map[string]int),
		errs:   make(map[string]error),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, target string) (*fetch.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.requested = append(f.requested, target)
	if err, ok := f.errs[target]; ok {
		return nil, err
	}
	body, ok := f.pages[target]
	if !ok {
		return &fetch.Response{StatusCode: http.StatusNotFound, URL: target}, nil
	}
	status := http.StatusOK
	if s, ok := f.status[target]; ok {
		status = s
	}
	return &fetch.Response{StatusCode: status, Body: body, URL: target}, nil
}

func (f *fakeFetcher) SubmitForm(ctx context.Context, target string, fields url.Values) (*fetch.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitTo = append(f.submitTo, target)
	f.submitted = append(f.submitted, fields)
	if f.submitRes == nil {
		return nil, errors.New("connection reset")
	}
	return f.submitRes, nil
}

func (f *fakeFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFetcher) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requested...)
}

func (f *fakeFetcher) fetched(target string) bool {
	for _, r := range f.requests() {
		if r == target {
			return true
		}
	}
	return false
}

// listingHTML renders one listing page with a product per id.
func listingHTML(ids ...int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<div class="product-item"><a href="/goods.php?id=%d"><h3>Screen Part %d</h3></a><span class="price">€%d,50</span></div>`, id, id, id)
	}
	b.WriteString("</body></html>")
	return b.String()
}

const emptyListing = `<html><body><p>No products in this category.</p></body></html>`
