package umami

import (
	"context"
	"io"
	"time"

	app "github.com/mohammadpnp/site-import/internal/application/siteimport"
)

type cursor struct {
	createdAt time.Time
	eventID   string
}

type pageFunc func(ctx context.Context, after *cursor, limit int) ([]Record, error)

// stream pages through website events in (created_at, event_id) order. A
// failed page fetch leaves the cursor untouched, so the next call retries
// the same page.
type stream struct {
	fetch    pageFunc
	pageSize int
	buf      []Record
	after    *cursor
	done     bool
	closed   bool
}

func newStream(pageSize int, fetch pageFunc) *stream {
	return &stream{fetch: fetch, pageSize: pageSize}
}

func (s *stream) Next(ctx context.Context) (app.RawRecord, error) {
	if s.closed {
		return nil, io.ErrClosedPipe
	}
	for len(s.buf) == 0 {
		if s.done {
			return nil, io.EOF
		}
		page, err := s.fetch(ctx, s.after, s.pageSize)
		if err != nil {
			return nil, err
		}
		if len(page) < s.pageSize {
			s.done = true
		}
		if len(page) > 0 {
			last := page[len(page)-1]
			s.after = &cursor{createdAt: last.CreatedAt, eventID: last.EventID}
		}
		s.buf = page
	}

	r := s.buf[0]
	s.buf = s.buf[1:]
	return r, nil
}

func (s *stream) Close() error {
	s.closed = true
	s.buf = nil
	return nil
}
