package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/Sternrassler/listings-client/pkg/browse"
	"github.com/Sternrassler/listings-client/pkg/listing"
	"github.com/Sternrassler/listings-client/pkg/loader"
	"github.com/Sternrassler/listings-client/pkg/viewport"
)

// session is a terminal browsing view. Each listing takes one row; the
// sentinel row sits right below the last one, and the viewport shows height
// rows starting at offset.
type session struct {
	out     io.Writer
	height  int
	deleter browse.Deleter

	observer *viewport.Observer
	binding  *viewport.Binding
	loader   *loader.Loader[listing.Listing]

	mu     sync.Mutex
	offset int
	rows   int
}

// newSession builds the loader for sc and binds it to a fresh observer.
func newSession(ctx context.Context, out io.Writer, b *backend, sc scope, height int) (*session, error) {
	if height < 1 {
		return nil, fmt.Errorf("height must be >= 1 (got %d)", height)
	}
	s := &session{
		out:      out,
		height:   height,
		deleter:  b.deleter,
		observer: viewport.NewObserver(viewport.DefaultThreshold),
	}

	opts := browse.Options{
		Context:  ctx,
		OnChange: s.onChange,
		OnError: func(err error) {
			fmt.Fprintf(out, "! %v (press r to retry)\n", err)
		},
	}

	var err error
	switch sc.name {
	case browse.ScopeCategory:
		s.loader, err = browse.NewCategory(b.source, sc.category, opts)
	case browse.ScopeOffers:
		s.loader, err = browse.NewOffers(b.source, opts)
	case browse.ScopeOwner:
		s.loader, err = browse.NewOwner(b.source, sc.owner, opts)
	default:
		_, err = sc.query()
	}
	if err != nil {
		return nil, err
	}

	s.binding, err = viewport.Bind(ctx, s.observer, s.loader)
	if err != nil {
		s.loader.Close()
		return nil, err
	}
	return s, nil
}

// start reports the initial geometry; with nothing loaded the sentinel is
// on screen and the first page is requested.
func (s *session) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layoutLocked()
}

func (s *session) close() {
	s.binding.Close()
	s.loader.Close()
	s.observer.Close()
}

func (s *session) onChange(snap loader.Snapshot[listing.Listing]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = len(snap.Items)
	s.clampLocked()
	s.layoutLocked()
	s.renderLocked(snap)
}

// layoutLocked reports viewport and sentinel geometry to the observer. The
// binding delivers inline, so the loader knows whether the sentinel is still
// visible before it decides on a follow-up page.
func (s *session) layoutLocked() {
	view := viewport.Rect{X: 0, Y: float64(s.offset), W: 1, H: float64(s.height)}
	sentinel := viewport.Rect{X: 0, Y: float64(s.rows), W: 1, H: 1}
	s.observer.Update(view, sentinel)
}

func (s *session) clampLocked() {
	limit := max(0, s.rows+1-s.height)
	s.offset = min(max(s.offset, 0), limit)
}

func (s *session) scroll(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset += delta
	s.clampLocked()
	s.layoutLocked()
	s.renderLocked(s.loader.Snapshot())
}

func (s *session) bottom() {
	s.scroll(1 << 30)
}

func (s *session) renderLocked(snap loader.Snapshot[listing.Listing]) {
	var b strings.Builder
	end := min(s.offset+s.height, len(snap.Items)+1)
	for i := s.offset; i < end; i++ {
		if i == len(snap.Items) {
			fmt.Fprintf(&b, "  -- %s --\n", snap.Footer())
			continue
		}
		l := snap.Items[i]
		fmt.Fprintf(&b, "%3d %-36s %-4s %-28s %10d\n", i+1, l.ID, l.Type, l.Name, l.Price())
	}
	fmt.Fprintf(&b, "[%d loaded, rows %d-%d, %s]\n", len(snap.Items), s.offset+1, end, snap.State)
	io.WriteString(s.out, b.String())
}

// run reads commands until q or EOF.
func (s *session) run(ctx context.Context, in io.Reader) error {
	s.start()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "q":
			return nil
		case "j", "k":
			n := 1
			if len(fields) > 1 {
				if v, err := strconv.Atoi(fields[1]); err == nil {
					n = v
				}
			}
			if fields[0] == "k" {
				n = -n
			}
			s.scroll(n)
		case "G":
			s.bottom()
		case "r":
			err := s.loader.FetchNextPage(ctx)
			// Source failures are already reported through OnError.
			if err != nil && !errors.Is(err, loader.ErrFetchInFlight) && !errors.Is(err, loader.ErrSourceUnavailable) {
				fmt.Fprintf(s.out, "! %v\n", err)
			}
		case "d":
			if len(fields) < 2 {
				fmt.Fprintln(s.out, "! usage: d <id>")
				continue
			}
			if s.loader.Query().Filter.Field != listing.FieldUserID {
				fmt.Fprintln(s.out, "! delete is only available in the owner scope")
				continue
			}
			if err := browse.DeleteOwned(ctx, s.deleter, s.loader, fields[1]); err != nil {
				fmt.Fprintf(s.out, "! %v\n", err)
			}
		default:
			fmt.Fprintln(s.out, "! commands: j [n], k [n], G, r, d <id>, q")
		}
	}
	return scanner.Err()
}
