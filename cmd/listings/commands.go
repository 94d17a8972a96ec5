package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/listings-client/pkg/browse"
	"github.com/Sternrassler/listings-client/pkg/cache"
	"github.com/Sternrassler/listings-client/pkg/listing"
	"github.com/Sternrassler/listings-client/pkg/pagination"
	"github.com/spf13/cobra"
)

func scopeFlags(cmd *cobra.Command, sc *scope) {
	cmd.Flags().StringVar(&sc.name, "scope", browse.ScopeCategory, "view: category, offers or owner")
	cmd.Flags().StringVar(&sc.category, "category", listing.CategoryRent, "category for the category scope")
	cmd.Flags().StringVar(&sc.owner, "owner", "", "user id for the owner scope")
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newBrowseCommand(s *settings) *cobra.Command {
	var sc scope
	var height int

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse one view interactively (j/k scroll, G bottom, r retry, d <id> delete, q quit)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			b, err := openBackend(ctx, *s)
			if err != nil {
				return err
			}
			defer b.close()

			sess, err := newSession(ctx, cmd.OutOrStdout(), b, sc, height)
			if err != nil {
				return err
			}
			defer sess.close()

			return sess.run(ctx, cmd.InOrStdin())
		},
	}

	scopeFlags(cmd, &sc)
	cmd.Flags().IntVar(&height, "height", 6, "visible rows")
	return cmd
}

func newExportCommand(s *settings) *cobra.Command {
	var sc scope

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every listing of a view as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			q, err := sc.query()
			if err != nil {
				return err
			}
			b, err := openBackend(ctx, *s)
			if err != nil {
				return err
			}
			defer b.close()

			n, err := export(ctx, cmd.OutOrStdout(), b.source, q)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d listings\n", n)
			return nil
		},
	}

	scopeFlags(cmd, &sc)
	return cmd
}

func export(ctx context.Context, out io.Writer, src pagination.Source[listing.Listing], q pagination.Query) (int, error) {
	enc := json.NewEncoder(out)
	n := 0
	for l, err := range pagination.Walk(ctx, src, q) {
		if err != nil {
			return n, err
		}
		if err := enc.Encode(l); err != nil {
			return n, fmt.Errorf("write listing %s: %w", l.ID, err)
		}
		n++
	}
	return n, nil
}

func newSeedCommand(s *settings) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Store generated sample listings in the configured source",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be >= 1 (got %d)", count)
			}
			if s.source == sourceMemory {
				return fmt.Errorf("the memory source lives only for one command; use --memory-seed instead")
			}

			b, err := openBackend(cmd.Context(), *s)
			if err != nil {
				return err
			}
			defer b.close()

			if b.put == nil {
				return fmt.Errorf("source %q is read-only", s.source)
			}
			if err := b.put(cmd.Context(), listing.Samples(count, time.Now().UTC())); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d listings into %s\n", count, s.source)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 50, "number of listings to generate")
	return cmd
}

// pageInvalidator drops cached pages. *cache.Manager implements it.
type pageInvalidator interface {
	InvalidateScope(ctx context.Context, fingerprint string) (int, error)
	InvalidateAll(ctx context.Context) (int, error)
}

func newPurgeCommand(s *settings) *cobra.Command {
	var (
		sc  scope
		all bool
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Drop cached API pages of one view, or of every view with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.redisURL == "" {
				return fmt.Errorf("--redis-url is required to purge the page cache")
			}
			rc, err := connectRedis(cmd.Context(), s.redisURL)
			if err != nil {
				return err
			}
			defer rc.Close()

			n, err := purge(cmd.Context(), cache.NewManager(rc), sc, all)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d cached pages\n", n)
			return nil
		},
	}

	scopeFlags(cmd, &sc)
	cmd.Flags().BoolVar(&all, "all", false, "purge every view")
	return cmd
}

func purge(ctx context.Context, inv pageInvalidator, sc scope, all bool) (int, error) {
	if all {
		return inv.InvalidateAll(ctx)
	}
	q, err := sc.query()
	if err != nil {
		return 0, err
	}
	return inv.InvalidateScope(ctx, q.Fingerprint())
}
