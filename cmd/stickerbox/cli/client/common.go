package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mwantia/stickerbox/internal/agent"
	"github.com/mwantia/stickerbox/internal/config"
	"github.com/mwantia/stickerbox/internal/library"
	"github.com/mwantia/stickerbox/pkg/db/models"
	"github.com/spf13/cobra"
)

// withAgent opens the library for the duration of fn. Interrupts cancel the
// context handed to fn.
func withAgent(cmd *cobra.Command, fn func(ctx context.Context, a *agent.StickerAgent) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	a := agent.NewAgent(cfg)
	if err := a.Open(ctx); err != nil {
		return err
	}
	defer a.Close(context.Background())

	return fn(ctx, a)
}

func withLibrary(cmd *cobra.Command, fn func(ctx context.Context, lib *library.Library) error) error {
	return withAgent(cmd, func(ctx context.Context, a *agent.StickerAgent) error {
		return fn(ctx, a.Library())
	})
}

type listFormat struct {
	long  bool
	human bool
}

func printStickers(w io.Writer, stickers []*models.Sticker, f listFormat) error {
	if !f.long {
		for _, s := range stickers {
			fmt.Fprintf(w, "%s  %s\n", s.ID, s.Filename)
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILENAME\tSIZE\tDIMENSIONS\tFLAGS\tCREATED\tTAGS")
	for _, s := range stickers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%dx%d\t%s\t%s\t%s\n",
			s.ID, s.Filename, formatSize(s.FileSize, f.human), s.Width, s.Height,
			flags(s), formatTime(s.CreatedAt, f.human), strings.Join(s.Tags, ","))
	}
	return tw.Flush()
}

func printSticker(w io.Writer, s *models.Sticker) {
	fmt.Fprintf(w, "%s  %s  [%s]  %s\n", s.ID, s.Filename, strings.Join(s.Tags, ","), flags(s))
}

func flags(s *models.Sticker) string {
	out := []byte("--")
	if s.IsPinned {
		out[0] = 'P'
	}
	if s.IsFavorite {
		out[1] = 'F'
	}
	return string(out)
}

func formatSize(size int64, human bool) string {
	if human {
		return humanize.Bytes(uint64(size))
	}
	return fmt.Sprint(size)
}

func formatTime(unix int64, human bool) string {
	t := time.Unix(unix, 0)
	if human {
		return humanize.Time(t)
	}
	return t.Format(time.DateTime)
}

func printImportResult(w io.Writer, result *library.ImportResult) {
	for _, s := range result.Stickers {
		printSticker(w, s)
	}
	fmt.Fprintf(w, "Imported %d, failed %d, skipped %d\n", len(result.Stickers), result.Failed, result.Skipped)
	if result.HasGIF {
		fmt.Fprintln(w, "Note: animated GIFs keep only their first frame")
	}
	for _, err := range result.Errors {
		fmt.Fprintf(w, "  %v\n", err)
	}
}
