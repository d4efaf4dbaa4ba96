package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanq16/dlq/internal/downloaders/ghrelease"
	dlqhttp "github.com/tanq16/dlq/internal/downloaders/http"
	"github.com/tanq16/dlq/internal/downloaders/s3"
	"github.com/tanq16/dlq/internal/output"
	"github.com/tanq16/dlq/internal/scheduler"
	"github.com/tanq16/dlq/internal/transport"
	"github.com/tanq16/dlq/internal/utils"
)

type download struct {
	link string
	dest string
}

func newRouter(s settings) *transport.Router {
	client := utils.NewHTTPClient(s.http)
	web := dlqhttp.NewTransport(client)
	return transport.NewRouter().
		Handle(web, "http", "https").
		Handle(s3.NewTransport(s.s3Profile), "s3").
		Handle(ghrelease.NewTransport(client, web), "ghr")
}

// runDownloads submits every download, renders the board until all of them
// finish and reports an error if any did not complete.
func runDownloads(cmd *cobra.Command, downloads []download) error {
	logger := utils.GetLogger("cmd/run")
	s := resolveSettings(cmd)
	mgr := scheduler.NewManager(s.scheduler, newRouter(s))

	live := !noDisplay && output.IsTerminal()
	if live && logFile == "" && !debug {
		utils.QuietConsole()
	}
	board := output.NewManager(os.Stdout, live)
	board.StartDisplay()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	stopCancel := context.AfterFunc(ctx, func() {
		logger.Warn().Msg("interrupted, cancelling downloads")
		mgr.CancelAll()
	})

	for _, d := range downloads {
		if err := submit(ctx, mgr, board, d); err != nil {
			logger.Debug().Err(err).Str("url", d.link).Msg("download not admitted")
			board.ReportError(d.dest, err)
		}
	}
	board.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("manager did not shut down cleanly")
	}
	stopCancel()
	board.StopDisplay()
	board.ShowSummary()

	if n := board.Failures(); n > 0 {
		return fmt.Errorf("%d of %d downloads did not complete", n, len(downloads))
	}
	return nil
}

// submit starts one download. A full queue is waited out until another
// download finishes.
func submit(ctx context.Context, mgr *scheduler.Manager, board *output.Manager, d download) error {
	b, err := mgr.Download(d.link, d.dest)
	if err != nil {
		return err
	}
	for {
		h, err := b.Start()
		if errors.Is(err, scheduler.ErrQueueFull) {
			select {
			case <-board.Finished():
			case <-time.After(time.Second):
			case <-ctx.Done():
				return scheduler.ErrCancelled
			}
			continue
		}
		if err != nil {
			return err
		}
		board.Track(context.Background(), h)
		return nil
	}
}
