package scheduler

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tanq16/dlq/internal/transport"
)

// work drives one request to a terminal outcome. It runs while holding a
// concurrency permit.
func (m *Manager) work(req *Request) {
	logger := log.With().Str("op", "scheduler/worker").Str("id", req.id.String()).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("worker panicked")
			removePartial(req.destination)
			req.finish(nil, fmt.Errorf("worker panic: %v", r))
		}
	}()

	if req.ctx.Err() != nil {
		logger.Debug().Msg("cancelled before start")
		req.finish(nil, ErrCancelled)
		return
	}

	var lastErr error
	maxRetries := req.config.MaxRetries
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := m.config.backoff(attempt)
			req.setStatus(Status{State: StateRetrying})
			logger.Warn().Err(lastErr).Int("attempt", attempt).Dur("backoff", delay).Msg("retrying download")
			if !sleep(req, delay) {
				logger.Debug().Msg("cancelled during backoff")
				req.finish(nil, ErrCancelled)
				return
			}
		}

		file, err := m.transfer(req, logger)
		if err == nil {
			logger.Info().Str("path", req.destination).Msg("download completed")
			req.finish(file, nil)
			return
		}
		if !isRetryable(err) {
			if isCancellation(err) {
				logger.Debug().Msg("download cancelled")
			} else {
				logger.Error().Err(err).Msg("download failed")
			}
			req.finish(nil, err)
			return
		}
		lastErr = err
	}

	err := &RetriesExhaustedError{Attempts: maxRetries + 1, LastErr: lastErr}
	logger.Error().Err(err).Msg("download failed")
	req.finish(nil, err)
}

// sleep waits for d and reports false if the request was cancelled first.
func sleep(req *Request, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-req.ctx.Done():
		return false
	}
}

// transfer performs a single attempt. The destination is truncated at the
// start and removed on every failure path.
func (m *Manager) transfer(req *Request, logger zerolog.Logger) (*os.File, error) {
	ctx := req.ctx
	resp, err := m.transport.Get(ctx, req.url, transport.RequestOptions{UserAgent: req.config.UserAgent})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		logger.Debug().Err(err).Msg("request failed")
		return nil, err
	}
	defer resp.Close()

	if dir := filepath.Dir(req.destination); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("error creating destination directory: %w", err)
		}
	}
	file, err := os.OpenFile(req.destination, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("error creating output file: %w", err)
	}

	progress := NewProgress(resp.ContentLength())
	gate := req.newProgressGate()
	req.setStatus(inProgress(progress))

	var downloaded int64
	for {
		select {
		case <-ctx.Done():
			return nil, discard(file, req.destination, ErrCancelled)
		default:
		}
		chunk, err := resp.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				err = ErrCancelled
			}
			return nil, discard(file, req.destination, err)
		}
		if _, err := file.Write(chunk); err != nil {
			return nil, discard(file, req.destination, fmt.Errorf("error writing to output file: %w", err))
		}
		downloaded += int64(len(chunk))
		progress = progress.Update(downloaded)
		gate.do(func() { req.setStatus(inProgress(progress)) })
	}
	req.setStatus(inProgress(progress))

	if err := file.Sync(); err != nil {
		return nil, discard(file, req.destination, fmt.Errorf("error flushing output file: %w", err))
	}
	if err := file.Close(); err != nil {
		removePartial(req.destination)
		return nil, fmt.Errorf("error closing output file: %w", err)
	}
	ro, err := os.Open(req.destination)
	if err != nil {
		removePartial(req.destination)
		return nil, fmt.Errorf("error reopening output file: %w", err)
	}
	logger.Debug().Int64("bytes", downloaded).Msg("attempt finished")
	return ro, nil
}

// discard closes and removes a partial file. A failed removal replaces cause.
func discard(file *os.File, path string, cause error) error {
	file.Close()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error removing partial file: %w", err)
	}
	return cause
}

func removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("op", "scheduler/worker").Err(err).Str("path", path).Msg("cannot remove partial file")
	}
}
