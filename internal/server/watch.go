package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/leapstack-labs/leaplineage/internal/service"
)

// debounceDelay collapses bursts of file events into one rebuild.
const debounceDelay = 200 * time.Millisecond

// watchFiles rebuilds the graph when a results file is written, created,
// removed or renamed.
func (s *Server) watchFiles(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.watchDir); err != nil {
		s.logger.Error("failed to watch results directory",
			slog.String("dir", s.watchDir), slog.String("error", err.Error()))
		// keep serving without watching
		s.svc.SetLive(s.schedule != "")
		<-ctx.Done()
		return nil
	}
	s.logger.Debug("watching results directory", slog.String("dir", s.watchDir))

	var (
		mu            sync.Mutex
		debounceTimer *time.Timer
	)
	defer func() {
		mu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isResultsEvent(event) {
				continue
			}

			mu.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				if ctx.Err() != nil {
					return
				}
				s.logger.Debug("results changed, rebuilding", slog.String("file", event.Name))
				if _, err := s.svc.Build(ctx); err != nil {
					s.logger.Error("rebuild failed", slog.String("error", err.Error()))
				}
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

func isResultsEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return strings.EqualFold(filepath.Ext(event.Name), ".csv")
}

// scheduler rebuilds the graph on a cron schedule, for sources that cannot be watched.
type scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	spec   string
}

func newScheduler(svc *service.Service, spec string, logger *slog.Logger) (*scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := svc.Build(context.Background()); err != nil {
			logger.Warn("scheduled rebuild failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &scheduler{cron: c, logger: logger, spec: spec}, nil
}

func (s *scheduler) Start() {
	s.cron.Start()
	s.logger.Info("rebuild scheduler started", slog.String("schedule", s.spec))
}

func (s *scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("rebuild scheduler stopped")
}
