package pipeline

import (
	"errors"
	"log/slog"

	"github.com/aluiziolira/go-scrape-jobs/models"
	"github.com/aluiziolira/go-scrape-jobs/scraper"
)

// ErrNoResult is returned by Consume when the event stream closes without a finished event.
var ErrNoResult = errors.New("pipeline: event stream ended without a result")

// Consume drains an orchestrator event stream: listings are processed, unit errors are logged and
// the finished event's result is returned. It reads until the channel is closed.
func (p *Pipeline) Consume(events <-chan scraper.Event) (*models.CrawlResult, error) {
	var result *models.CrawlResult
	for ev := range events {
		switch ev.Kind {
		case scraper.EventJob:
			if err := p.Process(ev.Job); err != nil && !errors.Is(err, ErrPipelineClosed) {
				p.logger.Error("pipeline process error",
					slog.String("site", ev.Site),
					slog.Any("error", err),
				)
			}
		case scraper.EventError:
			p.logger.Warn("crawl unit error",
				slog.String("site", ev.Site),
				slog.String("query", ev.Query),
				slog.Any("error", ev.Err),
			)
		case scraper.EventProgress:
			p.logger.Debug("crawl progress",
				slog.Int("completed", ev.Progress.Completed),
				slog.Int("total", ev.Progress.Total),
				slog.Int("percent", ev.Progress.Percent()),
			)
		case scraper.EventFinished:
			result = ev.Result
		}
	}
	if result == nil {
		return nil, ErrNoResult
	}
	return result, nil
}
