package scraper

import (
	"github.com/aluiziolira/go-scrape-jobs/models"
)

// EventKind tags an orchestrator event.
type EventKind int

const (
	// EventProgress reports a completed (site, query) unit.
	EventProgress EventKind = iota
	// EventJob carries one extracted listing.
	EventJob
	// EventError reports a non-fatal failure of one unit.
	EventError
	// EventFinished is always the last event and carries the run result.
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventJob:
		return "job"
	case EventError:
		return "error"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Event is a message on the orchestrator stream. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	Site     string
	Query    string
	Progress models.CrawlProgress
	Job      *models.JobListing
	Err      error
	Result   *models.CrawlResult
}

// State is the lifecycle position of an orchestrator.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}
