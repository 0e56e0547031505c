package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"transcript-insights/pkg/analysis"
)

// URLAnalyzer is the part of the analysis service the runner needs.
type URLAnalyzer interface {
	AnalyzeURL(ctx context.Context, pageURL string) (analysis.Outcome, error)
}

// Report is the outcome of analyzing one episode.
type Report struct {
	Episode Episode
	Outcome analysis.Outcome
	Err     error
}

// Summary aggregates a batch run.
type Summary struct {
	Succeeded int
	Cached    int
	NotFound  int
	Failed    int
}

// Runner analyzes episodes with a fixed number of workers. Each worker holds
// at most one browser session at a time.
type Runner struct {
	workerCount int
	analyzer    URLAnalyzer
	logger      *slog.Logger
}

// NewRunner creates a runner. workerCount < 1 is treated as 1.
func NewRunner(workerCount int, analyzer URLAnalyzer, logger *slog.Logger) *Runner {
	if workerCount < 1 {
		workerCount = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{workerCount: workerCount, analyzer: analyzer, logger: logger}
}

// Run analyzes every episode and returns one report per episode in input
// order. It fails only when every episode failed for a reason other than a
// missing transcript.
func (r *Runner) Run(ctx context.Context, episodes []Episode) ([]Report, Summary, error) {
	type job struct {
		index   int
		episode Episode
	}

	jobChan := make(chan job, len(episodes))
	for i, ep := range episodes {
		jobChan <- job{index: i, episode: ep}
	}
	close(jobChan)

	reports := make([]Report, len(episodes))

	var wg sync.WaitGroup
	for i := 0; i < r.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := range jobChan {
				if ctx.Err() != nil {
					reports[j.index] = Report{Episode: j.episode, Err: ctx.Err()}
					continue
				}
				out, err := r.analyzer.AnalyzeURL(ctx, j.episode.URL)
				reports[j.index] = Report{Episode: j.episode, Outcome: out, Err: err}
				if err != nil {
					r.logger.Warn("[Feed] Episode failed",
						slog.Int("worker", workerID),
						slog.String("url", j.episode.URL),
						slog.String("error", err.Error()))
				}
			}
		}(i)
	}
	wg.Wait()

	var sum Summary
	for _, rep := range reports {
		switch {
		case rep.Err == nil:
			sum.Succeeded++
			if rep.Outcome.Hit {
				sum.Cached++
			}
		case isNotFound(rep.Err):
			sum.NotFound++
		default:
			sum.Failed++
		}
	}

	r.logger.Info("[Feed] Completed",
		slog.Int("succeeded", sum.Succeeded),
		slog.Int("cached", sum.Cached),
		slog.Int("not_found", sum.NotFound),
		slog.Int("failed", sum.Failed),
		slog.Int("total", len(episodes)))

	if sum.Failed > 0 && sum.Succeeded == 0 && sum.NotFound == 0 {
		return reports, sum, fmt.Errorf("all %d episodes failed", sum.Failed)
	}
	return reports, sum, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, analysis.ErrTranscriptNotFound)
}
