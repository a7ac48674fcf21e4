// Package pipeline runs a screening submission as a lazily consumed stream of
// progress and result events.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TechFutureAIFPT/hr-support/internal/analysis"
	"github.com/TechFutureAIFPT/hr-support/internal/extract"
	"github.com/TechFutureAIFPT/hr-support/internal/llm"
	"github.com/TechFutureAIFPT/hr-support/internal/logger"
	"github.com/TechFutureAIFPT/hr-support/internal/scoring"
	"github.com/TechFutureAIFPT/hr-support/internal/utils"
)

type EventKind string

const (
	EventProgress EventKind = "progress"
	EventResult   EventKind = "result"
)

// Event is either a progress message or one candidate record.
type Event struct {
	Kind      EventKind  `json:"type"`
	Message   string     `json:"message,omitempty"`
	Candidate *Candidate `json:"candidate,omitempty"`
}

// Extractor turns a file into text; *extract.Engine implements it.
type Extractor interface {
	Extract(ctx context.Context, f extract.File, progress extract.ProgressFunc) (*extract.Result, error)
}

// Input is one submission.
type Input struct {
	JobDescription string
	Scoring        scoring.Config
	Files          []extract.File
	// Language the model should answer in; empty selects the default.
	Language string
}

type Deps struct {
	Extractor Extractor
	Submitter analysis.Submitter
	Logger    *zap.Logger
}

type Controller struct {
	extractor Extractor
	submitter analysis.Submitter
	logger    *zap.Logger
}

func New(deps Deps) *Controller {
	return &Controller{
		extractor: deps.Extractor,
		submitter: deps.Submitter,
		logger:    logger.Named(deps.Logger, "pipeline"),
	}
}

// Stream delivers the events of one run. Events are produced only as fast as
// they are consumed. Err is valid once Events is closed.
type Stream struct {
	events chan Event
	cancel context.CancelFunc
	err    error
}

func (s *Stream) Events() <-chan Event {
	return s.events
}

// Err returns the terminal error of the run, nil on success. It must only be
// called after the events channel is closed.
func (s *Stream) Err() error {
	return s.err
}

// Close abandons the run and waits for the producer to stop.
func (s *Stream) Close() {
	s.cancel()
	for range s.events {
	}
}

// Collect drains the stream, forwarding progress messages to progress, and
// returns every record in delivery order.
func (s *Stream) Collect(progress func(string)) ([]Candidate, error) {
	var out []Candidate
	for ev := range s.events {
		switch ev.Kind {
		case EventProgress:
			if progress != nil {
				progress(ev.Message)
			}
		case EventResult:
			out = append(out, *ev.Candidate)
		}
	}
	return out, s.err
}

// Run starts processing in. Files are extracted sequentially; a file that
// fails yields a FAILED record and processing continues. The remaining texts
// are submitted in one request and the ordered records are emitted. A failed
// submission or an unparsable answer ends the stream with that error.
func (c *Controller) Run(ctx context.Context, in Input) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{events: make(chan Event), cancel: cancel}

	go func() {
		defer close(s.events)
		defer cancel()
		s.err = c.run(ctx, in, func(ev Event) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case s.events <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	return s
}

func progress(message string) Event {
	return Event{Kind: EventProgress, Message: message}
}

func result(c Candidate) Event {
	return Event{Kind: EventResult, Candidate: &c}
}

func (c *Controller) run(ctx context.Context, in Input, emit func(Event) error) error {
	started := time.Now()
	total := len(in.Files)
	documents := make([]llm.Part, 0, total)

	for i, f := range in.Files {
		if err := emit(progress(fmt.Sprintf("processing file %d/%d: %s", i+1, total, f.Name))); err != nil {
			return err
		}

		res, err := c.extractor.Extract(ctx, f, func(message string) {
			_ = emit(progress(f.Name + ": " + message))
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			c.logger.Warn("could not read file", zap.String(logger.FieldFile, f.Name), zap.Error(err))
			if err := emit(result(failedRecord(f.Name, err))); err != nil {
				return err
			}
			continue
		}

		for _, w := range res.Warnings {
			c.logger.Warn("extraction warning", zap.String(logger.FieldFile, f.Name), zap.String("warning", w))
		}
		documents = append(documents, analysis.DocumentPart(f.Name, res.Text))
	}

	if len(documents) == 0 {
		c.logger.Info("nothing to submit", zap.Int("files", total))
		return nil
	}

	if err := emit(progress("all files processed, submitting to the model")); err != nil {
		return err
	}

	req := analysis.Request(in.JobDescription, in.Scoring, in.Language, documents)
	raw, err := c.submitter.Submit(ctx, req)
	if err != nil {
		return fmt.Errorf("submitting %d documents: %w", len(documents), err)
	}

	if err := emit(progress("model responded, finalizing")); err != nil {
		return err
	}

	candidates, err := Parse(raw)
	if err != nil {
		c.logger.Error("unparsable model response",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(raw, 500)),
		)
		return err
	}

	Order(candidates)

	for _, candidate := range candidates {
		if err := emit(result(candidate)); err != nil {
			return err
		}
	}

	c.logger.Info("run finished",
		zap.Int("files", total),
		zap.Int("submitted", len(documents)),
		zap.Int("candidates", len(candidates)),
		zap.Duration("duration", time.Since(started)),
	)
	return nil
}

func failedRecord(fileName string, err error) Candidate {
	return Candidate{
		ID:            failedIdentity(fileName),
		Status:        StatusFailed,
		Error:         "could not read the file, check its format and content: " + err.Error(),
		CandidateName: "File processing error",
		FileName:      fileName,
	}
}
