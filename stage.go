package noirgraph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/soundprediction/noirgraph/pkg/driver"
	"github.com/soundprediction/noirgraph/pkg/report"
)

// Stage names.
const (
	StageLoad       = "load"
	StageExtraction = "extraction"
	StageResolution = "resolution"
)

var (
	// ErrNoDocument is returned by stage calls made before a document is loaded.
	ErrNoDocument = errors.New("no document loaded")
	// ErrStageNotStarted is returned by do_* calls made before start_*.
	ErrStageNotStarted = errors.New("stage not started")
	// ErrUnknownChunk is returned for a chunk that does not belong to the
	// loaded document.
	ErrUnknownChunk = errors.New("chunk does not belong to the loaded document")
)

// StageError is a failure inside a stage. Fatal errors abort the stage;
// the others are recorded and the stage moves on to the next chunk.
type StageError struct {
	Stage      string
	ChunkIndex int
	Err        error
	Fatal      bool
}

func (e *StageError) Error() string {
	kind := "failed"
	if e.Fatal {
		kind = "aborted"
	}
	if e.ChunkIndex < 0 {
		return fmt.Sprintf("%s %s: %v", e.Stage, kind, e.Err)
	}
	return fmt.Sprintf("%s %s at chunk %d: %v", e.Stage, kind, e.ChunkIndex, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err aborts a stage.
func IsFatal(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Fatal
	}
	return isFatalCause(err)
}

// isFatalCause lists the failures after which downstream linking would be
// unreliable.
func isFatalCause(err error) bool {
	return errors.Is(err, ErrCountersCorrupted) ||
		errors.Is(err, driver.ErrSchemaMissing) ||
		errors.Is(err, driver.ErrDimensionMismatch)
}

func stageError(stage string, chunkIndex int, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return &StageError{Stage: stage, ChunkIndex: chunkIndex, Err: err, Fatal: isFatalCause(err)}
}

// StageResult is what a stage or diagnostic reports to its caller: a flag, a
// one line message and a Markdown report.
type StageResult struct {
	OK      bool         `json:"ok"`
	Message string       `json:"message"`
	Report  string       `json:"report"`
	Errors  []StageError `json:"-"`
	// Chunks counts the chunks that completed.
	Chunks int `json:"chunks"`
	// Items counts the statements or entities produced.
	Items int `json:"items"`
}

// stageReport summarizes a run over chunks.
func stageReport(stage string, total, items int, errs map[int]error) StageResult {
	failed := 0
	for i := range errs {
		if i >= 0 {
			failed++
		}
	}
	res := StageResult{Chunks: max(total-failed, 0), Items: items}

	indexes := make([]int, 0, len(errs))
	for i := range errs {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	var fatal *StageError
	details := make([]string, 0, len(indexes))
	for _, i := range indexes {
		se := stageError(stage, i, errs[i])
		res.Errors = append(res.Errors, *se)
		if se.Fatal && fatal == nil {
			fatal = se
		}
		if i < 0 {
			details = append(details, "Stage: "+report.Code(se.Err.Error()))
			continue
		}
		details = append(details, fmt.Sprintf("Chunk %d: %s", i, report.Code(se.Err.Error())))
	}

	title := strings.ToUpper(stage[:1]) + stage[1:]
	switch {
	case fatal != nil:
		res.Message = fmt.Sprintf("%s aborted: %v", title, fatal.Err)
		res.Report = report.Markdown(
			title+" aborted",
			abortedAt(stage, fatal.ChunkIndex, res.Chunks, total),
			[]string{
				"The graph schema is missing a required constraint or index.",
				"The embedding model returns vectors of a different size than the vector indexes.",
				"The saved ID counters do not match the loaded document.",
			},
			[]string{
				"Run `noirgraph schema` to create constraints and indexes.",
				"Check `embedding.model` and `embedding.dimensions` against the index dimensions.",
				"Reload the document to reset the counters, then re-run the stage.",
			},
			details,
		)
	case len(errs) > 0:
		res.Message = fmt.Sprintf("%s finished with %d failed chunks", title, failed)
		res.Report = report.Markdown(
			title+" finished with errors",
			fmt.Sprintf("%d of %d chunks failed; %d items were stored.", failed, total, items),
			[]string{
				"The language model or embedding endpoint timed out or rate limited the request.",
				"The graph database was briefly unreachable.",
			},
			[]string{
				"Re-run the stage; stored chunks are upserted again without duplicates.",
				"Lower `pipeline.concurrency` or raise `nlp.timeout`.",
			},
			details,
		)
	default:
		res.OK = true
		res.Message = fmt.Sprintf("%s finished: %d chunks, %d items", title, total, items)
		res.Report = report.Markdown(
			title+" finished",
			"Nothing went wrong.",
			nil, nil,
			[]string{fmt.Sprintf("Chunks: %d", total), fmt.Sprintf("Items: %d", items)},
		)
	}
	return res
}

func abortedAt(stage string, chunkIndex, completed, total int) string {
	if chunkIndex < 0 {
		return fmt.Sprintf("The %s stage could not start.", stage)
	}
	return fmt.Sprintf("The %s stage stopped at chunk %d after %d of %d chunks.", stage, chunkIndex, completed, total)
}
