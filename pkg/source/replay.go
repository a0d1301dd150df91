package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dkoosis/mdreport/internal/detect"
	"github.com/dkoosis/mdreport/pkg/report"
	"github.com/dkoosis/mdreport/pkg/testjson"
)

// ErrUnknownFormat is returned when the input format cannot be determined.
var ErrUnknownFormat = errors.New("unrecognized input format (expected pytest-reportlog or go test -json)")

// sniffSize is how much input is peeked to detect the format.
const sniffSize = 4096

// Stats describes a finished replay.
type Stats struct {
	Format    detect.Format
	Events    int
	Malformed int
}

// Replay reads a recorded session from r and drives l through it: one
// SessionStart, the phase results in order, one SessionFinish. An Unknown
// format is sniffed from the first line. Malformed lines are counted and
// skipped. The session is finished even when reading stops early; the read
// error, else the first listener error, is returned.
func Replay(ctx context.Context, r io.Reader, format detect.Format, l report.Listener, logger *slog.Logger) (Stats, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, sniffSize*2)
	}
	if format == detect.Unknown {
		format = detect.Sniff(peekLine(br))
	}
	stats := Stats{Format: format}
	logger.Debug("replaying session", "format", format.String())

	// Close the caller's reader on cancel, bufio.Reader cannot be closed.
	if c, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()
	}

	var err error
	switch format {
	case detect.ReportLog:
		err = replayReportLog(ctx, br, l, &stats)
	case detect.GoTestJSON:
		err = replayGoTest(ctx, br, l, &stats)
	default:
		return stats, ErrUnknownFormat
	}
	if stats.Malformed > 0 {
		logger.Warn("malformed lines skipped", "count", stats.Malformed)
	}
	return stats, err
}

// peekLine returns the buffered input up to and including the first newline
// without consuming it. It never waits for more than one line so live pipes
// are not held back.
func peekLine(br *bufio.Reader) []byte {
	n := 1
	for {
		_, err := br.Peek(n)
		b, _ := br.Peek(br.Buffered())
		if err != nil || bytes.IndexByte(b, '\n') >= 0 || len(b) >= sniffSize {
			return b
		}
		n = len(b) + 1
	}
}

// session makes sure the listener sees exactly one start and one finish.
type session struct {
	l        report.Listener
	started  bool
	finished bool
	err      error
}

func (s *session) start(collected int) {
	if !s.started {
		s.started = true
		s.l.SessionStart(collected)
	}
}

func (s *session) log(r report.PhaseResult) {
	s.start(0)
	s.keep(s.l.LogReport(r))
}

func (s *session) finish() {
	s.start(0)
	if !s.finished {
		s.finished = true
		s.keep(s.l.SessionFinish())
	}
}

func (s *session) keep(err error) {
	if err != nil && s.err == nil {
		s.err = err
	}
}

func replayReportLog(ctx context.Context, r io.Reader, l report.Listener, stats *Stats) error {
	s := &session{l: l}
	adder, _ := l.(report.CollectedAdder)

	malformed, err := testjson.Lines(ctx, r, func(line []byte) bool {
		e, err := DecodeEntry(line)
		if err != nil {
			return false
		}
		stats.Events++
		switch e.Type {
		case TypeSessionStart:
			s.start(0)
		case TypeCollectReport:
			s.start(0)
			if e.Outcome == string(report.OutcomeFailed) {
				for _, r := range e.CollectError() {
					s.log(r)
				}
				return true
			}
			if n := e.Leaves(); n > 0 && adder != nil {
				adder.AddCollected(n)
			}
		case TypeTestReport:
			s.log(e.PhaseResult())
		case TypeSessionFinish:
			s.finish()
		}
		return true
	})
	stats.Malformed = malformed
	// An interrupted session still finishes so a partial report is written.
	s.finish()
	if err != nil {
		return fmt.Errorf("read reportlog: %w", err)
	}
	return s.err
}

func replayGoTest(ctx context.Context, r io.Reader, l report.Listener, stats *Stats) error {
	s := &session{l: l}
	s.start(0)
	tr := testjson.NewTranslator(l)

	malformed, err := testjson.Stream(ctx, r, func(e testjson.TestEvent) {
		stats.Events++
		tr.Handle(e)
	})
	stats.Malformed = malformed
	s.keep(tr.Err())
	s.finish()
	if err != nil {
		return fmt.Errorf("read go test -json: %w", err)
	}
	return s.err
}
