// Package search implements the plain and ranked search backends and the
// dispatcher that fans a query out across corpus roots.
package search

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/starford/kvault/internal/apperr"
)

const ripgrepBin = "rg"

const installHint = `ripgrep not found

Install ripgrep:
  brew install ripgrep    # macOS
  cargo install ripgrep   # any platform
  apt install ripgrep     # Debian/Ubuntu`

// LineQuery is a literal substring search over a fixed set of files.
type LineQuery struct {
	Pattern       string
	Files         []string
	CaseSensitive bool
}

// RawMatch is one matching line. Line is 1-based; Text has no trailing
// newline.
type RawMatch struct {
	File string
	Line int
	Text string
}

// LineSearcher finds lines containing a literal pattern. When some files
// cannot be read, Search returns the matches from the others together with
// a *PartialError.
type LineSearcher interface {
	Search(ctx context.Context, q LineQuery) ([]RawMatch, error)
}

// PartialError lists the files that could not be searched while the rest
// of the search went through.
type PartialError struct {
	Errs []error
}

func (e *PartialError) Error() string {
	return errors.Join(e.Errs...).Error()
}

func (e *PartialError) Unwrap() []error {
	return e.Errs
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, exitCode int, err error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if err != nil {
		return nil, nil, -1, err
	}
	return stdout.Bytes(), stderr.Bytes(), 0, nil
}

// Ripgrep is a LineSearcher that runs the rg binary.
type Ripgrep struct {
	exec executor
}

var _ LineSearcher = (*Ripgrep)(nil)

// NewRipgrep returns a LineSearcher backed by rg on PATH.
func NewRipgrep() *Ripgrep {
	return &Ripgrep{exec: osExecutor{}}
}

// Available reports an apperr.ErrBackendUnavailable error with install
// guidance when rg cannot be run.
func (r *Ripgrep) Available(ctx context.Context) error {
	if _, err := r.exec.LookPath(ripgrepBin); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrBackendUnavailable, installHint)
	}
	if _, _, code, err := r.exec.Run(ctx, ripgrepBin, "--version"); err != nil || code != 0 {
		return fmt.Errorf("%w: %s", apperr.ErrBackendUnavailable, installHint)
	}
	return nil
}

// Search runs rg over q.Files. Only the listed files are searched. Files rg
// could not read are reported in a *PartialError next to the matches.
func (r *Ripgrep) Search(ctx context.Context, q LineQuery) ([]RawMatch, error) {
	if len(q.Files) == 0 || q.Pattern == "" {
		return []RawMatch{}, nil
	}
	if err := r.Available(ctx); err != nil {
		return nil, err
	}

	matches := []RawMatch{}
	var unreadable []error
	for start := 0; start < len(q.Files); start += maxFilesPerCall {
		batch := q.Files[start:min(start+maxFilesPerCall, len(q.Files))]
		found, failed, err := r.run(ctx, q, batch)
		if err != nil {
			return nil, err
		}
		matches = append(matches, found...)
		unreadable = append(unreadable, failed...)
	}
	if len(unreadable) > 0 {
		return matches, &PartialError{Errs: unreadable}
	}
	return matches, nil
}

// maxFilesPerCall keeps the argument list well under ARG_MAX.
const maxFilesPerCall = 512

// run searches one batch. Exit code 2 means rg hit an error on some file;
// the matches it printed are kept and each failure on stderr becomes an
// apperr.ErrIO error for that file.
func (r *Ripgrep) run(ctx context.Context, q LineQuery, files []string) ([]RawMatch, []error, error) {
	args := []string{"--json", "--fixed-strings", "--no-config"}
	if !q.CaseSensitive {
		args = append(args, "--ignore-case")
	}
	args = append(args, "--", q.Pattern)
	args = append(args, files...)

	out, stderr, code, err := r.exec.Run(ctx, ripgrepBin, args...)
	switch {
	case code == 1:
		// No matches.
		return nil, nil, nil
	case code == 2:
		matches, perr := parseRipgrepJSON(out)
		if perr != nil {
			return nil, nil, perr
		}
		return matches, parseRipgrepErrors(stderr), nil
	case err != nil:
		return nil, nil, fmt.Errorf("search: ripgrep: %w", err)
	}
	matches, err := parseRipgrepJSON(out)
	return matches, nil, err
}

// parseRipgrepErrors turns rg's "rg: <path>: <reason>" stderr lines into
// per-file IO errors. Lines that name no file are kept whole.
func parseRipgrepErrors(stderr []byte) []error {
	var errs []error
	for _, line := range strings.Split(string(stderr), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "rg: "))
		if line == "" {
			continue
		}
		if i := strings.LastIndex(line, ": "); i > 0 {
			errs = append(errs, apperr.IO("search", line[:i], errors.New(line[i+2:])))
			continue
		}
		errs = append(errs, fmt.Errorf("%w: ripgrep: %s", apperr.ErrIO, line))
	}
	if len(errs) == 0 {
		errs = append(errs, fmt.Errorf("%w: ripgrep reported unreadable files", apperr.ErrIO))
	}
	return errs
}

type rgText struct {
	Text string `json:"text"`
}

type rgMessage struct {
	Type string `json:"type"`
	Data struct {
		Path       rgText `json:"path"`
		Lines      rgText `json:"lines"`
		LineNumber int    `json:"line_number"`
	} `json:"data"`
}

// parseRipgrepJSON extracts match messages from rg --json output.
func parseRipgrepJSON(out []byte) ([]RawMatch, error) {
	matches := []RawMatch{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg rgMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, fmt.Errorf("search: decode ripgrep output: %w", err)
		}
		if msg.Type != "match" || msg.Data.Path.Text == "" {
			continue
		}
		matches = append(matches, RawMatch{
			File: msg.Data.Path.Text,
			Line: msg.Data.LineNumber,
			Text: strings.TrimRight(msg.Data.Lines.Text, "\r\n"),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("search: read ripgrep output: %w", err)
	}
	return matches, nil
}
