package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ubuntu/decorate"
	"github.com/ubuntu/mail-reports-collector/internal/fileutils"
	"github.com/ubuntu/mail-reports-collector/internal/report"
)

const (
	dirPerm  os.FileMode = 0750
	filePerm os.FileMode = 0640
)

// FileSink stores reports as files in a single flat directory.
//
// The directory is append only: files are only ever created, never listed, rewritten or removed.
type FileSink struct {
	dir   string
	namer *Namer
	log   *slog.Logger
}

// NewFileSink creates a FileSink writing to dir, creating the directory if needed.
func NewFileSink(dir string, namer *Namer, args ...Options) (s *FileSink, err error) {
	defer decorate.OnError(&err, "could not create file storage")

	opts := newOptions(args...)

	dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, err
	}

	return &FileSink{
		dir:   dir,
		namer: namer,
		log:   opts.logger,
	}, nil
}

// Dir returns the absolute directory reports are written to.
func (s *FileSink) Dir() string {
	return s.dir
}

// Store writes p to a new file and returns its path.
// An existing file is never overwritten.
func (s *FileSink) Store(ctx context.Context, p report.Payload) (path string, err error) {
	defer decorate.OnError(&err, "could not store %s report", p.Kind())

	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := p.Encode()
	if err != nil {
		return "", fmt.Errorf("could not encode report: %v", err)
	}

	// Nothing is written for a request that ended while encoding.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path = filepath.Join(s.dir, s.namer.Name(p.Kind()))
	if err := fileutils.WriteNew(path, data, filePerm); err != nil {
		return "", err
	}

	s.log.Debug("Report written", "kind", p.Kind(), "target", path, "size", len(data))
	return path, nil
}
