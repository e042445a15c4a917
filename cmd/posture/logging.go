package main

import (
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/posture.report/internal/api"
	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/framefeed"
	"github.com/banshee-data/posture.report/internal/notify"
	"github.com/banshee-data/posture.report/internal/posture/pipeline"
)

// logSet holds the three log streams. Diag and Trace are nil when disabled.
type logSet struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer

	files []*os.File
}

// openLogs opens the diag and trace destinations. "" disables a stream and
// "-" sends it to stderr alongside ops.
func openLogs(diagPath, tracePath string, stderr io.Writer) (*logSet, error) {
	ls := &logSet{Ops: stderr}
	var err error
	if ls.Diag, err = ls.open(diagPath, stderr); err != nil {
		ls.Close()
		return nil, err
	}
	if ls.Trace, err = ls.open(tracePath, stderr); err != nil {
		ls.Close()
		return nil, err
	}
	return ls, nil
}

func (ls *logSet) open(path string, stderr io.Writer) (io.Writer, error) {
	switch path {
	case "":
		return nil, nil
	case "-":
		return stderr, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	ls.files = append(ls.files, f)
	return f, nil
}

// Apply routes every package logger to the set.
func (ls *logSet) Apply() {
	config.SetLogWriters(ls.Ops, ls.Diag, ls.Trace)
	pipeline.SetLogWriters(ls.Ops, ls.Diag, ls.Trace)
	framefeed.SetLogWriters(ls.Ops, ls.Diag, ls.Trace)
	notify.SetLogWriters(ls.Ops, ls.Diag, ls.Trace)
	db.SetLogWriters(ls.Ops, ls.Diag, ls.Trace)
	api.SetLogWriters(ls.Ops, ls.Diag, ls.Trace)
}

func (ls *logSet) Close() error {
	var first error
	for _, f := range ls.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	ls.files = nil
	return first
}
