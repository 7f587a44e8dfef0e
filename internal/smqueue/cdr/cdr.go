// Package cdr records call detail records for delivered messages.
package cdr

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Record is one delivered message: who sent it, from which IMSI, and to
// whom, stamped when the destination acknowledged delivery.
type Record struct {
	From        string
	FromIMSI    string
	Dest        string
	CompletedAt time.Time
}

// Recorder persists delivery records.
type Recorder interface {
	Record(r Record) error
	Close() error
}

// FileRecorder appends one line per delivery to a flat file:
//
//	from,fromIMSI,dest,timestamp
type FileRecorder struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// NewFileRecorder opens (or creates) the CDR file for appending.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open CDR file %s: %w", path, err)
	}
	return &FileRecorder{f: f, path: path}, nil
}

func (r *FileRecorder) Record(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintf(r.f, "%s,%s,%s,%s\n",
		rec.From, rec.FromIMSI, rec.Dest, rec.CompletedAt.Format(time.ANSIC))
	if err != nil {
		return fmt.Errorf("write CDR: %w", err)
	}
	// Flush per record so a crash loses at most the in-flight line.
	if err := r.f.Sync(); err != nil {
		return fmt.Errorf("sync CDR file: %w", err)
	}
	return nil
}

func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

// NopRecorder discards records. Used when no CDR file is configured.
type NopRecorder struct{}

func (NopRecorder) Record(Record) error { return nil }
func (NopRecorder) Close() error        { return nil }
