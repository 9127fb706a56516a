package ledger

import (
	"bufio"
	"context"
	"os"
	"sync"

	"github.com/gofrs/flock"
	"github.com/oarkflow/json"
)

// FileLedger is an append-only JSONL ledger on disk, for running without a
// document store and for tests. Appends are guarded by a sidecar lock file so
// a second process cannot interleave partial lines.
type FileLedger struct {
	path     string
	fileLock *flock.Flock
	mu       sync.Mutex
	seen     map[string]struct{}
}

func NewFileLedger(path string) (*FileLedger, error) {
	fl := &FileLedger{
		path:     path,
		fileLock: flock.New(path + ".lock"),
		seen:     make(map[string]struct{}),
	}
	if err := fl.load(); err != nil {
		return nil, err
	}
	return fl, nil
}

func (fl *FileLedger) load() error {
	f, err := os.Open(fl.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			// A torn trailing line from a crash mid-append is not a ledger
			// fact; the file it covered will simply be reprocessed.
			continue
		}
		fl.seen[key(entry.File, entry.SHA256)] = struct{}{}
	}
	return scanner.Err()
}

func (fl *FileLedger) HasProcessed(_ context.Context, file, sha256 string) (bool, error) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	_, ok := fl.seen[key(file, sha256)]
	return ok, nil
}

func (fl *FileLedger) Record(_ context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := fl.fileLock.Lock(); err != nil {
		return err
	}
	defer fl.fileLock.Unlock()
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fl.mu.Lock()
	fl.seen[key(entry.File, entry.SHA256)] = struct{}{}
	fl.mu.Unlock()
	return nil
}
