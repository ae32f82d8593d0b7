package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/osutil"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// JSONFile is the history file name inside the base directory.
const JSONFile = "history.json"

// JSONBackend stores the history as one JSON array. Writes go to a temp
// file that is renamed over the old one while holding a lock file.
type JSONBackend struct {
	path         string
	lockAttempts uint
	lockDelay    time.Duration
}

var _ Backend = (*JSONBackend)(nil)

// NewJSONBackend stores history in dir/history.json.
func NewJSONBackend(dir string) (*JSONBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create history directory")
	}
	return &JSONBackend{
		path:         filepath.Join(dir, JSONFile),
		lockAttempts: 100,
		lockDelay:    50 * time.Millisecond,
	}, nil
}

// Path returns the history file path.
func (b *JSONBackend) Path() string { return b.path }

// Load reads the history. A missing file is an empty history; an unreadable
// one is moved aside so the next save starts fresh.
func (b *JSONBackend) Load(ctx context.Context) ([]skill.GeneratedSkill, error) {
	var entries []skill.GeneratedSkill
	err := b.withLock(ctx, func() error {
		data, err := os.ReadFile(b.path)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read history file")
		}

		if err := json.Unmarshal(data, &entries); err != nil {
			aside := fmt.Sprintf("%s.corrupt-%d", b.path, time.Now().Unix())
			logger.G(ctx).WithError(err).WithField("moved_to", aside).Warn("history file is corrupt, starting empty")
			entries = nil
			return errors.Wrap(os.Rename(b.path, aside), "failed to move corrupt history aside")
		}
		return nil
	})
	return entries, err
}

// Save replaces the history file with entries.
func (b *JSONBackend) Save(ctx context.Context, entries []skill.GeneratedSkill) error {
	if entries == nil {
		entries = []skill.GeneratedSkill{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal history")
	}

	return b.withLock(ctx, func() error {
		tmp, err := os.CreateTemp(filepath.Dir(b.path), ".history-*.tmp")
		if err != nil {
			return errors.Wrap(err, "failed to create temporary history file")
		}
		defer os.Remove(tmp.Name())

		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			return errors.Wrap(err, "failed to write temporary history file")
		}
		if err := tmp.Close(); err != nil {
			return errors.Wrap(err, "failed to close temporary history file")
		}
		return errors.Wrap(os.Rename(tmp.Name(), b.path), "failed to replace history file")
	})
}

// Close is a no-op.
func (b *JSONBackend) Close() error { return nil }

// withLock runs f while holding <path>.lock, created with O_EXCL so that
// only one process rewrites the file at a time. A lock whose owner is no
// longer running is removed.
func (b *JSONBackend) withLock(ctx context.Context, f func() error) error {
	lockPath := b.path + ".lock"

	var lock *os.File
	err := retry.Do(
		func() error {
			var err error
			lock, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
			if err != nil && !os.IsExist(err) {
				return retry.Unrecoverable(err)
			}
			if err != nil {
				removeStaleLock(ctx, lockPath)
			}
			return err
		},
		retry.Attempts(b.lockAttempts),
		retry.Delay(b.lockDelay),
		retry.MaxJitter(b.lockDelay),
		retry.DelayType(retry.CombineDelay(retry.FixedDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to acquire history lock %s", lockPath)
	}
	fmt.Fprintf(lock, "%d\n", os.Getpid())

	defer func() {
		lock.Close()
		os.Remove(lockPath)
	}()
	return f()
}

// removeStaleLock deletes lockPath when it names a process that has exited.
// A lock without a readable PID is being written and is left alone.
func removeStaleLock(ctx context.Context, lockPath string) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || osutil.ProcessAlive(pid) {
		return
	}
	if err := os.Remove(lockPath); err == nil {
		logger.G(ctx).WithField("pid", pid).WithField("lock", lockPath).Warn("removed stale history lock")
	}
}
