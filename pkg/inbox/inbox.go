// Package inbox turns media files dropped into a directory into exported
// skill archives without user interaction.
package inbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/archive"
	"github.com/jingkaihe/skillforge/pkg/capture"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
	"github.com/jingkaihe/skillforge/pkg/workflow"
)

// DefaultInclude matches every media type the analysis accepts.
const DefaultInclude = "**/*.{webm,mp4,mov,mkv,avi,png,jpg,jpeg,gif,webp,pdf}"

// NotesSuffix names the optional sidecar holding the notes for a media
// file: demo.webm reads its notes from demo.webm.notes.
const NotesSuffix = ".notes"

// Config holds the configuration of a Watcher.
type Config struct {
	Dir       string
	OutputDir string
	// InstallDir, when set, also installs every generated skill as a
	// directory tree under it.
	InstallDir string
	// Include is a doublestar pattern matched against paths relative to Dir.
	Include         string
	Debounce        time.Duration
	MaxSize         int64
	ProcessExisting bool
}

// NewConfig creates a Config with default values
func NewConfig(dir, outputDir string) Config {
	return Config{
		Dir:       dir,
		OutputDir: outputDir,
		Include:   DefaultInclude,
		Debounce:  500 * time.Millisecond,
		MaxSize:   capture.DefaultMaxSize,
	}
}

// Validate validates the Config and returns an error if invalid
func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.New("inbox directory is required")
	}
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if !doublestar.ValidatePattern(c.Include) {
		return errors.Errorf("invalid include pattern %q", c.Include)
	}
	if c.Debounce < 0 {
		return errors.Errorf("debounce cannot be negative: %s", c.Debounce)
	}
	return nil
}

// Result describes one processed media file.
type Result struct {
	Source    string
	Skill     *skill.GeneratedSkill
	Archive   string
	Installed string
}

// Watcher feeds media files through a workflow controller. Files are
// processed one at a time since the controller holds a single session.
type Watcher struct {
	ctrl *workflow.Controller
	cfg  Config

	mu        sync.Mutex
	processed map[string]time.Time
}

// New creates a Watcher over ctrl.
func New(ctrl *workflow.Controller, cfg Config) (*Watcher, error) {
	if cfg.Include == "" {
		cfg.Include = DefaultInclude
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid inbox configuration")
	}
	return &Watcher{ctrl: ctrl, cfg: cfg, processed: map[string]time.Time{}}, nil
}

// Match reports whether path, which lies inside the inbox, is a candidate
// media file.
func (w *Watcher) Match(path string) bool {
	root, err := filepath.Abs(w.cfg.Dir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(filepath.Base(rel), ".") {
		return false
	}
	ok, err := doublestar.Match(w.cfg.Include, rel)
	return err == nil && ok
}

// Process runs one file through upload, analysis and export. On failure
// the controller is returned to Idle so the next file can be processed.
func (w *Watcher) Process(ctx context.Context, path string) (*Result, error) {
	log := logger.G(ctx).WithField("file", path)
	defer w.reset(ctx)

	artifact, err := capture.FromFile(path, w.cfg.MaxSize)
	if err != nil {
		return nil, err
	}
	w.reset(ctx)
	if err := w.ctrl.Upload(artifact); err != nil {
		return nil, err
	}
	if notes, err := os.ReadFile(path + NotesSuffix); err == nil {
		if err := w.ctrl.SetNotes(strings.TrimSpace(string(notes))); err != nil {
			return nil, err
		}
	}

	generated, err := w.ctrl.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	res := &Result{Source: path, Skill: generated}

	res.Archive, err = archive.Export(ctx, generated.Package, w.cfg.OutputDir)
	if err != nil {
		return res, err
	}
	if w.cfg.InstallDir != "" {
		res.Installed, err = archive.Install(ctx, generated.Package, w.cfg.InstallDir)
		if err != nil {
			return res, err
		}
	}

	log.WithField("slug", generated.Package.Slug).WithField("archive", res.Archive).Info("inbox file processed")
	return res, nil
}

// reset drives the controller back to Idle from wherever a run left it.
func (w *Watcher) reset(ctx context.Context) {
	switch w.ctrl.State() {
	case workflow.Error:
		if err := w.ctrl.Dismiss(); err != nil {
			logger.G(ctx).WithError(err).Debug("failed to dismiss analysis error")
		}
		fallthrough
	case workflow.Preview:
		if err := w.ctrl.Discard(); err != nil {
			logger.G(ctx).WithError(err).Debug("failed to discard media")
		}
	case workflow.Success:
		if err := w.ctrl.StartNew(); err != nil {
			logger.G(ctx).WithError(err).Debug("failed to start over")
		}
	}
}

// Run watches the inbox until ctx is cancelled. Every matching file that
// is created or written, then left alone for the debounce period, is
// processed once per modification time. onResult, if set, receives every
// outcome.
func (w *Watcher) Run(ctx context.Context, onResult func(*Result, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	if err := w.addTree(ctx, watcher, w.cfg.Dir); err != nil {
		return err
	}

	events := make(chan string)
	ready := make(chan string)
	go debounce(ctx, events, ready, w.cfg.Debounce)

	if w.cfg.ProcessExisting {
		existing, err := w.existing()
		if err != nil {
			return err
		}
		go func() {
			for _, path := range existing {
				select {
				case events <- path:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case path := <-ready:
				if !w.fresh(path) {
					continue
				}
				res, err := w.Process(ctx, path)
				if err != nil {
					logger.G(ctx).WithError(err).WithField("file", path).Warn("failed to process inbox file")
				}
				if onResult != nil {
					if res == nil {
						res = &Result{Source: path}
					}
					onResult(res, err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	logger.G(ctx).WithField("dir", w.cfg.Dir).WithField("include", w.cfg.Include).Info("watching inbox")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.addTree(ctx, watcher, event.Name); err != nil {
					logger.G(ctx).WithError(err).WithField("dir", event.Name).Warn("failed to watch new directory")
				}
				// Files may have landed before the directory was watched.
				for _, path := range w.matchesUnder(event.Name) {
					select {
					case events <- path:
					case <-ctx.Done():
						return nil
					}
				}
				continue
			}
			if !w.Match(event.Name) {
				continue
			}
			select {
			case events <- event.Name:
			case <-ctx.Done():
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.G(ctx).WithError(err).Error("error watching inbox")
		case <-ctx.Done():
			return nil
		}
	}
}

// fresh records path as processed at its current modification time and
// reports whether that time was not seen before.
func (w *Watcher) fresh(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if seen, ok := w.processed[path]; ok && seen.Equal(info.ModTime()) {
		return false
	}
	w.processed[path] = info.ModTime()
	return true
}

func (w *Watcher) existing() ([]string, error) {
	var paths []string
	err := doublestar.GlobWalk(os.DirFS(w.cfg.Dir), w.cfg.Include, func(p string, d os.DirEntry) error {
		path := filepath.Join(w.cfg.Dir, filepath.FromSlash(p))
		if !d.IsDir() && w.Match(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list inbox")
	}
	return paths, nil
}

func (w *Watcher) matchesUnder(dir string) []string {
	var paths []string
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() && w.Match(path) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths
}

func (w *Watcher) addTree(ctx context.Context, watcher *fsnotify.Watcher, root string) error {
	output, _ := filepath.Abs(w.cfg.OutputDir)
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == output || (path != root && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		logger.G(ctx).WithField("directory", path).Debug("adding directory to watcher")
		return errors.Wrapf(watcher.Add(path), "failed to watch %s", path)
	})
}

// debounce forwards a path once no new event arrived for it within delay.
func debounce(ctx context.Context, input <-chan string, output chan<- string, delay time.Duration) {
	var mu sync.Mutex
	pending := map[string]*time.Timer{}

	stopAll := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, timer := range pending {
			timer.Stop()
		}
	}

	for {
		select {
		case path := <-input:
			mu.Lock()
			if timer, ok := pending[path]; ok {
				timer.Stop()
			}
			pending[path] = time.AfterFunc(delay, func() {
				mu.Lock()
				delete(pending, path)
				mu.Unlock()
				select {
				case output <- path:
				case <-ctx.Done():
				}
			})
			mu.Unlock()
		case <-ctx.Done():
			stopAll()
			return
		}
	}
}
