// Package capture produces media artifacts, either by recording the screen
// through an external recorder process or from uploaded files.
package capture

import (
	"context"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/osutil"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// OutputPlaceholder is replaced by the recording file path in recorder args.
const OutputPlaceholder = "{output}"

const (
	defaultGracePeriod  = 5 * time.Second
	defaultStartupProbe = 500 * time.Millisecond
)

// Recorder starts capture sessions.
type Recorder interface {
	Start(ctx context.Context) (Session, error)
}

// Session is a single capture task. It yields exactly one artifact or one
// error, and releases everything it acquired once Wait returns.
type Session interface {
	// Stop asks the capture to finish. It is safe to call more than once.
	Stop()
	// Done is closed when the capture ended, whether stopped or not.
	Done() <-chan struct{}
	// Wait blocks until the capture ended and returns its result. If ctx is
	// cancelled first the capture is abandoned and ctx.Err() returned.
	Wait(ctx context.Context) (*skill.MediaArtifact, error)
}

// DefaultArgs returns ffmpeg arguments that record the main display on goos.
func DefaultArgs(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"-y", "-f", "avfoundation", "-capture_cursor", "1", "-i", "1:none", "-c:v", "libvpx-vp9", "-f", "webm", OutputPlaceholder}
	case "windows":
		return []string{"-y", "-f", "gdigrab", "-i", "desktop", "-c:v", "libvpx-vp9", "-f", "webm", OutputPlaceholder}
	default:
		display := os.Getenv("DISPLAY")
		if display == "" {
			display = ":0"
		}
		return []string{"-y", "-f", "x11grab", "-i", display, "-c:v", "libvpx-vp9", "-f", "webm", OutputPlaceholder}
	}
}

// CommandRecorder records through an external program writing to a file.
// The program is asked to quit by writing "q" to its stdin (ffmpeg's
// interactive quit key), then interrupted, then killed.
type CommandRecorder struct {
	Command   string
	Args      []string
	MIMEType  string
	Extension string
	TempDir   string
	// GracePeriod bounds each escalation step when stopping.
	GracePeriod time.Duration
	// StartupProbe is how long Start waits to see whether the program dies
	// immediately, e.g. because screen recording permission is missing.
	StartupProbe time.Duration
}

// NewCommandRecorder returns an ffmpeg based recorder for the current OS.
func NewCommandRecorder() *CommandRecorder {
	return &CommandRecorder{
		Command:   "ffmpeg",
		Args:      DefaultArgs(runtime.GOOS),
		MIMEType:  "video/webm",
		Extension: ".webm",
	}
}

// Start launches the recorder program.
func (r *CommandRecorder) Start(ctx context.Context) (Session, error) {
	f, err := os.CreateTemp(r.TempDir, "skillforge-capture-*"+r.Extension)
	if err != nil {
		return nil, &CaptureError{Kind: DeviceUnavailable, Err: errors.Wrap(err, "failed to create recording file")}
	}
	output := f.Name()
	f.Close()

	args := make([]string, len(r.Args))
	for i, a := range r.Args {
		args[i] = strings.ReplaceAll(a, OutputPlaceholder, output)
	}

	cmd := exec.Command(r.Command, args...)
	osutil.SetProcessGroup(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.Remove(output)
		return nil, &CaptureError{Kind: DeviceUnavailable, Err: errors.Wrap(err, "failed to open recorder stdin")}
	}
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		os.Remove(output)
		return nil, &CaptureError{Kind: DeviceUnavailable, Err: errors.Wrapf(err, "failed to start %s", r.Command)}
	}

	s := &commandSession{
		cmd:      cmd,
		stdin:    stdin,
		stderr:   stderr,
		output:   output,
		mimeType: r.MIMEType,
		grace:    orDefault(r.GracePeriod, defaultGracePeriod),
		done:     make(chan struct{}),
	}
	go s.run()

	logger.G(ctx).WithField("command", r.Command).WithField("pid", cmd.Process.Pid).Debug("recorder started")

	select {
	case <-s.Done():
		if _, err := s.Wait(ctx); err != nil {
			return nil, err
		}
		return nil, &CaptureError{Kind: DeviceUnavailable, Err: errors.New("recorder exited immediately")}
	case <-time.After(orDefault(r.StartupProbe, defaultStartupProbe)):
		return s, nil
	case <-ctx.Done():
		s.abandon()
		_, _ = s.Wait(context.Background())
		return nil, ctx.Err()
	}
}

type commandSession struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stderr   *tailBuffer
	output   string
	mimeType string
	grace    time.Duration

	done    chan struct{}
	waitErr error

	stopped   atomic.Bool
	abandoned atomic.Bool
	stopOnce  sync.Once

	resultOnce sync.Once
	artifact   *skill.MediaArtifact
	err        error
}

func (s *commandSession) run() {
	s.waitErr = s.cmd.Wait()
	close(s.done)
}

func (s *commandSession) Done() <-chan struct{} { return s.done }

func (s *commandSession) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		_, _ = io.WriteString(s.stdin, "q")
		s.stdin.Close()
		go s.escalate()
	})
}

func (s *commandSession) escalate() {
	for _, signal := range []func(*exec.Cmd) error{osutil.Interrupt, osutil.Kill} {
		select {
		case <-s.done:
			return
		case <-time.After(s.grace):
			_ = signal(s.cmd)
		}
	}
}

// abandon terminates the recorder without keeping its output.
func (s *commandSession) abandon() {
	s.abandoned.Store(true)
	s.stdin.Close()
	_ = osutil.Kill(s.cmd)
}

func (s *commandSession) Wait(ctx context.Context) (*skill.MediaArtifact, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		s.abandon()
		<-s.done
	}
	s.resultOnce.Do(s.collect)
	return s.artifact, s.err
}

// collect reads and removes the recording file. It runs exactly once, after
// the process has exited.
func (s *commandSession) collect() {
	defer os.Remove(s.output)

	if s.abandoned.Load() {
		s.err = context.Canceled
		return
	}

	data, err := os.ReadFile(s.output)
	if err != nil && !os.IsNotExist(err) {
		s.err = &CaptureError{Kind: DeviceUnavailable, Err: errors.Wrap(err, "failed to read recording")}
		return
	}
	if len(data) == 0 {
		s.err = classify(s.waitErr, s.stderr.String())
		return
	}

	source := "recording"
	if !s.stopped.Load() {
		source = "recording (ended by recorder)"
	}
	s.artifact = skill.NewMediaArtifact(data, s.mimeType, source)
}

var permissionHints = []string{"permission", "not authorized", "not permitted", "access denied"}

func classify(waitErr error, stderr string) error {
	lower := strings.ToLower(stderr)
	for _, hint := range permissionHints {
		if strings.Contains(lower, hint) {
			return &CaptureError{Kind: PermissionDenied, Err: errors.New(strings.TrimSpace(stderr))}
		}
	}
	if waitErr != nil {
		return &CaptureError{Kind: DeviceUnavailable, Err: errors.Wrapf(waitErr, "recorder failed: %s", strings.TrimSpace(stderr))}
	}
	return &CaptureError{Kind: EmptyRecording, Err: errors.New("recorder produced no data")}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
