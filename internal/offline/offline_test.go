package offline

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/pkg/browser"

	"github.com/nadzzz/nova/internal/sysinfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	info    sysinfo.Info
	cpu     float64
	mem     sysinfo.Memory
	disk    sysinfo.Disk
	procs   []sysinfo.Process
	battery sysinfo.Battery
	err     error
	diskArg string
}

func (h *fakeHost) Info(ctx context.Context) (sysinfo.Info, error) { return h.info, h.err }
func (h *fakeHost) CPUPercent(ctx context.Context, interval time.Duration) (float64, error) {
	return h.cpu, h.err
}
func (h *fakeHost) Memory(ctx context.Context) (sysinfo.Memory, error) { return h.mem, h.err }
func (h *fakeHost) Disk(ctx context.Context, path string) (sysinfo.Disk, error) {
	h.diskArg = path
	return h.disk, h.err
}
func (h *fakeHost) Processes(ctx context.Context) ([]sysinfo.Process, error) { return h.procs, h.err }
func (h *fakeHost) Battery(ctx context.Context) (sysinfo.Battery, error) {
	return h.battery, h.err
}

type fakeLauncher struct {
	launched []string
	err      error
}

func (l *fakeLauncher) Launch(ctx context.Context, executable string) error {
	l.launched = append(l.launched, executable)
	return l.err
}

type fakeOpener struct {
	opened []string
	err    error
}

func (o *fakeOpener) Open(path string) error {
	o.opened = append(o.opened, path)
	return o.err
}

var fixedNow = time.Date(2024, time.March, 5, 14, 7, 9, 0, time.Local)

func newTestClassifier(h *fakeHost, l *fakeLauncher, o *fakeOpener) *Classifier {
	return New(Options{
		Host:     h,
		Launcher: l,
		Opener:   o,
		Now:      func() time.Time { return fixedNow },
		HomeDir:  "/home/nova",
	})
}

func TestClassify_Time(t *testing.T) {
	c := New(Options{Host: &fakeHost{}, Launcher: &fakeLauncher{}, Opener: &fakeOpener{}})
	timeRE := regexp.MustCompile(`\b\d{2}:\d{2}:\d{2}\b`)

	for _, prompt := range []string{"time", "What TIME is it?", "  tell me the time  ", "uptime please"} {
		r := c.Classify(context.Background(), prompt)
		assert.True(t, r.Handled, prompt)
		assert.Equal(t, "time", r.Rule, prompt)
		assert.Regexp(t, timeRE, r.Reply, prompt)
	}
}

func TestClassify_TimeWinsOverDate(t *testing.T) {
	c := newTestClassifier(&fakeHost{}, &fakeLauncher{}, &fakeOpener{})

	r := c.Classify(context.Background(), "date and time")
	assert.Equal(t, "It is 14:07:09.", r.Reply)
}

func TestClassify_Date(t *testing.T) {
	c := newTestClassifier(&fakeHost{}, &fakeLauncher{}, &fakeOpener{})

	r := c.Classify(context.Background(), "what's the date today")
	assert.True(t, r.Handled)
	assert.Equal(t, "Today is Tuesday, March 05, 2024.", r.Reply)
}

func TestClassify_SystemMetrics(t *testing.T) {
	h := &fakeHost{
		info: sysinfo.Info{System: "linux", Node: "box", Release: "6.1", Version: "debian 12", Machine: "x86_64", Processor: "Ryzen"},
		cpu:  12.5,
		mem:  sysinfo.Memory{Used: 6 << 30, Total: 16 << 30, UsedPercent: 37.5},
		disk: sysinfo.Disk{Free: 100 << 30, Total: 500 << 30},
		procs: []sysinfo.Process{
			{Name: "init", MemoryPercent: 0.1},
			{Name: "firefox", MemoryPercent: 12.5},
			{Name: "code", MemoryPercent: 8},
		},
		battery: sysinfo.Battery{Percent: 87, Plugged: true},
	}
	c := New(Options{Host: h, Launcher: &fakeLauncher{}, Opener: &fakeOpener{}, TopProcesses: 2, DiskPath: "/data"})

	tests := []struct {
		prompt string
		rule   string
		reply  string
	}{
		{"show system info", "system_info", "System: linux\nNode: box\nRelease: 6.1\nVersion: debian 12\nMachine: x86_64\nProcessor: Ryzen"},
		{"os info", "system_info", "System: linux\nNode: box\nRelease: 6.1\nVersion: debian 12\nMachine: x86_64\nProcessor: Ryzen"},
		{"CPU load?", "cpu", "CPU usage: 12.5%."},
		{"check memory usage", "memory", "RAM used: 37.5% (6 GB of 16 GB)."},
		{"how much ram", "memory", "RAM used: 37.5% (6 GB of 16 GB)."},
		{"disk space", "disk", "Disk free: 100 GB / 500 GB."},
		{"list processes", "processes", "Top processes:\n1. firefox (12.50% RAM)\n2. code (8.00% RAM)"},
		{"battery level", "battery", "Battery: 87% (plugged in)."},
	}

	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			r := c.Classify(context.Background(), tt.prompt)
			assert.True(t, r.Handled)
			assert.Equal(t, tt.rule, r.Rule)
			assert.Equal(t, tt.reply, r.Reply)
		})
	}
	assert.Equal(t, "/data", h.diskArg)
}

func TestClassify_HostErrorsBecomeText(t *testing.T) {
	h := &fakeHost{err: errors.New("permission denied")}
	c := newTestClassifier(h, &fakeLauncher{}, &fakeOpener{})

	r := c.Classify(context.Background(), "memory")
	assert.True(t, r.Handled)
	assert.Equal(t, "Could not read memory usage: permission denied", r.Reply)

	r = c.Classify(context.Background(), "battery")
	assert.Equal(t, "Battery information unavailable.", r.Reply)
}

func TestClassify_OnBattery(t *testing.T) {
	h := &fakeHost{battery: sysinfo.Battery{Percent: 41.6}}
	c := newTestClassifier(h, &fakeLauncher{}, &fakeOpener{})

	r := c.Classify(context.Background(), "battery")
	assert.Equal(t, "Battery: 42% (on battery).", r.Reply)
}

func TestClassify_Folders(t *testing.T) {
	o := &fakeOpener{}
	c := newTestClassifier(&fakeHost{}, &fakeLauncher{}, o)

	r := c.Classify(context.Background(), "open my downloads")
	assert.True(t, r.Handled)
	assert.Equal(t, "folder", r.Rule)
	assert.Equal(t, "Opened "+filepath.Join("/home/nova", "Downloads")+".", r.Reply)

	c.Classify(context.Background(), "documents")
	c.Classify(context.Background(), "show the desktop")
	assert.Equal(t, []string{
		filepath.Join("/home/nova", "Downloads"),
		filepath.Join("/home/nova", "Documents"),
		filepath.Join("/home/nova", "Desktop"),
	}, o.opened)
}

func TestClassify_FolderFailureIsText(t *testing.T) {
	o := &fakeOpener{err: errors.New("xdg-open not found")}
	c := newTestClassifier(&fakeHost{}, &fakeLauncher{}, o)

	r := c.Classify(context.Background(), "downloads")
	assert.True(t, r.Handled)
	assert.Equal(t, "Failed to open folder: xdg-open not found", r.Reply)
}

func TestClassify_OpenNotepad(t *testing.T) {
	l := &fakeLauncher{}
	c := newTestClassifier(&fakeHost{}, l, &fakeOpener{})

	r := c.Classify(context.Background(), "open notepad")
	assert.True(t, r.Handled)
	assert.Equal(t, "launch", r.Rule)
	assert.Equal(t, "Launched notepad.", r.Reply)
	assert.Equal(t, []string{"notepad"}, l.launched)
}

func TestClassify_OpenUsesTableOrder(t *testing.T) {
	l := &fakeLauncher{}
	c := newTestClassifier(&fakeHost{}, l, &fakeOpener{})

	r := c.Classify(context.Background(), "Open VSCode")
	assert.Equal(t, "Launched code.", r.Reply)

	c.Classify(context.Background(), "open chromium")
	c.Classify(context.Background(), "open word and excel")
	assert.Equal(t, []string{"code", "chromium", "winword"}, l.launched)
}

func TestClassify_OpenUnknownIsHandled(t *testing.T) {
	l := &fakeLauncher{}
	c := newTestClassifier(&fakeHost{}, l, &fakeOpener{})

	r := c.Classify(context.Background(), "open zzzqqq")
	assert.True(t, r.Handled)
	assert.Equal(t, UnknownAppReply, r.Reply)
	assert.Empty(t, l.launched)
}

func TestClassify_LaunchFailureIsText(t *testing.T) {
	l := &fakeLauncher{err: errors.New("executable file not found in $PATH")}
	c := newTestClassifier(&fakeHost{}, l, &fakeOpener{})

	r := c.Classify(context.Background(), "open spotify")
	assert.True(t, r.Handled)
	assert.Equal(t, "Could not launch spotify: executable file not found in $PATH", r.Reply)
}

func TestClassify_Miss(t *testing.T) {
	c := newTestClassifier(&fakeHost{}, &fakeLauncher{}, &fakeOpener{})

	for _, prompt := range []string{"tell me a joke", "", "   ", "who won the match"} {
		r := c.Classify(context.Background(), prompt)
		assert.False(t, r.Handled, prompt)
		assert.Equal(t, FallbackReply, r.Reply, prompt)
		assert.Empty(t, r.Rule, prompt)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	h := &fakeHost{disk: sysinfo.Disk{Free: 3 << 30, Total: 9 << 30}}
	c := newTestClassifier(h, &fakeLauncher{}, &fakeOpener{})

	for _, prompt := range []string{"disk", "tell me a joke", "open zzzqqq", " DISK  "} {
		a := c.Classify(context.Background(), prompt)
		b := c.Classify(context.Background(), prompt)
		assert.Equal(t, a, b, prompt)
	}
}

func TestMergeApplications(t *testing.T) {
	base := []Application{{"notepad", "notepad"}, {"vlc", "vlc"}}

	merged := MergeApplications(base, map[string]string{
		"Notepad": "gedit",
		"gimp":    "gimp",
		"blender": "blender",
		"":        "ignored",
	})

	require.Len(t, merged, 4)
	assert.Equal(t, Application{"notepad", "gedit"}, merged[0])
	assert.Equal(t, Application{"vlc", "vlc"}, merged[1])
	assert.Equal(t, Application{"blender", "blender"}, merged[2])
	assert.Equal(t, Application{"gimp", "gimp"}, merged[3])
	assert.Equal(t, "notepad", base[0].Executable, "base must not be modified")
}

func TestCommandFor(t *testing.T) {
	tests := []struct {
		goos string
		args []string
	}{
		{"windows", []string{"cmd", "/c", "start", "", "notepad"}},
		{"darwin", []string{"open", "-a", "notepad"}},
		{"linux", []string{"notepad"}},
	}
	for _, tt := range tests {
		cmd := commandFor(tt.goos, "notepad")
		assert.Equal(t, tt.args, cmd.Args, tt.goos)
	}
}

func TestExecLauncher_MissingExecutable(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("launch goes through the platform shell")
	}
	err := ExecLauncher{}.Launch(context.Background(), "nova-definitely-not-installed")
	assert.True(t, errors.Is(err, exec.ErrNotFound), "got %v", err)
}

func TestSilenceBrowserOutput_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			silenceBrowserOutput()
		}()
	}
	wg.Wait()

	assert.Equal(t, io.Discard, browser.Stdout)
	assert.Equal(t, io.Discard, browser.Stderr)
}
