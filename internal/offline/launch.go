package offline

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"

	"github.com/pkg/browser"
)

// Application maps a spoken name to the executable it launches.
type Application struct {
	Name       string
	Executable string
}

// DefaultApplications is the built-in launch table. Order matters: the
// first name contained in the prompt wins.
var DefaultApplications = []Application{
	// Office & text editors
	{"word", "winword"},
	{"excel", "excel"},
	{"powerpoint", "powerpnt"},
	{"notepad", "notepad"},
	{"onenote", "onenote"},
	{"outlook", "outlook"},
	{"vscode", "code"},
	{"codium", "codium"},
	{"visualstudio", "devenv"},
	{"pluma", "pluma"},
	// Browsers
	{"chrome", "chrome"},
	{"edge", "msedge"},
	{"firefox", "firefox"},
	{"safari", "safari"},
	{"chromium", "chromium"},
	// Media & comms
	{"vlc", "vlc"},
	{"spotify", "spotify"},
	{"teams", "teams"},
	{"skype", "skype"},
	{"zoom", "zoom"},
	// System utilities
	{"calculator", "calc"},
	{"paint", "mspaint"},
	{"taskmanager", "taskmgr"},
	{"explorer", "explorer"},
	{"cmd", "cmd"},
	{"terminal", "wt"},
}

// Launcher starts an executable by name.
type Launcher interface {
	Launch(ctx context.Context, executable string) error
}

// Opener opens a path with the platform file manager.
type Opener interface {
	Open(path string) error
}

// ExecLauncher launches executables with the platform's process-start
// facility and does not wait for them to exit.
type ExecLauncher struct{}

// commandFor builds the launch command for goos.
func commandFor(goos, executable string) *exec.Cmd {
	switch goos {
	case "windows":
		return exec.Command("cmd", "/c", "start", "", executable)
	case "darwin":
		return exec.Command("open", "-a", executable)
	default:
		return exec.Command(executable)
	}
}

// Launch starts executable. The request context is not attached: the
// application outlives the request that opened it.
func (ExecLauncher) Launch(ctx context.Context, executable string) error {
	cmd := commandFor(runtime.GOOS, executable)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the child in the background so it does not linger as a zombie.
	go func() { _ = cmd.Wait() }()
	return nil
}

var silenceBrowser sync.Once

// silenceBrowserOutput discards the opener's own output, which would
// interleave with ours. The package globals are written once.
func silenceBrowserOutput() {
	silenceBrowser.Do(func() {
		browser.Stdout = io.Discard
		browser.Stderr = io.Discard
	})
}

// BrowserOpener opens folders with xdg-open, open or the Windows shell.
type BrowserOpener struct{}

// Open hands path to the platform opener.
func (BrowserOpener) Open(path string) error {
	silenceBrowserOutput()
	if err := browser.OpenFile(path); err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	return nil
}
