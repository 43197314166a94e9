// Package offline answers a fixed set of utility commands without the network.
//
// Rules are an ordered table of (match, action) pairs evaluated against the
// trimmed, lower-cased utterance. The first match wins. Rules that touch the
// OS (folder open, app launch) report failures as reply text; nothing here
// returns an error to the caller.
package offline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nadzzz/nova/internal/sysinfo"
)

// FallbackReply is returned, unhandled, when no rule matches.
const FallbackReply = "I'm offline, but I can show system information, open common apps, " +
	"and report usage stats. Try 'open notepad' or 'check memory usage'."

// UnknownAppReply answers "open <something>" when nothing in the
// application table matches. It is a handled reply, never a miss.
const UnknownAppReply = "I don't know that application yet."

const gigabyte = 1 << 30

// Result is the outcome of classifying one utterance.
type Result struct {
	Handled bool
	Reply   string
	Rule    string // name of the matching rule, empty on a miss
}

// Rule is one entry of the classifier table.
type Rule struct {
	Name   string
	Match  func(prompt string) bool
	Action func(ctx context.Context, prompt string) string
}

// Options configures a Classifier. Zero values select the defaults.
type Options struct {
	Host              sysinfo.Host  // default sysinfo.System{}
	Launcher          Launcher      // default ExecLauncher{}
	Opener            Opener        // default BrowserOpener{}
	Now               func() time.Time
	HomeDir           string        // default os.UserHomeDir()
	CPUSampleInterval time.Duration // default 1s
	TopProcesses      int           // default 5
	DiskPath          string        // default "/"
	Applications      []Application // default DefaultApplications
}

// Classifier evaluates utterances against the offline rule table.
type Classifier struct {
	host              sysinfo.Host
	launcher          Launcher
	opener            Opener
	now               func() time.Time
	homeDir           string
	cpuSampleInterval time.Duration
	topProcesses      int
	diskPath          string
	apps              []Application
	rules             []Rule
}

// New creates a classifier with the standard rule order.
func New(opts Options) *Classifier {
	c := &Classifier{
		host:              opts.Host,
		launcher:          opts.Launcher,
		opener:            opts.Opener,
		now:               opts.Now,
		homeDir:           opts.HomeDir,
		cpuSampleInterval: opts.CPUSampleInterval,
		topProcesses:      opts.TopProcesses,
		diskPath:          opts.DiskPath,
		apps:              opts.Applications,
	}
	if c.host == nil {
		c.host = sysinfo.System{}
	}
	if c.launcher == nil {
		c.launcher = ExecLauncher{}
	}
	if c.opener == nil {
		c.opener = BrowserOpener{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.homeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.homeDir = home
		}
	}
	if c.cpuSampleInterval <= 0 {
		c.cpuSampleInterval = time.Second
	}
	if c.topProcesses <= 0 {
		c.topProcesses = 5
	}
	if c.diskPath == "" {
		c.diskPath = "/"
	}
	if c.apps == nil {
		c.apps = DefaultApplications
	}
	c.rules = c.buildRules()
	return c
}

// MergeApplications returns base with extra appended. Entries in extra
// whose name is already in base replace the executable in place.
func MergeApplications(base []Application, extra map[string]string) []Application {
	out := make([]Application, len(base))
	copy(out, base)

	index := make(map[string]int, len(out))
	for i, a := range out {
		index[a.Name] = i
	}
	// Map order is random; keep additions deterministic.
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || extra[name] == "" {
			continue
		}
		if i, ok := index[key]; ok {
			out[i].Executable = extra[name]
			continue
		}
		index[key] = len(out)
		out = append(out, Application{Name: key, Executable: extra[name]})
	}
	return out
}

// Classify runs prompt through the rule table.
func (c *Classifier) Classify(ctx context.Context, prompt string) Result {
	p := normalize(prompt)
	for _, r := range c.rules {
		if r.Match(p) {
			reply := r.Action(ctx, p)
			slog.Debug("offline rule matched", "rule", r.Name)
			return Result{Handled: true, Reply: reply, Rule: r.Name}
		}
	}
	return Result{Handled: false, Reply: FallbackReply}
}

func normalize(prompt string) string {
	return strings.ToLower(strings.TrimSpace(prompt))
}

func containsAny(words ...string) func(string) bool {
	return func(p string) bool {
		for _, w := range words {
			if strings.Contains(p, w) {
				return true
			}
		}
		return false
	}
}

func (c *Classifier) buildRules() []Rule {
	return []Rule{
		{Name: "time", Match: containsAny("time"), Action: c.timeReply},
		{Name: "date", Match: containsAny("date"), Action: c.dateReply},
		{Name: "system_info", Match: containsAny("system info", "os info"), Action: c.systemInfo},
		{Name: "cpu", Match: containsAny("cpu"), Action: c.cpuUsage},
		{Name: "memory", Match: containsAny("ram", "memory"), Action: c.memoryUsage},
		{Name: "disk", Match: containsAny("disk"), Action: c.diskUsage},
		{Name: "processes", Match: containsAny("process"), Action: c.topProcessList},
		{Name: "battery", Match: containsAny("battery"), Action: c.batteryInfo},
		{Name: "folder", Match: containsAny("downloads", "documents", "desktop"), Action: c.openFolder},
		{Name: "launch", Match: func(p string) bool { return strings.HasPrefix(p, "open ") }, Action: c.launchApp},
	}
}

func (c *Classifier) timeReply(ctx context.Context, _ string) string {
	return fmt.Sprintf("It is %s.", c.now().Format("15:04:05"))
}

func (c *Classifier) dateReply(ctx context.Context, _ string) string {
	return fmt.Sprintf("Today is %s.", c.now().Format("Monday, January 02, 2006"))
}

func (c *Classifier) systemInfo(ctx context.Context, _ string) string {
	info, err := c.host.Info(ctx)
	if err != nil {
		return fmt.Sprintf("Could not read system information: %v", err)
	}
	return fmt.Sprintf("System: %s\nNode: %s\nRelease: %s\nVersion: %s\nMachine: %s\nProcessor: %s",
		info.System, info.Node, info.Release, info.Version, info.Machine, info.Processor)
}

func (c *Classifier) cpuUsage(ctx context.Context, _ string) string {
	pct, err := c.host.CPUPercent(ctx, c.cpuSampleInterval)
	if err != nil {
		return fmt.Sprintf("Could not read CPU usage: %v", err)
	}
	return fmt.Sprintf("CPU usage: %.1f%%.", pct)
}

func (c *Classifier) memoryUsage(ctx context.Context, _ string) string {
	m, err := c.host.Memory(ctx)
	if err != nil {
		return fmt.Sprintf("Could not read memory usage: %v", err)
	}
	return fmt.Sprintf("RAM used: %.1f%% (%d GB of %d GB).", m.UsedPercent, m.Used/gigabyte, m.Total/gigabyte)
}

func (c *Classifier) diskUsage(ctx context.Context, _ string) string {
	d, err := c.host.Disk(ctx, c.diskPath)
	if err != nil {
		return fmt.Sprintf("Could not read disk usage: %v", err)
	}
	return fmt.Sprintf("Disk free: %d GB / %d GB.", d.Free/gigabyte, d.Total/gigabyte)
}

func (c *Classifier) topProcessList(ctx context.Context, _ string) string {
	procs, err := c.host.Processes(ctx)
	if err != nil {
		return fmt.Sprintf("Could not list processes: %v", err)
	}
	top := sysinfo.TopByMemory(procs, c.topProcesses)
	if len(top) == 0 {
		return "No process information available."
	}

	var sb strings.Builder
	sb.WriteString("Top processes:")
	for i, p := range top {
		fmt.Fprintf(&sb, "\n%d. %s (%.2f%% RAM)", i+1, p.Name, p.MemoryPercent)
	}
	return sb.String()
}

func (c *Classifier) batteryInfo(ctx context.Context, _ string) string {
	b, err := c.host.Battery(ctx)
	if err != nil {
		slog.Debug("battery unavailable", "error", err)
		return "Battery information unavailable."
	}
	state := "on battery"
	if b.Plugged {
		state = "plugged in"
	}
	return fmt.Sprintf("Battery: %.0f%% (%s).", b.Percent, state)
}

var folders = []struct {
	keyword string
	dir     string
}{
	{"downloads", "Downloads"},
	{"documents", "Documents"},
	{"desktop", "Desktop"},
}

func (c *Classifier) openFolder(ctx context.Context, p string) string {
	for _, f := range folders {
		if !strings.Contains(p, f.keyword) {
			continue
		}
		if c.homeDir == "" {
			return "Failed to open folder: home directory unknown"
		}
		path := filepath.Join(c.homeDir, f.dir)
		if err := c.opener.Open(path); err != nil {
			slog.Warn("folder open failed", "path", path, "error", err)
			return fmt.Sprintf("Failed to open folder: %v", err)
		}
		return fmt.Sprintf("Opened %s.", path)
	}
	return "Failed to open folder: unknown folder"
}

func (c *Classifier) launchApp(ctx context.Context, p string) string {
	for _, app := range c.apps {
		if !strings.Contains(p, app.Name) {
			continue
		}
		if err := c.launcher.Launch(ctx, app.Executable); err != nil {
			slog.Warn("application launch failed", "app", app.Name, "executable", app.Executable, "error", err)
			return fmt.Sprintf("Could not launch %s: %v", app.Executable, err)
		}
		slog.Info("application launched", "app", app.Name, "executable", app.Executable)
		return fmt.Sprintf("Launched %s.", app.Executable)
	}
	return UnknownAppReply
}
