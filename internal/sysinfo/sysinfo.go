// Package sysinfo reads host metrics for the offline command rules.
//
// The Host interface keeps rules independent from the machine they run on;
// System is the real implementation backed by gopsutil and the battery
// library.
package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/distatus/battery"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// ErrNoBattery is returned on hosts without a battery.
var ErrNoBattery = errors.New("sysinfo: no battery")

// Info describes the operating system and machine.
type Info struct {
	System    string // e.g. "linux"
	Node      string // hostname
	Release   string // kernel version
	Version   string // platform and version, e.g. "ubuntu 24.04"
	Machine   string // architecture
	Processor string // CPU model name
}

// Memory is a virtual memory reading in bytes.
type Memory struct {
	Used        uint64
	Total       uint64
	UsedPercent float64
}

// Disk is a filesystem usage reading in bytes.
type Disk struct {
	Free  uint64
	Total uint64
}

// Process is one process and its share of physical memory.
type Process struct {
	Name          string
	MemoryPercent float64
}

// Battery is the charge state of the first battery found.
type Battery struct {
	Percent float64
	Plugged bool
}

// Host reads metrics from a machine.
type Host interface {
	Info(ctx context.Context) (Info, error)
	CPUPercent(ctx context.Context, interval time.Duration) (float64, error)
	Memory(ctx context.Context) (Memory, error)
	Disk(ctx context.Context, path string) (Disk, error)
	Processes(ctx context.Context) ([]Process, error)
	Battery(ctx context.Context) (Battery, error)
}

// System reads metrics from the machine the daemon runs on.
type System struct{}

// Info returns the OS, kernel and machine descriptor.
func (System) Info(ctx context.Context) (Info, error) {
	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("reading host info: %w", err)
	}

	info := Info{
		System:  h.OS,
		Node:    h.Hostname,
		Release: h.KernelVersion,
		Version: h.Platform + " " + h.PlatformVersion,
		Machine: h.KernelArch,
	}
	if info.Machine == "" {
		info.Machine = runtime.GOARCH
	}

	// Processor model is best effort; some virtualised hosts hide it.
	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.Processor = cpus[0].ModelName
	}
	return info, nil
}

// CPUPercent samples total CPU utilisation over interval.
func (System) CPUPercent(ctx context.Context, interval time.Duration) (float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return 0, fmt.Errorf("sampling cpu: %w", err)
	}
	if len(pcts) == 0 {
		return 0, fmt.Errorf("sampling cpu: no data")
	}
	return pcts[0], nil
}

// Memory returns virtual memory usage.
func (System) Memory(ctx context.Context) (Memory, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Memory{}, fmt.Errorf("reading memory: %w", err)
	}
	return Memory{Used: vm.Used, Total: vm.Total, UsedPercent: vm.UsedPercent}, nil
}

// Disk returns usage of the filesystem containing path.
func (System) Disk(ctx context.Context, path string) (Disk, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return Disk{}, fmt.Errorf("reading disk usage of %s: %w", path, err)
	}
	return Disk{Free: u.Free, Total: u.Total}, nil
}

// Processes lists running processes with a non-zero memory share.
// Processes that vanish or deny access while being read are skipped.
func (System) Processes(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		pct, err := p.MemoryPercentWithContext(ctx)
		if err != nil || pct <= 0 {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		out = append(out, Process{Name: name, MemoryPercent: float64(pct)})
	}
	return out, nil
}

// Battery returns the state of the first battery, or ErrNoBattery.
func (System) Battery(ctx context.Context) (Battery, error) {
	batteries, err := battery.GetAll()
	if len(batteries) == 0 {
		if err != nil {
			return Battery{}, fmt.Errorf("%w: %w", ErrNoBattery, err)
		}
		return Battery{}, ErrNoBattery
	}

	for _, b := range batteries {
		if b == nil || b.Full <= 0 {
			continue
		}
		return Battery{
			Percent: b.Current / b.Full * 100,
			Plugged: pluggedIn(b.State.Raw),
		}, nil
	}
	return Battery{}, ErrNoBattery
}

// pluggedIn reports whether state implies external power. Empty and
// unknown states are treated as running on battery.
func pluggedIn(state battery.AgnosticState) bool {
	switch state {
	case battery.Charging, battery.Full, battery.Idle:
		return true
	default:
		return false
	}
}

// TopByMemory returns the n processes with the largest memory share,
// largest first. Ties keep their input order.
func TopByMemory(procs []Process, n int) []Process {
	sorted := make([]Process, len(procs))
	copy(sorted, procs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MemoryPercent > sorted[j].MemoryPercent
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
