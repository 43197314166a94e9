package sysinfo

import (
	"context"
	"testing"

	"github.com/distatus/battery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopByMemory(t *testing.T) {
	procs := []Process{
		{Name: "a", MemoryPercent: 1.5},
		{Name: "b", MemoryPercent: 9.0},
		{Name: "c", MemoryPercent: 4.2},
		{Name: "d", MemoryPercent: 4.2},
	}

	top := TopByMemory(procs, 3)

	require.Len(t, top, 3)
	assert.Equal(t, "b", top[0].Name)
	assert.Equal(t, "c", top[1].Name)
	assert.Equal(t, "d", top[2].Name)
	assert.Equal(t, "a", procs[0].Name, "input must not be reordered")
}

func TestTopByMemory_FewerThanN(t *testing.T) {
	top := TopByMemory([]Process{{Name: "only", MemoryPercent: 2}}, 5)
	assert.Len(t, top, 1)
}

func TestSystem_Memory(t *testing.T) {
	m, err := System{}.Memory(context.Background())
	if err != nil {
		t.Skipf("memory stats unavailable on this host: %v", err)
	}
	assert.Greater(t, m.Total, uint64(0))
	assert.LessOrEqual(t, m.Used, m.Total)
}

func TestSystem_Disk(t *testing.T) {
	d, err := System{}.Disk(context.Background(), "/")
	if err != nil {
		t.Skipf("disk stats unavailable on this host: %v", err)
	}
	assert.Greater(t, d.Total, uint64(0))
	assert.LessOrEqual(t, d.Free, d.Total)
}

func TestPluggedIn(t *testing.T) {
	tests := []struct {
		state battery.AgnosticState
		want  bool
	}{
		{battery.Charging, true},
		{battery.Full, true},
		{battery.Idle, true},
		{battery.Discharging, false},
		{battery.Empty, false},
		{battery.Unknown, false},
		{battery.Undefined, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pluggedIn(tt.state), "state %d", tt.state)
	}
}
