package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-c", "conf.yaml", "-w", "8"},
			allowedFlags: []string{"-c", "-config"},
			want:         []string{"-c", "conf.yaml"},
		},
		{
			name:         "equals form",
			args:         []string{"-config=alt.json", "-w", "8"},
			allowedFlags: []string{"-c", "-config"},
			want:         []string{"-config=alt.json"},
		},
		{
			name:         "unknown flags ignored",
			args:         []string{"-x", "1", "--y=2", "positional"},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
		{
			name:         "flag followed by another flag keeps no value",
			args:         []string{"-d", "-w", "4"},
			allowedFlags: []string{"-d", "-w"},
			want:         []string{"-d", "-w", "4"},
		},
		{
			name:         "double dash stops scanning",
			args:         []string{"-w", "4", "--", "-c", "x.json"},
			allowedFlags: []string{"-w", "-c"},
			want:         []string{"-w", "4"},
		},
		{
			name:         "repeated flag preserved in order",
			args:         []string{"-c", "one.json", "-c", "two.json"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c", "one.json", "-c", "two.json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowedFlags))
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	assert.Equal(t, "/etc/gophid.yaml", ConfigFileFlag([]string{"-c", "/etc/gophid.yaml"}))
	assert.Equal(t, "run.json", ConfigFileFlag([]string{"-w", "3", "-config", "run.json"}))
	assert.Equal(t, "b.json", ConfigFileFlag([]string{"-c", "a.json", "-config=b.json"}))
	assert.Empty(t, ConfigFileFlag([]string{"-x", "1"}))
}
