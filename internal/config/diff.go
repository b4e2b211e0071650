package config

import (
	"slices"
	"sort"
	"strings"

	logx "during/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) structured attrs for logging, and (3) whether the change needs a
// restart to take effect (fields the running loop cannot pick up).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, bool) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)
	restart := false

	// Window
	if strings.TrimSpace(oldCfg.Timespec) != strings.TrimSpace(newCfg.Timespec) ||
		strings.TrimSpace(oldCfg.Timezone) != strings.TrimSpace(newCfg.Timezone) {
		changed = append(changed, "window")
		attrs = append(attrs,
			logx.String("window.timespec", strings.TrimSpace(newCfg.Timespec)),
			logx.String("window.timezone", strings.TrimSpace(newCfg.Timezone)),
		)
	}

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Process control; these are read once when the loop starts.
	if !slices.Equal(oldCfg.Command, newCfg.Command) {
		changed = append(changed, "command")
		attrs = append(attrs, logx.Strs("command", newCfg.Command))
		restart = true
	}
	if strings.TrimSpace(oldCfg.Tick) != strings.TrimSpace(newCfg.Tick) ||
		strings.TrimSpace(oldCfg.KillAfter) != strings.TrimSpace(newCfg.KillAfter) {
		changed = append(changed, "timing")
		attrs = append(attrs,
			logx.String("timing.tick", strings.TrimSpace(newCfg.Tick)),
			logx.String("timing.kill_after", strings.TrimSpace(newCfg.KillAfter)),
		)
		restart = true
	}
	if oldCfg.Watch != newCfg.Watch {
		changed = append(changed, "watch")
		attrs = append(attrs, logx.Bool("watch", newCfg.Watch))
		restart = true
	}

	sort.Strings(changed)
	return changed, attrs, restart
}
