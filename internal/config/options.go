package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ApplyOptions parses a mount option string of the form
// "gitdir=/srv/box,sync=30,getall,foreground,notifycmd=notify-send {path}"
// into c. Options are comma separated; a notifycmd value runs to the end of
// the string so that it may itself contain commas.
func (c *Config) ApplyOptions(opts string) error {
	for _, opt := range splitOptions(opts) {
		key, value, hasValue := strings.Cut(opt, "=")
		key = strings.TrimSpace(key)

		switch key {
		case "":
			continue
		case "gitdir":
			if !hasValue || value == "" {
				return fmt.Errorf("option gitdir needs a value")
			}
			c.GitDir = value
		case "sync":
			d, err := parseInterval(value)
			if err != nil {
				return fmt.Errorf("option sync: %w", err)
			}
			c.SyncInterval = d
		case "getall":
			c.GetAll = true
		case "foreground":
			c.Foreground = true
		case "reportkeysize":
			c.ReportKeySize = true
		case "allow_other":
			c.AllowOther = true
		case "notifycmd":
			c.NotifyCmd = value
		case "metrics":
			c.MetricsAddr = value
		case "loglevel":
			c.LogLevel = value
		case "remote":
			name, location, ok := strings.Cut(value, ":")
			if !ok {
				return fmt.Errorf("option remote must be name:location, got %q", value)
			}
			c.Remotes = append(c.Remotes, Remote{Name: name, Location: location})
		default:
			return fmt.Errorf("unknown mount option %q", key)
		}
	}
	return nil
}

// splitOptions splits on commas, except that everything after "notifycmd="
// belongs to that option.
func splitOptions(opts string) []string {
	var out []string
	for opts != "" {
		if strings.HasPrefix(strings.TrimSpace(opts), "notifycmd=") {
			out = append(out, strings.TrimSpace(opts))
			break
		}
		head, tail, found := strings.Cut(opts, ",")
		out = append(out, head)
		if !found {
			break
		}
		opts = tail
	}
	return out
}

// parseInterval accepts plain seconds ("30") or a Go duration ("5m").
func parseInterval(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative interval %d", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", value)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative interval %v", d)
	}
	return d, nil
}
