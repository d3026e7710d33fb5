package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseWalltime parses a SLURM walltime string into a duration. Accepted
// forms follow sbatch --time: "minutes", "minutes:seconds",
// "hours:minutes:seconds", "days-hours", "days-hours:minutes" and
// "days-hours:minutes:seconds".
func ParseWalltime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty walltime")
	}

	var days int64
	rest := s
	hasDays := false
	if i := strings.IndexByte(s, '-'); i >= 0 {
		var err error
		days, err = parseTimeField("days", s[:i])
		if err != nil {
			return 0, err
		}
		rest = s[i+1:]
		hasDays = true
	}

	parts := strings.Split(rest, ":")
	names := timeFieldNames(hasDays, len(parts))
	if names == nil {
		return 0, fmt.Errorf("invalid walltime format: %s", s)
	}
	fields := make([]int64, len(parts))
	for i, p := range parts {
		v, err := parseTimeField(names[i], p)
		if err != nil {
			return 0, err
		}
		fields[i] = v
	}

	var hours, minutes, seconds int64
	if hasDays {
		// days-hours[:minutes[:seconds]]
		hours = fields[0]
		if len(fields) > 1 {
			minutes = fields[1]
		}
		if len(fields) > 2 {
			seconds = fields[2]
		}
	} else {
		switch len(fields) {
		case 1:
			minutes = fields[0]
		case 2:
			minutes, seconds = fields[0], fields[1]
		case 3:
			hours, minutes, seconds = fields[0], fields[1], fields[2]
		}
	}

	return time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second, nil
}

func timeFieldNames(hasDays bool, n int) []string {
	if n < 1 || n > 3 {
		return nil
	}
	if hasDays {
		return []string{"hours", "minutes", "seconds"}[:n]
	}
	switch n {
	case 1:
		return []string{"minutes"}
	case 2:
		return []string{"minutes", "seconds"}
	default:
		return []string{"hours", "minutes", "seconds"}
	}
}

func parseTimeField(name, s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s in walltime: %q", name, s)
	}
	return v, nil
}
