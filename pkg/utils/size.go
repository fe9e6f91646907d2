package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var sizeRe = regexp.MustCompile(`^(0|[1-9][0-9]*) ?([KMGTPE]i?)?B?$`)

var sizeUnits = map[string]int64{
	"":   1,
	"K":  1000,
	"M":  1000 * 1000,
	"G":  1000 * 1000 * 1000,
	"T":  1000 * 1000 * 1000 * 1000,
	"P":  1000 * 1000 * 1000 * 1000 * 1000,
	"E":  1000 * 1000 * 1000 * 1000 * 1000 * 1000,
	"Ki": 1 << 10,
	"Mi": 1 << 20,
	"Gi": 1 << 30,
	"Ti": 1 << 40,
	"Pi": 1 << 50,
	"Ei": 1 << 60,
}

// Parse a size such as "512", "10MB" or "1 GiB" into bytes.
func ParseSize(size string) (int64, error) {
	size = strings.TrimSpace(size)

	parts := sizeRe.FindStringSubmatch(size)
	if parts == nil {
		return 0, fmt.Errorf("%w: size %q", ErrParse, size)
	}

	value, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: size %q", ErrParse, size)
	}

	return value * sizeUnits[parts[2]], nil
}

var byteUnits = []struct {
	unit   string
	format string
}{
	{"B", "%.0f%s"},
	{"KiB", "%.0f%s"},
	{"MiB", "%.1f%s"},
	{"GiB", "%.2f%s"},
	{"TiB", "%.2f%s"},
	{"PiB", "%.2f%s"},
	{"EiB", "%.2f%s"},
}

func HumanByteSize(byteSize int64) string {
	index := 0
	size := float64(byteSize)

	for size > 1024 && index < len(byteUnits)-1 {
		size /= 1024
		index++
	}

	return fmt.Sprintf(byteUnits[index].format, size, byteUnits[index].unit)
}
