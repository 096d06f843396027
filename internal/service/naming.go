package service

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const maxNameLen = 200

// StoredName builds the on-disk name "<epochMillis>-<safe name>".
// The client name is reduced to its last path element and characters outside
// [A-Za-z0-9._ -] become "_", so the result is always a single flat filename.
func StoredName(at time.Time, original string) string {
	return strconv.FormatInt(at.UnixMilli(), 10) + "-" + SafeName(original)
}

// SafeName returns a filesystem-safe version of a client-supplied file name.
func SafeName(original string) string {
	name := original
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-', r == ' ':
			b.WriteRune(r)
		case r == utf8.RuneError:
			continue
		default:
			b.WriteByte('_')
		}
	}

	out := strings.Trim(b.String(), ". ")
	if out == "" {
		out = "document.pdf"
	}
	if len(out) > maxNameLen {
		out = out[len(out)-maxNameLen:]
	}
	return out
}
