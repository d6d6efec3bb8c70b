package pipeline

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"photosync/internal/syncerr"
)

// DefaultFilenameTemplate names exported files after their record code.
const DefaultFilenameTemplate = "{Code}.jpg"

const defaultDatePattern = "yyyyMMdd"

var templateToken = regexp.MustCompile(`\{([A-Za-z]+)(?::([^}]*))?\}`)

// Longest tokens first so yyyy wins over yy. Each layout is a single Go
// reference field and is only ever formatted on its own.
var dateTokens = []struct{ token, layout string }{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MM", "01"},
	{"dd", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

// FilenameTemplate renders export file names. Supported tokens are {Code}
// and {Date} or {Date:pattern}, where pattern uses yyyy, yy, MM, dd, HH, mm
// and ss. Any other pattern text is copied literally.
type FilenameTemplate struct {
	raw string
}

// ParseFilenameTemplate validates raw. Empty selects DefaultFilenameTemplate.
func ParseFilenameTemplate(raw string) (FilenameTemplate, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultFilenameTemplate
	}
	if strings.ContainsAny(raw, `/\`) {
		return FilenameTemplate{}, syncerr.Validationf("filenameTemplate", "template %q must not contain path separators", raw)
	}
	for _, m := range templateToken.FindAllStringSubmatch(raw, -1) {
		switch m[1] {
		case "Code":
			if m[2] != "" {
				return FilenameTemplate{}, syncerr.Validationf("filenameTemplate", "{Code} takes no format")
			}
		case "Date":
		default:
			return FilenameTemplate{}, syncerr.Validationf("filenameTemplate", "unknown template token {%s}", m[1])
		}
	}
	if !strings.Contains(raw, "{Code}") {
		return FilenameTemplate{}, syncerr.Validationf("filenameTemplate", "template %q must contain {Code}", raw)
	}
	return FilenameTemplate{raw: raw}, nil
}

// Render produces the file name for code at now.
func (t FilenameTemplate) Render(code string, now time.Time) (string, error) {
	raw := t.raw
	if raw == "" {
		raw = DefaultFilenameTemplate
	}
	name := templateToken.ReplaceAllStringFunc(raw, func(token string) string {
		m := templateToken.FindStringSubmatch(token)
		switch m[1] {
		case "Code":
			return code
		case "Date":
			pattern := m[2]
			if pattern == "" {
				pattern = defaultDatePattern
			}
			return formatDate(pattern, now)
		}
		return token
	})
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", syncerr.Validationf("filenameTemplate", "invalid file name %q for code %s", name, code)
	}
	return name, nil
}

func formatDate(pattern string, now time.Time) string {
	var b strings.Builder
next:
	for pattern != "" {
		for _, tok := range dateTokens {
			if strings.HasPrefix(pattern, tok.token) {
				b.WriteString(now.Format(tok.layout))
				pattern = pattern[len(tok.token):]
				continue next
			}
		}
		b.WriteByte(pattern[0])
		pattern = pattern[1:]
	}
	return b.String()
}

func (t FilenameTemplate) String() string {
	if t.raw == "" {
		return DefaultFilenameTemplate
	}
	return t.raw
}
