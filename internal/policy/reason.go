package policy

import (
	"fmt"
	"strings"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// Interpolate expands #{dotted.path} tokens in a reason template against
// the raw alert. A path that resolves to nothing expands to the empty
// string; an unterminated token is left as literal text.
func Interpolate(tpl string, alert domain.RawAlert) string {
	if !strings.Contains(tpl, "#{") {
		return tpl
	}

	var b strings.Builder
	for {
		start := strings.Index(tpl, "#{")
		if start < 0 {
			b.WriteString(tpl)
			return b.String()
		}
		end := strings.Index(tpl[start:], "}")
		if end < 0 {
			b.WriteString(tpl)
			return b.String()
		}
		end += start

		b.WriteString(tpl[:start])
		path := tpl[start+2 : end]
		b.WriteString(render(lookup(alert, path)))
		tpl = tpl[end+1:]
	}
}

// lookup walks a dotted path through nested alert objects.
func lookup(alert domain.RawAlert, path string) any {
	var cur any = map[string]any(alert)
	for _, p := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = obj[p]
		if !ok {
			return nil
		}
	}
	return cur
}

func render(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%g", s)
	}
	return fmt.Sprintf("%v", v)
}
