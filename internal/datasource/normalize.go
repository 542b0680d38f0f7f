package datasource

import (
	"fmt"
	"strings"

	"voxview/internal/services"
)

// Normalize converts raw input strings into data sources. Strings with an
// http or https scheme become URI sources; everything else is treated as a
// local path and read immediately.
func Normalize(inputs []string) ([]*DataSource, error) {
	sources := make([]*DataSource, 0, len(inputs))
	for _, input := range inputs {
		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
			sources = append(sources, FromURI(trimmed))
			continue
		}
		src, err := FromPath(trimmed)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "datasource", "normalize", fmt.Sprintf("input %q", trimmed), err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// NormalizeNamed is Normalize for URL lists that carry display names, as
// delivered by bus load payloads ({urls, names}). Names beyond the URL count
// are ignored; missing names fall back to the URL basename.
func NormalizeNamed(urls, names []string) []*DataSource {
	sources := make([]*DataSource, 0, len(urls))
	for i, raw := range urls {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		src := FromURI(trimmed)
		if i < len(names) && strings.TrimSpace(names[i]) != "" {
			src = &DataSource{kind: KindURI, name: strings.TrimSpace(names[i]), uri: trimmed}
		}
		sources = append(sources, src)
	}
	return sources
}
