package datasource

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"voxview/internal/services"
)

var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// IsArchive reports whether a materialized source looks like a zip archive.
func IsArchive(s *DataSource) bool {
	return s != nil && len(s.data) >= len(zipMagic) && bytes.Equal(s.data[:len(zipMagic)], zipMagic)
}

// ExpandArchives recursively replaces archive sources with their constituent
// files. Non-archive sources pass through unchanged. Each extracted file
// carries its enclosing archive in its lineage.
func ExpandArchives(ctx context.Context, sources []*DataSource) ([]*DataSource, error) {
	var out []*DataSource
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !IsArchive(src) {
			out = append(out, src)
			continue
		}
		children, err := extractZip(src)
		if err != nil {
			return nil, err
		}
		expanded, err := ExpandArchives(ctx, children)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func extractZip(src *DataSource) ([]*DataSource, error) {
	reader, err := zip.NewReader(bytes.NewReader(src.data), int64(len(src.data)))
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "datasource", "expand archive", src.name, err)
	}

	var children []*DataSource
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := path.Base(entry.Name)
		if strings.HasPrefix(name, ".") {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, services.Wrap(services.ErrDecode, "datasource", "open archive member", entry.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, services.Wrap(services.ErrDecode, "datasource", "read archive member", entry.Name, err)
		}
		children = append(children, src.Child(name, data))
	}
	return children, nil
}
