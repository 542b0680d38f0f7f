package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind discriminates the data source union.
type Kind int

const (
	KindFile Kind = iota
	KindURI
	KindDICOMWeb
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindURI:
		return "uri"
	case KindDICOMWeb:
		return "dicomweb"
	default:
		return "unknown"
	}
}

// WebQuery identifies a DICOM-web retrieval. Presence or absence of the
// instance UID selects whole-series vs single-instance mode.
type WebQuery struct {
	RootURL           string
	StudyInstanceUID  string
	SeriesInstanceUID string
	SOPInstanceUID    string
}

// DataSource describes one input to the import pipeline. Immutable once
// created; derived sources link back to their parent so failures can report
// which nested file inside an archive caused them.
type DataSource struct {
	kind   Kind
	name   string
	data   []byte
	uri    string
	web    *WebQuery
	parent *DataSource
}

// FromPath reads a local file into a file source.
func FromPath(path string) (*DataSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source file: %w", err)
	}
	return &DataSource{kind: KindFile, name: filepath.Base(path), data: data}, nil
}

// FromBytes wraps an in-memory payload as a file source.
func FromBytes(name string, data []byte) *DataSource {
	return &DataSource{kind: KindFile, name: name, data: data}
}

// FromURI describes a remote file that has not been fetched yet.
func FromURI(uri string) *DataSource {
	name := uri
	if idx := strings.LastIndex(uri, "/"); idx >= 0 && idx < len(uri)-1 {
		name = uri[idx+1:]
	}
	if q := strings.IndexByte(name, '?'); q >= 0 {
		name = name[:q]
	}
	return &DataSource{kind: KindURI, name: name, uri: uri}
}

// FromDICOMWeb describes a DICOM-web query source.
func FromDICOMWeb(query WebQuery) *DataSource {
	name := query.SeriesInstanceUID
	if query.SOPInstanceUID != "" {
		name = query.SOPInstanceUID
	}
	q := query
	return &DataSource{kind: KindDICOMWeb, name: name, web: &q}
}

// Child derives a nested source (an archive member, a fetched URI body)
// carrying this source in its lineage.
func (s *DataSource) Child(name string, data []byte) *DataSource {
	return &DataSource{kind: KindFile, name: name, data: data, parent: s}
}

// Kind returns the union discriminator.
func (s *DataSource) Kind() Kind { return s.kind }

// Name returns the source's display name.
func (s *DataSource) Name() string { return s.name }

// Bytes returns the materialized payload, nil when not yet fetched.
func (s *DataSource) Bytes() []byte { return s.data }

// URI returns the remote location for URI sources.
func (s *DataSource) URI() string { return s.uri }

// Web returns the DICOM-web query for dicomweb sources, nil otherwise.
func (s *DataSource) Web() *WebQuery {
	if s.web == nil {
		return nil
	}
	q := *s.web
	return &q
}

// Lineage returns the decode chain innermost-first: the source itself, then
// each enclosing parent up to the original input.
func (s *DataSource) Lineage() []*DataSource {
	var chain []*DataSource
	for cur := s; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	return chain
}

// InnermostName names the deepest entry in the lineage, used when reporting
// which nested file caused a failure.
func (s *DataSource) InnermostName() string {
	return s.name
}
