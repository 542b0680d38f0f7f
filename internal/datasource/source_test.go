package datasource_test

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"voxview/internal/datasource"
)

func TestNormalizeSplitsFilesAndURIs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.nii")
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	sources, err := datasource.Normalize([]string{path, "https://example.org/data/ct.zip", "  "})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	if sources[0].Kind() != datasource.KindFile || sources[0].Name() != "scan.nii" {
		t.Fatalf("unexpected file source: %v %q", sources[0].Kind(), sources[0].Name())
	}
	if sources[1].Kind() != datasource.KindURI || sources[1].Name() != "ct.zip" {
		t.Fatalf("unexpected uri source: %v %q", sources[1].Kind(), sources[1].Name())
	}
}

func TestNormalizeRejectsMissingFile(t *testing.T) {
	if _, err := datasource.Normalize([]string{filepath.Join(t.TempDir(), "absent.nii")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNormalizeNamedPrefersProvidedNames(t *testing.T) {
	sources := datasource.NormalizeNamed(
		[]string{"https://example.org/a", "https://example.org/b"},
		[]string{"first.nii"},
	)
	if len(sources) != 2 {
		t.Fatalf("got %d sources", len(sources))
	}
	if sources[0].Name() != "first.nii" {
		t.Fatalf("name override missing: %q", sources[0].Name())
	}
	if sources[1].Name() != "b" {
		t.Fatalf("fallback name = %q", sources[1].Name())
	}
}

func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExpandArchivesRecursesAndKeepsLineage(t *testing.T) {
	inner := buildZip(t, map[string][]byte{"nested/scan.nii": []byte("inner payload")})
	outer := buildZip(t, map[string][]byte{
		"inner.zip": inner,
		"plain.txt": []byte("plain"),
	})

	src := datasource.FromBytes("study.zip", outer)
	expanded, err := datasource.ExpandArchives(context.Background(), []*datasource.DataSource{src})
	if err != nil {
		t.Fatalf("ExpandArchives: %v", err)
	}
	if len(expanded) != 2 {
		t.Fatalf("got %d expanded sources, want 2", len(expanded))
	}

	byName := map[string]*datasource.DataSource{}
	for _, s := range expanded {
		byName[s.Name()] = s
	}
	scan, ok := byName["scan.nii"]
	if !ok {
		t.Fatalf("scan.nii missing from %v", byName)
	}
	if string(scan.Bytes()) != "inner payload" {
		t.Fatalf("payload = %q", scan.Bytes())
	}

	lineage := scan.Lineage()
	if len(lineage) != 3 {
		t.Fatalf("lineage depth = %d, want 3", len(lineage))
	}
	if lineage[0].Name() != "scan.nii" || lineage[2].Name() != "study.zip" {
		t.Fatalf("lineage order wrong: %q .. %q", lineage[0].Name(), lineage[2].Name())
	}
}

func TestExpandArchivesPassesThroughPlainFiles(t *testing.T) {
	src := datasource.FromBytes("scan.nii", []byte("not an archive"))
	expanded, err := datasource.ExpandArchives(context.Background(), []*datasource.DataSource{src})
	if err != nil {
		t.Fatalf("ExpandArchives: %v", err)
	}
	if len(expanded) != 1 || expanded[0] != src {
		t.Fatal("plain file should pass through unchanged")
	}
}

func TestFetchMaterializesURI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remote bytes"))
	}))
	defer server.Close()

	src := datasource.FromURI(server.URL + "/volume.nrrd")
	fetched, err := datasource.Fetch(context.Background(), server.Client(), src)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(fetched.Bytes()) != "remote bytes" {
		t.Fatalf("payload = %q", fetched.Bytes())
	}
	if lineage := fetched.Lineage(); len(lineage) != 2 || lineage[1] != src {
		t.Fatal("fetched source should carry the URI source in its lineage")
	}
}

func TestFetchReportsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := datasource.Fetch(context.Background(), server.Client(), datasource.FromURI(server.URL)); err == nil {
		t.Fatal("expected error for 404")
	}
}
