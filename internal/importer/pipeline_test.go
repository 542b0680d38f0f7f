package importer_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"voxview/internal/catalog"
	"voxview/internal/datasource"
	"voxview/internal/importer"
	"voxview/internal/services"
	"voxview/internal/testsupport"
)

func niftiPayload() []byte {
	data := make([]byte, 352)
	copy(data[344:], []byte("n+1\x00"))
	return data
}

func TestImportBatchIsolatesFailures(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	p := importer.New(store)

	sources := []*datasource.DataSource{
		datasource.FromBytes("scan.nii", niftiPayload()),
		datasource.FromBytes("junk.bin", []byte{0x00, 0x01, 0x02, 0x03}),
		datasource.FromBytes("mesh.stl", []byte("solid cube\n")),
	}

	batch, err := p.ImportBatch(context.Background(), sources)
	if err != nil {
		t.Fatalf("ImportBatch: %v", err)
	}
	if len(batch.Succeeded) != 2 {
		t.Fatalf("succeeded = %d, want 2", len(batch.Succeeded))
	}
	if len(batch.Errored) != 1 {
		t.Fatalf("errored = %d, want 1", len(batch.Errored))
	}
	if !errors.Is(batch.Errored[0].Err, services.ErrDecode) {
		t.Fatalf("failure should carry ErrDecode, got %v", batch.Errored[0].Err)
	}
	if batch.Errored[0].InnermostName() != "junk.bin" {
		t.Fatalf("innermost name = %q", batch.Errored[0].InnermostName())
	}
}

func TestImportBatchExpandsArchives(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	p := importer.New(store)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("inner/scan.nii")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(niftiPayload()); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	batch, err := p.ImportBatch(context.Background(), []*datasource.DataSource{
		datasource.FromBytes("bundle.zip", buf.Bytes()),
	})
	if err != nil {
		t.Fatalf("ImportBatch: %v", err)
	}
	if len(batch.Succeeded) != 1 {
		t.Fatalf("succeeded = %d, want 1", len(batch.Succeeded))
	}
	result := batch.Succeeded[0]
	if result.DataType != catalog.DataTypeImage {
		t.Fatalf("data type = %q", result.DataType)
	}
	if result.Source.Name() != "scan.nii" {
		t.Fatalf("source name = %q", result.Source.Name())
	}
	if lineage := result.Source.Lineage(); len(lineage) != 2 || lineage[1].Name() != "bundle.zip" {
		t.Fatal("expanded source should carry the archive in its lineage")
	}
}

func TestImportBatchRecordsCorruptDICOMAsFailure(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	p := importer.New(store)

	corrupt := make([]byte, 160)
	copy(corrupt[128:], []byte("DICM"))

	batch, err := p.ImportBatch(context.Background(), []*datasource.DataSource{
		datasource.FromBytes("broken.dcm", corrupt),
	})
	if err != nil {
		t.Fatalf("ImportBatch: %v", err)
	}
	if len(batch.Succeeded) != 0 || len(batch.Errored) != 1 {
		t.Fatalf("partition = %d/%d, want 0/1", len(batch.Succeeded), len(batch.Errored))
	}
}

func TestImportBatchRejectsWithoutCatalog(t *testing.T) {
	p := importer.New(nil)
	_, err := p.ImportBatch(context.Background(), nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestImportBatchRegistersImageVolumes(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	p := importer.New(store)

	batch, err := p.ImportBatch(context.Background(), []*datasource.DataSource{
		datasource.FromBytes("scan.seg.nii", niftiPayload()),
	})
	if err != nil {
		t.Fatal(err)
	}
	rec, err := store.GetVolume(context.Background(), batch.Succeeded[0].DataID)
	if err != nil {
		t.Fatalf("volume not registered: %v", err)
	}
	if rec.Name != "scan.seg.nii" || rec.DataType != catalog.DataTypeImage {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.SliceCount != nil {
		t.Fatal("non-DICOM image should have unknown slice count")
	}
}
