package importer

import "testing"

func nifti(t *testing.T) []byte {
	t.Helper()
	data := make([]byte, 352)
	copy(data[344:], []byte("n+1\x00"))
	return data
}

func dicomPreamble(t *testing.T) []byte {
	t.Helper()
	data := make([]byte, 140)
	copy(data[128:], []byte("DICM"))
	return data
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want format
	}{
		{"dicom magic", dicomPreamble(t), formatDICOM},
		{"nifti magic", nifti(t), formatNIfTI},
		{"nrrd header", []byte("NRRD0004\ntype: short\n"), formatNRRD},
		{"ascii stl", []byte("solid cube\nfacet normal 0 0 1\n"), formatSTL},
		{"wavefront obj", []byte("v 0.0 1.0 0.0\nv 1.0 0.0 0.0\n"), formatOBJ},
		{"garbage", []byte{0xde, 0xad, 0xbe, 0xef}, formatUnknown},
		{"short input", []byte("NR"), formatUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := sniff(tc.data); got != tc.want {
				t.Fatalf("sniff = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFormatDataType(t *testing.T) {
	if formatNIfTI.dataType() != "image" || formatNRRD.dataType() != "image" {
		t.Fatal("volume formats should map to image")
	}
	if formatDICOM.dataType() != "dicom" {
		t.Fatal("dicom format should map to dicom")
	}
	if formatSTL.dataType() != "model" || formatOBJ.dataType() != "model" {
		t.Fatal("mesh formats should map to model")
	}
	if formatUnknown.dataType() != "" {
		t.Fatal("unknown format should map to empty data type")
	}
}
