// Package datasource normalizes heterogeneous load inputs (local files,
// remote URIs, DICOM-web queries) into uniform descriptors and expands
// archives into their constituent files while preserving decode lineage.
package datasource
