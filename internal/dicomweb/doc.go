// Package dicomweb retrieves studies, series, and instances from a remote
// DICOM-web endpoint and materializes them as synthetic file sources the
// import pipeline can treat like locally opened files.
package dicomweb
