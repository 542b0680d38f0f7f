// Package importer decodes and classifies normalized data sources into typed
// volume and model results. Each source is processed independently; failures
// never abort sibling sources, and DICOM instances are regrouped into one
// volume per series before the batch is handed to selection.
package importer
