// Package windowing derives initial window-level configuration for scalar
// volumes: percentile-clipped intensity ranges from a histogram, and the
// precedence rules that pick between the auto seed, DICOM tag values, and
// runtime-forced overrides.
package windowing
