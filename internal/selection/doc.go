// Package selection picks the primary dataset out of a successful import
// batch and links secondary layers (PET on CT) and segmentation groups that
// belong to the same study.
package selection
