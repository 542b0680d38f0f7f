// Package services holds the error taxonomy shared by the import pipeline
// and its collaborators.
package services
