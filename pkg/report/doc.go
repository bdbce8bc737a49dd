// Package report writes the outputs of a calibration run: the signal point
// table, the full result as JSON, a compressed archive of the fitted curves
// and a human readable summary.
package report
