// Package ingest reads amplification tables (CSV or XLSX with Well, Cycle and
// dRn columns) and calibration point files.
package ingest
