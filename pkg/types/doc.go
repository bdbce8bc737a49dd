// Package types defines the data exchanged between the analysis core and its
// collaborators. It contains:
//
//   - Point / Sample: raw and derived (x, y) series for one well
//   - FitParameters: coefficients of the tanh growth model
//   - SignalPoint / CalibrationPoint / AggregatedPoint: per-well and
//     per-dataset values feeding the regression
//   - RegressionResult / EfficiencyResult: the calibration line and the PCR
//     efficiency derived from it
//   - WellResult / Result: the complete output of one pipeline run
//
// These types are shared across pipeline, report, daemon and client code to
// keep the JSON contracts consistent.
package types
