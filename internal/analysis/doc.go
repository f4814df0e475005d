// Package analysis aggregates the unified table: grouped descriptive
// statistics, categorical shares, growth rates between two years, per-year
// trends and a dataset profile. Degenerate inputs are reported as
// *ComputationError next to whatever results could still be computed.
package analysis
