// Package dataset turns a directory of cohort CSV exports into one in-memory
// table.
//
// A run has three steps. Discover lists the candidate files. Each file name is
// parsed into its cohort metadata (group type, gender, year) with
// FilenameRules, and LoadFile reads the rows using either the headered or the
// fixed positional schema. Build concatenates every normalized file into a
// Table and records what was skipped, and why, in a Report.
//
// Files and rows that cannot be used are skipped with a recorded cause. Only an
// empty discovery or a table without a single usable row aborts the run.
package dataset
