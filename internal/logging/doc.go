// Package logging configures structured slog output for topicsearch.
// Logs go to stderr and, unless disabled, to a size-rotated JSON file under
// ~/.topicsearch/logs/ so query traces survive the process.
package logging
