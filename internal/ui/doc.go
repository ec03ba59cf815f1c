// Package ui renders build progress and summaries for the terminal with lipgloss.
//
// [RenderProgress] turns each tasks.ProgressUpdate into one status line while a build runs;
// [RenderResult] prints the final counts, the matched releases, and any skipped or trackless items.
// Styling degrades to plain text when the output is not a terminal.
package ui
