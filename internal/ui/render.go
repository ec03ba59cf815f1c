package ui

import (
	"fmt"
	"strings"

	"github.com/desertthunder/radar/internal/tasks"
)

// RenderProgress renders one progress update as a single status line.
//
// Updates from the paged phases show the page they came from.
func RenderProgress(u tasks.ProgressUpdate) string {
	msg := u.Message
	if msg == "" {
		msg = "Processing..."
	}

	switch u.Phase {
	case tasks.PhaseAffinity, tasks.PhaseMatch:
		return fmt.Sprintf("→ %s %s", styles.help.Render(fmt.Sprintf("[%s]", u.Phase)), msg)
	case tasks.PhaseRecord:
		return styles.ok.Render("✓ " + msg)
	default:
		return "→ " + msg
	}
}

// RenderResult renders the summary printed after a build.
func RenderResult(r *tasks.BuildResult) string {
	if r == nil {
		return styles.err.Render("No result available")
	}

	var b strings.Builder

	if r.DryRun {
		b.WriteString(styles.title.Render("✓ Dry run complete"))
	} else {
		b.WriteString(styles.title.Render("✓ Playlist built"))
	}
	b.WriteString("\n")

	if r.User != nil {
		fmt.Fprintf(&b, "User: %s (%s)\n", r.User.ID, r.Market)
	}
	fmt.Fprintf(&b, "Artists you like: %d\n", r.ArtistCount)
	fmt.Fprintf(&b, "New releases seen: %d\n", r.TotalSeen)
	fmt.Fprintf(&b, "Matched: %s\n", styles.ok.Render(fmt.Sprint(r.MatchedCount)))
	if r.PlaylistID != "" {
		fmt.Fprintf(&b, "Playlist: %s (%d tracks)\n", r.PlaylistID, len(r.TrackURIs))
	}
	if r.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", r.RunID)
	}

	for i, m := range r.Matches {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, m.Name)
	}

	if n := len(r.Skipped); n > 0 {
		b.WriteString("\n")
		b.WriteString(styles.warn.Render(fmt.Sprintf("Skipped %d malformed items:", n)))
		for _, ref := range r.Skipped {
			fmt.Fprintf(&b, "\n  • %s", ref)
		}
		b.WriteString("\n")
	}

	if n := len(r.MissingTracks); n > 0 {
		b.WriteString("\n")
		b.WriteString(styles.warn.Render(fmt.Sprintf("%d releases had no tracks:", n)))
		for _, id := range r.MissingTracks {
			fmt.Fprintf(&b, "\n  • %s", id)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// RenderError renders err with a hint for authentication failures.
func RenderError(err error, reauth bool) string {
	msg := fmt.Sprintf("Error: %v", err)
	if reauth {
		msg += "\n" + styles.help.Render("please re-authenticate: radar auth login")
	}
	return styles.err.Render(msg)
}

// Header renders a section title.
func Header(title string) string {
	return styles.title.Render(title)
}
