package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/barysiuk/clipbridge/internal/core"
)

// NextStepsMarkdown describes a finished run as markdown: what was
// installed where, any warnings, and what the user should do next.
func NextStepsMarkdown(sum *core.Summary) string {
	var b strings.Builder
	b.WriteString("# Clipboard bridge installed\n\n")
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Distribution | %s (%s) |\n", sum.Instance.Name, sum.Instance.Arch)
	fmt.Fprintf(&b, "| Binary | `%s` |\n", sum.InstalledPath)
	if sum.ChecksumVerified {
		b.WriteString("| Checksum | verified |\n")
	} else {
		b.WriteString("| Checksum | not published, unverified |\n")
	}
	fmt.Fprintf(&b, "| Bridge config | `%s` |\n", sum.ConfigPath)
	if c := sum.Companion; c != nil {
		fmt.Fprintf(&b, "| ShareX config | `%s` |\n", c.ConfigPath)
		if c.Backup != nil {
			fmt.Fprintf(&b, "| Backup | `%s` |\n", c.Backup.BackupPath)
		}
	} else {
		b.WriteString("| ShareX | skipped |\n")
	}

	if len(sum.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range sum.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	b.WriteString("\n## Next steps\n\n")
	n := 1
	step := func(format string, args ...any) {
		fmt.Fprintf(&b, "%d. %s\n", n, fmt.Sprintf(format, args...))
		n++
	}
	if sum.Path != nil && sum.Path.Changed() {
		step("Open a new shell in %s so `%s` is on your PATH.", sum.Instance.Name, sum.Path.Dir)
	}
	if c := sum.Companion; c != nil {
		if c.TerminatedShareX {
			step("Start ShareX again.")
		}
		step("Take a screenshot with ShareX. The **%s** action copies it into the WSL clipboard.", core.CompanionActionName)
	} else {
		step("Point your screenshot tool at `%s` to copy images into WSL.", sum.InstalledPath)
	}
	step("Paste the image in %s, or check with `xclip -selection clipboard -t TARGETS -o`.", sum.Instance.Name)
	return b.String()
}

// RenderNextSteps renders the summary for the terminal. Styled output picks
// a light or dark theme from the terminal; otherwise plain text is used.
func RenderNextSteps(sum *core.Summary, styled bool, width int) (string, error) {
	if width <= 0 {
		width = defaultWidth
	}
	style := glamour.WithStandardStyle("notty")
	if styled {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(NextStepsMarkdown(sum))
	if err != nil {
		return "", fmt.Errorf("rendering summary: %w", err)
	}
	return out, nil
}
