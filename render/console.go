package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"fleetdash/models"
)

var (
	kindStyles = map[models.NotifyKind]lipgloss.Style{
		models.NotifyInfo:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		models.NotifyWarning: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		models.NotifyError:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
	tierStyles = map[models.Tier]lipgloss.Style{
		models.TierCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		models.TierWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		models.TierStable:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	}
	nameStyle     = lipgloss.NewStyle().Width(24)
	idStyle       = lipgloss.NewStyle().Faint(true).Width(14)
	trackingStyle = lipgloss.NewStyle().Reverse(true)
)

// Console writes notifications and list snapshots to a terminal.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Notify prints one line per notification, coloured by severity.
func (c *Console) Notify(n models.Notification) {
	style, ok := kindStyles[n.Kind]
	if !ok {
		style = lipgloss.NewStyle()
	}
	line := style.Render(strings.ToUpper(string(n.Kind))) + " " + n.Title
	if n.Text != "" {
		line += " " + n.Text
	}
	if n.Action == models.ActionReload {
		line += " (restart the dashboard to reconnect)"
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

// PrintList writes rows as a table.
func (c *Console) PrintList(rows []models.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, FormatRows(rows))
}

// FormatRows renders rows one per line with the battery tier coloured
// and the tracked row highlighted.
func FormatRows(rows []models.Row) string {
	if len(rows) == 0 {
		return "no devices connected\n"
	}
	var b strings.Builder
	for _, row := range rows {
		battery := "   -"
		if row.Battery != nil {
			battery = tierStyles[row.Tier].Render(fmt.Sprintf("%3d%%", *row.Battery))
		}
		label := row.TrackLabel
		if row.Tracking {
			label = trackingStyle.Render(label)
		}
		b.WriteString(idStyle.Render(row.ID) + nameStyle.Render(row.Name) + battery + "  " + label + "\n")
	}
	return b.String()
}
