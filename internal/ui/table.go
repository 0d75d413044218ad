package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// MatchSummary holds the final numbers shown after a match.
type MatchSummary struct {
	Outcome       string
	Rounds        int
	LocalScore    int
	OpponentScore int
	OpponentID    string
}

// MatchSummaryView renders the end-of-match table.
func MatchSummaryView(summary MatchSummary) string {
	headers := []string{"Metric", "Value"}
	rows := [][]string{
		{"Outcome", summary.Outcome},
		{"Rounds", fmt.Sprintf("%d", summary.Rounds)},
		{"Your Score", fmt.Sprintf("%d", summary.LocalScore)},
		{"Opponent", summary.OpponentID},
		{"Opponent Score", fmt.Sprintf("%d", summary.OpponentScore)},
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// RenderMatchSummary prints the end-of-match table.
func RenderMatchSummary(summary MatchSummary) {
	fmt.Println(MatchSummaryView(summary))
}

// Scoreline renders the in-match score banner.
func Scoreline(localScore, opponentScore int) string {
	return fmt.Sprintf("%s  you %d : %d them",
		TitleStyle.Render(IconDuel),
		localScore,
		opponentScore,
	)
}
