package main

import (
	"fmt"

	"github.com/Wyydra/huddle/internal/client/call"
	"github.com/Wyydra/huddle/internal/protocol"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	primary = lipgloss.Color("#22d3ee")
	success = lipgloss.Color("#10B981")
	warning = lipgloss.Color("#F59E0B")
	danger  = lipgloss.Color("#EF4444")
	muted   = lipgloss.Color("#6B7280")
)

var (
	boldStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	errorStyle   = lipgloss.NewStyle().Foreground(danger).Bold(true)
	noticeStyle  = lipgloss.NewStyle().Foreground(warning)
	senderStyle  = lipgloss.NewStyle().Foreground(primary).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(primary).Align(lipgloss.Center)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	roomBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(success).
			Padding(1, 2)
)

func roomCreatedView(room protocol.CreateRoomResponse) string {
	content := fmt.Sprintf("Room created\n\nRoom ID:   %s\nJoin link: %s\n\n%s",
		boldStyle.Foreground(primary).Render(room.RoomID),
		mutedStyle.Render(room.JoinURL),
		mutedStyle.Render("huddle join "+room.RoomID),
	)
	return roomBoxStyle.Render(content)
}

func roomInfoView(info protocol.RoomInfo) string {
	return keyValueTable([][]string{
		{"Room", info.RoomID},
		{"Host", info.HostName},
		{"Participants", fmt.Sprintf("%d", info.ParticipantCount)},
		{"Active", fmt.Sprintf("%t", info.IsActive)},
	})
}

func participantsView(remotes []call.Remote) string {
	if len(remotes) == 0 {
		return mutedStyle.Render("Nobody else is here.")
	}
	rows := make([][]string, 0, len(remotes))
	for _, r := range remotes {
		state := string(r.State)
		if r.Degraded {
			state += " (degraded)"
		}
		rows = append(rows, []string{r.Name, state, onOff(r.AudioEnabled), onOff(r.VideoEnabled)})
	}
	return newTable([]string{"Name", "Link", "Audio", "Video"}, rows)
}

func keyValueTable(rows [][]string) string {
	return newTable([]string{"Field", "Value"}, rows)
}

func newTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Render()
}
