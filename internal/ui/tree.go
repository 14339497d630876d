package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

var (
	rootStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229"))
	emptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
)

// Field is one labelled row of a details tree.
type Field struct {
	Key   string
	Value string
}

// RenderDetails renders fields as a tree under title. Empty values are shown
// as "(unset)".
func RenderDetails(title string, fields []Field) string {
	t := tree.New().Root(rootStyle.Render(title))
	for _, f := range fields {
		t.Child(formatKeyValue(f.Key+":", f.Value))
	}
	return t.String()
}

func formatKeyValue(key, value string) string {
	if value == "" {
		return keyStyle.Render(key) + " " + emptyStyle.Render("(unset)")
	}
	return keyStyle.Render(key) + " " + valueStyle.Render(value)
}
