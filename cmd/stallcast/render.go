/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/friendsincode/stallcast/internal/forecast"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	levelStyles = map[forecast.CongestionLevel]lipgloss.Style{
		forecast.CongestionLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Padding(0, 1),
		forecast.CongestionMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Padding(0, 1),
		forecast.CongestionHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true).Padding(0, 1),
	}
)

// renderTable draws rows with a rounded border. levelCol, when >= 0, colours
// that column by congestion level.
func renderTable(w io.Writer, title string, headers []string, rows [][]string, levelCol int) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("238"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == levelCol && row >= 0 && row < len(rows) {
				if s, ok := levelStyles[forecast.CongestionLevel(rows[row][col])]; ok {
					return s
				}
			}
			return cellStyle
		})

	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, t.Render())
}

func renderNote(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf(format, args...)))
}
