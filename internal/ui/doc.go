// Package ui implements the terminal presentation layer for the
// asuslink CLI: shared lipgloss styles, the bordered command header, and
// the bubbletea model behind the live watch dashboard.
package ui
