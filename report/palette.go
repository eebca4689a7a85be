package report

import (
	"github.com/fatih/color"

	"github.com/yairfalse/azruntime/inference"
)

// 256-color foregrounds.
func fg(n int) []color.Attribute {
	return []color.Attribute{38, 5, color.Attribute(n)}
}

const (
	seaGreen  = 71
	gold      = 220
	orange    = 208
	orangeRed = 202
	red       = 160
	skyBlue   = 74
)

// Palette maps a severity to the attributes of its row.
type Palette map[inference.Severity][]color.Attribute

// DefaultPalette highlights long-running VMs loudly and long-deallocated
// ones in dimmed tones.
var DefaultPalette = Palette{
	{Lineage: inference.LineageRunning, Tier: 0}: fg(seaGreen),
	{Lineage: inference.LineageRunning, Tier: 1}: fg(gold),
	{Lineage: inference.LineageRunning, Tier: 2}: fg(orange),
	{Lineage: inference.LineageRunning, Tier: 3}: append(fg(orangeRed), color.Bold),

	{Lineage: inference.LineageDeallocated, Tier: 0}: append(fg(seaGreen), color.Faint),
	{Lineage: inference.LineageDeallocated, Tier: 1}: append(fg(gold), color.Faint),
	{Lineage: inference.LineageDeallocated, Tier: 2}: append(fg(orange), color.Faint),

	inference.SeverityNeutral: fg(skyBlue),
	inference.SeverityError:   append(fg(red), color.Bold),
}

// Color returns the printer for a severity. Unlisted severities fall back to
// the neutral style.
func (p Palette) Color(s inference.Severity) *color.Color {
	attrs, ok := p[s]
	if !ok {
		attrs = p[inference.SeverityNeutral]
	}
	return color.New(attrs...)
}
