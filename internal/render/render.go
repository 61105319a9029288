// Package render formats resolutions for display: the derivation trace as a
// LaTeX aligned block and the solution as a Markdown table with units.
package render

import (
	"strconv"
	"strings"

	"github.com/star/kinematics1d/internal/kinematics"
)

const unknownMarker = ` $^{\color{red}(?)}$`

var labels = map[kinematics.Quantity]string{
	kinematics.Dx:   `$\Delta x$`,
	kinematics.A:    `$a$`,
	kinematics.VAvg: `$v_{avg}$`,
	kinematics.Vi:   `$v_{i}$`,
	kinematics.Vf:   `$v_{f}$`,
	kinematics.T:    `$t$`,
}

var units = map[kinematics.Quantity]string{
	kinematics.Dx:   "m",
	kinematics.A:    "m/s²",
	kinematics.VAvg: "m/s",
	kinematics.Vi:   "m/s",
	kinematics.Vf:   "m/s",
	kinematics.T:    "s",
}

var texUnits = map[kinematics.Quantity]string{
	kinematics.Dx:   `$\scriptsize \text{m}$`,
	kinematics.A:    `$\scriptsize \text{m}/\text{s}^{2}$`,
	kinematics.VAvg: `$\scriptsize \text{m/s}$`,
	kinematics.Vi:   `$\scriptsize \text{m/s}$`,
	kinematics.Vf:   `$\scriptsize \text{m/s}$`,
	kinematics.T:    `$\scriptsize \text{s}$`,
}

// Unit returns the SI unit of q.
func Unit(q kinematics.Quantity) string {
	return units[q]
}

// AlignedBlock wraps formula rows in an equation/aligned environment, each
// row terminated by a LaTeX line break.
func AlignedBlock(steps []string) string {
	var b strings.Builder
	b.WriteString("\\begin{equation}\n\\begin{aligned}\n")
	for _, s := range steps {
		b.WriteString("    ")
		b.WriteString(s)
		b.WriteString(" \\\\\n")
	}
	b.WriteString("\\end{aligned}\n\\end{equation}\n")
	return b.String()
}

// MarkdownTable renders sol as a table with one column per quantity and
// rows for values and units. Quantities missing from known carry a red
// marker; with an empty known set no markers are drawn.
func MarkdownTable(sol kinematics.Solution, known kinematics.QuantitySet) string {
	var head, sep, vals, unitRow strings.Builder
	head.WriteString("| Params |")
	sep.WriteString("|:---|")
	vals.WriteString("| **Values** |")
	unitRow.WriteString("| **Units** |")

	for _, q := range kinematics.Quantities {
		label := labels[q]
		if known != 0 && !known.Has(q) {
			label += unknownMarker
		}
		head.WriteString(" " + label + " |")
		sep.WriteString(":---:|")
		vals.WriteString(" `" + strconv.FormatFloat(sol.Get(q), 'g', -1, 64) + "` |")
		unitRow.WriteString(" " + texUnits[q] + " |")
	}

	return strings.Join([]string{head.String(), sep.String(), vals.String(), unitRow.String()}, "\n") + "\n"
}

// Summary is a plain-text rendering of a resolution for terminals.
func Summary(res kinematics.Resolution) string {
	var b strings.Builder
	b.WriteString("known: " + res.Combination.String() + "\n")
	for _, q := range kinematics.Quantities {
		mark := " "
		if !res.Known.Has(q) {
			mark = "*"
		}
		b.WriteString(mark + " " + padRight(q.String(), 6) + strconv.FormatFloat(res.Solution.Get(q), 'g', -1, 64) + " " + Unit(q) + "\n")
	}
	b.WriteString("steps:\n")
	for i, s := range res.Steps {
		b.WriteString("  " + strconv.Itoa(i+1) + ". " + s.Formula + "\n")
	}
	return b.String()
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
