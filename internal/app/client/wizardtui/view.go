// internal/app/client/wizardtui/view.go
package wizardtui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dalemusser/planhub/internal/app/plans/wizard"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	stepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
	currentStepStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(lipgloss.Color("#5B8DEF")).
				Padding(0, 1)
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))
	fieldErrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F2C94C"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(1, 2)
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// View renders the current screen.
func (a *App) View() string {
	switch a.state {
	case stateDone:
		return a.renderDone()
	case stateQuit:
		return ""
	}

	d := a.wiz.Draft()
	heading := "New plan"
	if d.EditMode {
		heading = "Edit plan"
	}

	var body string
	if d.Step == wizard.StepVerify {
		body = a.renderVerify(d)
	} else {
		body = a.renderFields()
	}

	parts := []string{
		titleStyle.Render(heading),
		a.renderSteps(d.Step),
		boxStyle.Render(body),
	}
	if line := a.statusLine(d); line != "" {
		parts = append(parts, statusStyle.Render(line))
	}
	parts = append(parts, helpStyle.Render(a.helpLine(d.Step)))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (a *App) renderSteps(cur wizard.Step) string {
	var cells []string
	for s := wizard.StepDescribe; s <= wizard.StepVerify; s++ {
		label := fmt.Sprintf("%d %s", int(s)+1, s)
		if s == cur {
			cells = append(cells, currentStepStyle.Render(label))
		} else {
			cells = append(cells, stepStyle.Render(label))
		}
	}
	return strings.Join(cells, stepStyle.Render(" › "))
}

func (a *App) renderFields() string {
	var lines []string
	for i, f := range a.current() {
		label := f.label
		if i == a.focus {
			label = "▸ " + label
		} else {
			label = "  " + label
		}
		lines = append(lines, labelStyle.Render(label), f.input.View())
		if f.err != "" {
			lines = append(lines, fieldErrStyle.Render("  "+f.err))
		}
		lines = append(lines, "")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func (a *App) renderVerify(d wizard.Draft) string {
	date := "not set"
	if d.Date != nil {
		date = d.Date.Format(DateLayout)
	}
	ages := "any age"
	switch {
	case d.AgeRange.Min > 0 && d.AgeRange.Max > 0:
		ages = fmt.Sprintf("ages %d-%d", d.AgeRange.Min, d.AgeRange.Max)
	case d.AgeRange.Min > 0:
		ages = fmt.Sprintf("ages %d+", d.AgeRange.Min)
	case d.AgeRange.Max > 0:
		ages = fmt.Sprintf("up to age %d", d.AgeRange.Max)
	}
	gender := d.GenderFilter
	if gender == "" {
		gender = "any"
	}
	place := d.Location.Name
	if d.Location.Address != "" {
		place += ", " + d.Location.Address
	}

	rows := [][2]string{
		{"Title", d.Title},
		{"Description", d.Description},
		{"Image", d.ImageURL},
		{"Tags", strings.Join(d.Tags, ", ")},
		{"Who", ages + ", " + gender},
		{"When", date + " " + d.TimeLabel},
		{"Where", place},
	}
	var lines []string
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(fmt.Sprintf("%-12s", r[0]))+r[1])
	}
	return strings.Join(lines, "\n")
}

func (a *App) statusLine(d wizard.Draft) string {
	if a.status != "" {
		return a.status
	}
	if d.Uploading {
		return "uploading image…"
	}
	if k, st, ok := a.latestFailure(); ok {
		return fmt.Sprintf("%s failed: %s (ctrl+d dismiss)", k.Op, st.Message)
	}
	return ""
}

func (a *App) helpLine(step wizard.Step) string {
	if a.state == stateSaving {
		return "saving…"
	}
	if step == wizard.StepVerify {
		return "enter save • esc back • alt+1-4 edit a step • ctrl+d dismiss • ctrl+r discard • ctrl+c quit"
	}
	return "tab next field • enter continue • esc back • alt+1-5 jump • ctrl+d dismiss • ctrl+r discard • ctrl+c quit"
}

func (a *App) renderDone() string {
	msg := fmt.Sprintf("Saved %q", a.saved.Title)
	if !a.saved.ID.IsZero() {
		msg += " (" + a.saved.ID.Hex() + ")"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		boxStyle.Render(titleStyle.Render(msg)),
		helpStyle.Render("enter or q to exit"),
	)
}
