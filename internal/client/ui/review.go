package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kamikazebr/sentinel/pkg/models"
)

type ReviewAction int

const (
	ReviewQuit ReviewAction = iota
	ReviewApprove
	ReviewDeny
)

// ReviewDecision is what the operator chose for one pending request
type ReviewDecision struct {
	Action  ReviewAction
	Request models.UnlockRequest
	Minutes int
}

// Session lengths offered on approval
var reviewDurations = []int{15, 60, 240}

// ReviewModel lists pending unlock requests and lets the operator approve
// one for a chosen duration or deny it.
type ReviewModel struct {
	requests []models.UnlockRequest
	now      time.Time
	cursor   int
	duration int
	decision ReviewDecision
	done     bool
}

func NewReview(requests []models.UnlockRequest, now time.Time) ReviewModel {
	return ReviewModel{requests: requests, now: now, duration: 1}
}

func (m ReviewModel) Init() tea.Cmd {
	return nil
}

func (m ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "q", "esc":
		m.done = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.requests)-1 {
			m.cursor++
		}
	case "left", "h":
		if m.duration > 0 {
			m.duration--
		}
	case "right", "l", "tab":
		if m.duration < len(reviewDurations)-1 {
			m.duration++
		}
	case "a", "enter":
		return m.decide(ReviewApprove)
	case "d":
		return m.decide(ReviewDeny)
	}
	return m, nil
}

func (m ReviewModel) decide(action ReviewAction) (tea.Model, tea.Cmd) {
	m.done = true
	if len(m.requests) == 0 {
		return m, tea.Quit
	}
	m.decision = ReviewDecision{Action: action, Request: m.requests[m.cursor]}
	if action == ReviewApprove {
		m.decision.Minutes = reviewDurations[m.duration]
	}
	return m, tea.Quit
}

func (m ReviewModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Pending unlock requests (%d)", len(m.requests))))
	b.WriteString("\n\n")

	for i, r := range m.requests {
		cursor, style := "  ", UnselectedStyle
		if i == m.cursor {
			cursor, style = CursorStyle.Render("▸ "), SelectedStyle
		}
		row := fmt.Sprintf("%-20s %-8s %-15s %s", r.DeviceName, r.DeviceType, r.RequestSourceIP, age(m.now.Sub(r.Timestamp)))
		b.WriteString(cursor + style.Render(row) + "\n")
		if r.Reason != "" {
			b.WriteString("    " + HelpStyle.Render(r.Reason) + "\n")
		}
	}

	b.WriteString("\nApprove for:")
	for i, minutes := range reviewDurations {
		label := " " + DurationLabel(minutes) + " "
		if i == m.duration {
			b.WriteString(" " + SelectedStyle.Render("["+strings.TrimSpace(label)+"]"))
		} else {
			b.WriteString(" " + UnselectedStyle.Render(label))
		}
	}
	b.WriteString("\n\n")
	b.WriteString(HelpStyle.Render("↑/↓ request • ←/→ duration • a approve • d deny • q quit"))
	return b.String()
}

func (m ReviewModel) Decision() ReviewDecision {
	return m.decision
}

// Review shows the requests and returns the operator's decision.
// Action is ReviewQuit when the operator leaves without deciding.
func Review(requests []models.UnlockRequest, now time.Time) (ReviewDecision, error) {
	result, err := tea.NewProgram(NewReview(requests, now)).Run()
	if err != nil {
		return ReviewDecision{}, fmt.Errorf("failed to run review: %w", err)
	}
	return result.(ReviewModel).Decision(), nil
}

// DurationLabel renders minutes as "15m", "1h" or "1h30m"
func DurationLabel(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%dm", h, m)
	}
}

func age(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
