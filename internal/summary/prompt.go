package summary

import (
	"fmt"
	"strings"

	"rollcall/internal/model"
)

// Fixed texts returned instead of a model answer.
const (
	CalmDayText     = "All students are present today. No critical disciplinary issues reported. A smooth day."
	EmptyAnswerText = "Unable to generate analysis."
	FallbackText    = "AI Service unavailable. Please check API Key configuration."
)

// BuildPrompt assembles the leadership prompt from one day's logs and that
// day's escalated incidents. calm is true when there is nothing to report, in
// which case no prompt is needed.
func BuildPrompt(logs []model.ClassAttendanceLog, escalated []model.DisciplinaryRecord, classes []model.ClassSection) (prompt string, calm bool) {
	names := make(map[string]string, len(classes))
	for _, c := range classes {
		names[c.ID] = c.DisplayName()
	}
	className := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id
	}

	var absent, late int
	var notes []string
	for _, l := range logs {
		for _, r := range l.Records {
			switch r.Status {
			case model.StatusAbsent:
				absent++
				if r.Reason != "" {
					notes = append(notes, fmt.Sprintf("[Attendance] Class %s (%s): Absent reason: %q", className(l.ClassID), l.Session, r.Reason))
				}
			case model.StatusLate:
				late++
				if r.Reason != "" {
					notes = append(notes, fmt.Sprintf("[Attendance] Class %s (%s): Late reason: %q", className(l.ClassID), l.Session, r.Reason))
				}
			}
		}
	}
	for _, d := range escalated {
		notes = append(notes, fmt.Sprintf("[CRITICAL DISCIPLINARY INCIDENT] Student %s (%s) reported by %s: %q", d.StudentName, d.ClassName, d.ReportedBy, d.Description))
	}

	if len(notes) == 0 && absent == 0 && late == 0 {
		return "", true
	}

	var b strings.Builder
	b.WriteString("You are an assistant to the Head of School (HOS).\n")
	b.WriteString("Analyze the following daily attendance and disciplinary data for the MYP section.\n\n")
	b.WriteString("Data:\n")
	fmt.Fprintf(&b, "Total Classes Logged: %d.\n", len(logs))
	fmt.Fprintf(&b, "Total Absent: %d.\n", absent)
	fmt.Fprintf(&b, "Total Late: %d.\n", late)
	fmt.Fprintf(&b, "Total Critical Disciplinary Incidents (Escalated to HOS): %d.\n\n", len(escalated))
	b.WriteString("Specific Logs & Issues:\n")
	for _, n := range notes {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	b.WriteString("\nPlease provide a professional, concise executive summary (max 3-4 sentences).\n\n")
	b.WriteString("Guidelines:\n")
	b.WriteString("1. Prioritize serious disciplinary incidents if any exist.\n")
	b.WriteString("2. Highlight patterns in attendance (e.g., \"High lateness in MYP 4\").\n")
	b.WriteString("3. If it's a calm day, say so briefly.\n\n")
	b.WriteString("Do not use markdown formatting like bold or lists, just a clean paragraph.\n")
	return b.String(), false
}
