package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"speech-coach-service/internal/models"
	"speech-coach-service/internal/service/session"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	return table
}

func renderSnapshot(w io.Writer, s session.Snapshot) {
	table := newTable(w, "Field", "Value")
	table.Append([]string{"Session", orDash(s.SessionID)})
	table.Append([]string{"User", orDash(s.UserID)})
	table.Append([]string{"State", s.State.String()})
	if s.Question != nil {
		table.Append([]string{"Question", s.Question.ID + ": " + s.Question.Question})
	}
	switch s.State {
	case session.StateSpeaking:
		table.Append([]string{"Remaining", fmt.Sprintf("%ds", s.RemainingSeconds)})
		table.Append([]string{"Elapsed", fmt.Sprintf("%.1fs", s.ElapsedSeconds)})
	case session.StateResults:
		table.Append([]string{"Duration", fmt.Sprintf("%.1fs", s.DurationSeconds)})
		if s.Analysis != nil {
			table.Append([]string{"Overall", strconv.Itoa(s.Analysis.OverallScore)})
		}
	}
	if s.Transcript != "" {
		table.Append([]string{"Transcript", s.Transcript})
	}
	if s.Degraded {
		table.Append([]string{"Degraded", "yes"})
	}
	if s.Error != "" {
		table.Append([]string{"Error", s.Error})
	}
	table.Render()

	if len(s.Feedback) > 0 {
		fmt.Fprintln(w)
		renderFeedback(w, s.Feedback)
	} else if len(s.LiveFeedback) > 0 {
		fmt.Fprintln(w)
		renderFeedback(w, s.LiveFeedback)
	}
}

func renderAnalysis(w io.Writer, a models.SpeechAnalysis) {
	table := newTable(w, "Metric", "Value")
	table.Append([]string{"Overall score", strconv.Itoa(a.OverallScore)})
	table.Append([]string{"Volume consistency", fmt.Sprintf("%.0f", a.Volume.Consistency)})
	table.Append([]string{"Average volume", fmt.Sprintf("%.1f", a.Volume.Average)})
	table.Append([]string{"Speech rate", fmt.Sprintf("%d wpm", a.Clarity.SpeechRate)})
	table.Append([]string{"Filler words", fmt.Sprintf("%d %s", a.Clarity.FillerWordCount, strings.Join(a.Clarity.FillerWords, ","))})
	table.Append([]string{"Articulation", strconv.Itoa(a.Clarity.Articulation)})
	table.Append([]string{"Relevance", strconv.Itoa(a.Coherence.RelevanceScore)})
	table.Append([]string{"Structure", strconv.Itoa(a.Coherence.StructureScore)})
	table.Append([]string{"Completeness", strconv.Itoa(a.Coherence.CompletenessScore)})
	table.Render()
}

func renderFeedback(w io.Writer, items []models.FeedbackItem) {
	table := newTable(w, "Priority", "Type", "Category", "Message", "Suggestion")
	for _, it := range items {
		table.Append([]string{
			string(it.Priority),
			string(it.Type),
			string(it.Category),
			it.Message,
			it.Suggestion,
		})
	}
	table.Render()
}

func renderQuestions(w io.Writer, qs []models.SpeakingQuestion) {
	table := newTable(w, "ID", "Category", "Difficulty", "Time Limit", "Question")
	for _, q := range qs {
		table.Append([]string{
			q.ID,
			string(q.Category),
			string(q.Difficulty),
			fmt.Sprintf("%ds", q.TimeLimitSeconds),
			q.Question,
		})
	}
	table.Render()
}

func renderResult(w io.Writer, r models.SessionResult) {
	table := newTable(w, "Completed", "Session", "User", "Question", "Category", "Duration", "Score", "Degraded")
	degraded := "no"
	if r.Degraded {
		degraded = "yes"
	}
	table.Append([]string{
		time.UnixMilli(r.Timestamp).Format("2006-01-02 15:04:05"),
		r.SessionID,
		orDash(r.UserID),
		r.QuestionID,
		string(r.Category),
		fmt.Sprintf("%.1fs", r.DurationSeconds),
		strconv.Itoa(r.Analysis.OverallScore),
		degraded,
	})
	table.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
