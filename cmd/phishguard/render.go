package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/app"
	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/cache"
	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

const columnWidth = 48

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func dateColumn(e *types.Email) string {
	if !e.DateValid {
		if e.RawDate == "" {
			return "-"
		}
		return truncate(e.RawDate, 24)
	}
	return humanize.Time(e.Date)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	return table
}

// renderInbox lists messages; labeled may be nil or hold one entry per message
func renderInbox(w io.Writer, emails []*types.Email, labeled []app.LabeledEmail) {
	if len(emails) == 0 {
		fmt.Fprintln(w, "No messages")
		return
	}

	header := []string{"ID", "Date", "From", "Subject", "Size"}
	if labeled != nil {
		header = append(header, "Label", "Source")
	}
	table := newTable(w, header...)

	for i, e := range emails {
		size := "-"
		if e.RawSize > 0 {
			size = humanize.Bytes(uint64(e.RawSize))
		}
		row := []string{e.ID, dateColumn(e), truncate(e.From, columnWidth/2), truncate(e.Subject, columnWidth), size}
		if labeled != nil && i < len(labeled) {
			row = append(row, string(labeled[i].Result.Label), string(labeled[i].Result.Source))
		}
		table.Append(row)
	}
	table.Render()
}

func renderMessage(w io.Writer, l app.LabeledEmail) {
	e := l.Email
	fmt.Fprintf(w, "Subject: %s\n", e.Subject)
	fmt.Fprintf(w, "From:    %s\n", e.From)
	fmt.Fprintf(w, "Date:    %s\n", dateColumn(e))
	fmt.Fprintf(w, "Label:   %s (%s)\n\n", l.Result.Label, l.Result.Source)
	fmt.Fprintln(w, e.Body)
}

func renderHistory(w io.Writer, runs []cache.FetchRun, verdicts []cache.Verdict, counts map[types.Label]int) {
	fmt.Fprintf(w, "Phishing: %s  Spam: %s  Normal: %s\n\n",
		humanize.Comma(int64(counts[types.LabelPhishing])),
		humanize.Comma(int64(counts[types.LabelSpam])),
		humanize.Comma(int64(counts[types.LabelNormal])),
	)

	runTable := newTable(w, "Fetched", "Account", "Messages", "Skipped", "Took")
	for _, r := range runs {
		runTable.Append([]string{
			humanize.Time(r.StartedAt),
			r.Account,
			fmt.Sprint(r.Fetched),
			fmt.Sprint(r.Skipped),
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	runTable.Render()
	fmt.Fprintln(w)

	verdictTable := newTable(w, "When", "Origin", "Sender", "Label", "Source")
	for _, v := range verdicts {
		verdictTable.Append([]string{
			humanize.Time(v.ClassifiedAt),
			string(v.Origin),
			truncate(v.Sender, columnWidth/2),
			string(v.Label),
			string(v.Source),
		})
	}
	verdictTable.Render()
}
