package bot

import (
	"fmt"
	"strings"

	"github.com/ivanoskov/ibadah_bot/internal/model"
	"github.com/ivanoskov/ibadah_bot/internal/service"
)

const (
	// listPageSize keeps one list message well under Telegram's text and
	// inline keyboard limits.
	listPageSize = 10
	maxListName  = 64
)

// pageCount is the number of list pages for n records, at least one.
func pageCount(n int) int {
	if n == 0 {
		return 1
	}
	return (n + listPageSize - 1) / listPageSize
}

// clampPage moves page into the range valid for n records.
func clampPage(page, n int) int {
	return max(0, min(page, pageCount(n)-1))
}

// pageBounds returns the slice bounds of the records shown on page.
func pageBounds(page, n int) (int, int) {
	page = clampPage(page, n)
	start := page * listPageSize
	return start, min(start+listPageSize, n)
}

// shorten cuts s to at most n runes.
func shorten(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// formatList renders one page of the collection. Numbering follows the
// whole list, not the page.
func formatList(snap service.Snapshot, page int) string {
	var sb strings.Builder
	sb.WriteString("📿 Daftar Ibadah\n")
	if snap.Error != "" {
		sb.WriteString("⚠️ " + snap.Error + "\n")
	}
	sb.WriteString("\n")

	if len(snap.Records) == 0 {
		if snap.Status != service.StatusFailed {
			sb.WriteString("Belum ada ibadah. Tambahkan lewat " + btnAdd + ".")
		}
		return strings.TrimRight(sb.String(), "\n")
	}

	page = clampPage(page, len(snap.Records))
	start, end := pageBounds(page, len(snap.Records))
	for i := start; i < end; i++ {
		r := snap.Records[i]
		marker := ""
		if snap.Editing && snap.EditID == r.ID {
			marker = " ✏️"
		}
		fmt.Fprintf(&sb, "%d. %s · %s · %s%s\n", i+1, shorten(r.Name, maxListName), r.Category.Label(), r.Date, marker)
	}
	if pages := pageCount(len(snap.Records)); pages > 1 {
		fmt.Fprintf(&sb, "\nHalaman %d/%d · %d ibadah", page+1, pages, len(snap.Records))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatNotice renders a notice with a success or error icon.
func formatNotice(n *service.Notice) string {
	icon := "✅"
	if n.Kind == service.NoticeError {
		icon = "❌"
	}
	return fmt.Sprintf("%s %s\n%s", icon, n.Title, n.Message)
}

// formatDraft renders the form as it will be submitted.
func formatDraft(d model.Draft, editing bool) string {
	title := "➕ Tambah Ibadah Baru"
	if editing {
		title = "✏️ Edit Ibadah"
	}
	return fmt.Sprintf("%s\n\nNama: %s\nJenis: %s\nTanggal: %s", title, d.Name, d.Category.Label(), d.Date)
}

// formatSummary renders the recap totals and one line per day.
func formatSummary(s *service.Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Rekap %s s/d %s\n\n", s.From, s.To)
	fmt.Fprintf(&sb, "%s: %d\n%s: %d\nTotal: %d\n\n",
		model.CategoryMandatory.Label(), s.Mandatory,
		model.CategoryVoluntary.Label(), s.Voluntary,
		s.Total())
	for _, day := range s.Days {
		fmt.Fprintf(&sb, "%s  %d/%d\n", day.Date, day.Mandatory, day.Voluntary)
	}
	return strings.TrimRight(sb.String(), "\n")
}
