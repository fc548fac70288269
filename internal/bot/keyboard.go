package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivanoskov/ibadah_bot/internal/model"
)

const (
	btnList  = "📋 Daftar Ibadah"
	btnAdd   = "➕ Tambah Ibadah"
	btnRecap = "📊 Rekap"
	btnStop  = "❌ Tutup"
)

// maxButtonName is the longest record name shown on an inline button.
const maxButtonName = 24

// getMainKeyboard returns the reply keyboard with the main menu.
func (b *Bot) getMainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnList),
			tgbotapi.NewKeyboardButton(btnAdd),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnRecap),
			tgbotapi.NewKeyboardButton(btnStop),
		),
	)
}

// getListKeyboard has an edit and a delete button per record on page,
// then page navigation when there is more than one page.
func (b *Bot) getListKeyboard(records []model.Ibadah, page int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	start, end := pageBounds(page, len(records))
	for _, r := range records[start:end] {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ "+shorten(r.Name, maxButtonName), fmt.Sprintf("%s%d", cbEdit, r.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDelete, r.ID)),
		))
	}

	if pages := pageCount(len(records)); pages > 1 {
		var nav []tgbotapi.InlineKeyboardButton
		if page > 0 {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️", fmt.Sprintf("%s%d", cbPage, page-1)))
		}
		if page < pages-1 {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("➡️", fmt.Sprintf("%s%d", cbPage, page+1)))
		}
		rows = append(rows, nav)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Muat ulang", cbRefresh),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// getCategoryKeyboard offers one button per category.
func (b *Bot) getCategoryKeyboard() tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, c := range model.Categories {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(c.Label(), cbCategory+string(c)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// getDateKeyboard offers today and, while editing, keeping the current date.
func (b *Bot) getDateKeyboard(editing bool, current model.Date) tgbotapi.InlineKeyboardMarkup {
	row := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📅 Hari ini", cbDateToday),
	)
	if editing && !current.IsZero() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Tetap "+current.String(), cbDateKeep))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// getConfirmKeyboard is shown under the filled-in form.
func (b *Bot) getConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💾 Simpan", cbSubmit),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Batal", cbCancel),
		),
	)
}

// getDeleteKeyboard asks to confirm deleting id.
func (b *Bot) getDeleteKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Hapus", fmt.Sprintf("%s%d", cbConfirmDelete, id)),
			tgbotapi.NewInlineKeyboardButtonData("🔙 Batal", cbBack),
		),
	)
}
