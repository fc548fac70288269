package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/ivanoskov/ibadah_bot/internal/model"
	"github.com/ivanoskov/ibadah_bot/internal/service"
)

const (
	cbEdit          = "edit_"
	cbDelete        = "delete_"
	cbConfirmDelete = "confirm_delete_"
	cbCategory      = "cat_"
	cbDateToday     = "date_today"
	cbDateKeep      = "date_keep"
	cbSubmit        = "action_submit"
	cbCancel        = "action_cancel"
	cbRefresh       = "action_refresh"
	cbBack          = "action_back"
	cbPage          = "page_"
)

// HandleUpdate dispatches one update. Updates of the same chat are handled
// one at a time; different chats proceed in parallel.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	chatID, ok := chatOf(update)
	if !ok {
		if update.CallbackQuery != nil {
			b.answerCallback(update.CallbackQuery)
		}
		return nil
	}
	lock := b.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	switch {
	case update.CallbackQuery != nil:
		return b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Chat != nil:
		if update.Message.IsCommand() {
			return b.handleCommand(ctx, update.Message)
		}
		return b.handleMessage(ctx, update.Message)
	}
	return nil
}

// chatOf returns the chat an update belongs to.
func chatOf(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.CallbackQuery != nil:
		if m := update.CallbackQuery.Message; m != nil && m.Chat != nil {
			return m.Chat.ID, true
		}
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID, true
	}
	return 0, false
}

// handleCommand runs a slash command.
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	switch message.Command() {
	case "start":
		b.handleStart(ctx, chatID)
	case "list":
		b.handleList(ctx, chatID, true)
	case "add":
		b.handleAdd(chatID)
	case "rekap":
		b.handleRecap(ctx, chatID)
	case "batal":
		b.handleCancel(chatID)
	case "stop":
		b.handleStop(chatID)
	default:
		b.sendText(chatID, "Perintah tidak dikenal. Kirim /start untuk melihat menu.")
	}
	return nil
}

// handleStart greets the user and shows the first list page.
func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	s, _ := b.session(chatID)
	s.page = 0

	msg := tgbotapi.NewMessage(chatID,
		"Assalamu'alaikum! 🕌\n\n"+
			"Bot ini membantu mencatat ibadah harian Anda:\n\n"+
			"• Menambah, mengubah dan menghapus catatan ibadah\n"+
			"• Membedakan ibadah wajib dan sunah\n"+
			"• Menampilkan rekap 7 hari terakhir\n\n"+
			"Pilih menu:")
	msg.ReplyMarkup = b.getMainKeyboard()
	b.send(msg)

	b.handleList(ctx, chatID, false)
}

// handleList loads the list and shows it. A failed load still shows the
// previous records with the error line.
func (b *Bot) handleList(ctx context.Context, chatID int64, refresh bool) {
	s, _ := b.session(chatID)

	var err error
	if refresh {
		err = s.store.Refresh(ctx)
	} else {
		err = s.store.List(ctx)
	}
	if err != nil {
		log.Debug().Err(err).Int64("chat_id", chatID).Msg("[bot] list kept stale records")
	}
	b.showList(chatID, s)
}

// handleAdd starts an empty create form.
func (b *Bot) handleAdd(chatID int64) {
	s, _ := b.session(chatID)
	s.store.CancelEdit()
	s.step = stepName
	b.sendText(chatID, "➕ Tambah Ibadah Baru\n\nMasukkan nama ibadah:")
}

// handleCancel drops the form and any edit target.
func (b *Bot) handleCancel(chatID int64) {
	s, _ := b.session(chatID)
	s.store.CancelEdit()
	s.step = stepIdle

	msg := tgbotapi.NewMessage(chatID, "Dibatalkan.")
	msg.ReplyMarkup = b.getMainKeyboard()
	b.send(msg)
}

// handleStop ends the chat session.
func (b *Bot) handleStop(chatID int64) {
	text := "Tidak ada sesi aktif."
	if b.endSession(chatID) {
		text = "Sesi ditutup. Kirim /start untuk memulai lagi."
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	b.send(msg)
}

// handleRecap sends the weekly recap text and its charts.
func (b *Bot) handleRecap(ctx context.Context, chatID int64) {
	s, _ := b.session(chatID)
	b.ensureLoaded(ctx, s)

	summary := s.store.WeeklySummary()
	if summary.Total() == 0 {
		b.sendText(chatID, "Belum ada ibadah dalam 7 hari terakhir.")
		return
	}
	b.sendText(chatID, formatSummary(summary))

	daily, err := b.charts.GenerateDailyChart(summary)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("[bot] daily chart failed")
	} else if daily != nil {
		b.send(tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "rekap-harian.png", Bytes: daily}))
	}

	pie, err := b.charts.GenerateCategoryPieChart(summary)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("[bot] category chart failed")
	} else if pie != nil {
		b.send(tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "rekap-jenis.png", Bytes: pie}))
	}
}

// handleMessage handles menu buttons and typed form input.
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	text := message.Text

	switch text {
	case btnList:
		b.handleList(ctx, chatID, true)
		return nil
	case btnAdd:
		b.handleAdd(chatID)
		return nil
	case btnRecap:
		b.handleRecap(ctx, chatID)
		return nil
	case btnStop:
		b.handleStop(chatID)
		return nil
	}

	s, _ := b.session(chatID)
	snap := s.store.Snapshot()
	draft := snap.Draft

	switch s.step {
	case stepName:
		// "-" keeps the current name while editing
		if !(snap.Editing && strings.TrimSpace(text) == "-") {
			draft.Name = text
		}
		s.store.SetDraft(draft)
		b.askCategory(chatID, s)

	case stepCategory:
		c, err := model.ParseCategory(text)
		if err != nil {
			b.askCategory(chatID, s)
			return nil
		}
		draft.Category = c
		s.store.SetDraft(draft)
		b.askDate(chatID, s)

	case stepDate:
		input := strings.ToLower(strings.TrimSpace(text))
		switch {
		case input == "hari ini":
			draft.Date = s.store.Today()
		case input == "-" && snap.Editing:
		default:
			d, err := model.ParseDate(input)
			if err != nil {
				b.sendText(chatID, "Format tanggal salah. Gunakan YYYY-MM-DD, contoh 2024-01-01.")
				return nil
			}
			draft.Date = d
		}
		s.store.SetDraft(draft)
		b.askConfirm(chatID, s)

	case stepConfirm:
		b.askConfirm(chatID, s)

	default:
		msg := tgbotapi.NewMessage(chatID, "Pilih menu:")
		msg.ReplyMarkup = b.getMainKeyboard()
		b.send(msg)
	}
	return nil
}

// handleCallback handles inline button presses.
func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	defer b.answerCallback(callback)

	chatID := callback.Message.Chat.ID
	s, _ := b.session(chatID)
	data := callback.Data

	switch {
	case data == cbRefresh:
		b.handleList(ctx, chatID, true)

	case data == cbSubmit:
		b.handleSubmit(ctx, chatID, s)

	case data == cbCancel:
		b.handleCancel(chatID)

	case data == cbBack:
		msg := tgbotapi.NewMessage(chatID, "Pilih menu:")
		msg.ReplyMarkup = b.getMainKeyboard()
		b.send(msg)

	case data == cbDateToday:
		if s.step != stepDate {
			return nil
		}
		draft := s.store.Draft()
		draft.Date = s.store.Today()
		s.store.SetDraft(draft)
		b.askConfirm(chatID, s)

	case data == cbDateKeep:
		if s.step != stepDate {
			return nil
		}
		b.askConfirm(chatID, s)

	case strings.HasPrefix(data, cbCategory):
		if s.step != stepCategory {
			return nil
		}
		c, err := model.ParseCategory(strings.TrimPrefix(data, cbCategory))
		if err != nil {
			return err
		}
		draft := s.store.Draft()
		draft.Category = c
		s.store.SetDraft(draft)
		b.askDate(chatID, s)

	case strings.HasPrefix(data, cbPage):
		page, err := strconv.Atoi(strings.TrimPrefix(data, cbPage))
		if err != nil {
			return err
		}
		b.ensureLoaded(ctx, s)
		s.page = page
		b.showList(chatID, s)

	case strings.HasPrefix(data, cbConfirmDelete):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, cbConfirmDelete), 10, 64)
		if err != nil {
			return err
		}
		b.handleDelete(ctx, chatID, s, id)

	case strings.HasPrefix(data, cbDelete):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, cbDelete), 10, 64)
		if err != nil {
			return err
		}
		b.ensureLoaded(ctx, s)
		text := "Apakah Anda yakin ingin menghapus ibadah ini?"
		if r, ok := s.store.Record(id); ok {
			text = "Apakah Anda yakin ingin menghapus ibadah \"" + r.Name + "\"?"
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ReplyMarkup = b.getDeleteKeyboard(id)
		b.send(msg)

	case strings.HasPrefix(data, cbEdit):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, cbEdit), 10, 64)
		if err != nil {
			return err
		}
		b.ensureLoaded(ctx, s)
		b.handleEdit(chatID, s, id)
	}
	return nil
}

// handleEdit loads record id into the form in edit mode.
func (b *Bot) handleEdit(chatID int64, s *session, id int64) {
	r, ok := s.store.Record(id)
	if !ok {
		b.sendText(chatID, "Ibadah tidak ditemukan. Muat ulang daftar.")
		return
	}
	s.store.EnterEdit(r)
	s.step = stepName
	b.sendText(chatID, formatDraft(s.store.Draft(), true)+"\n\nKirim nama baru, atau - untuk tetap.")
}

// handleSubmit sends the confirmed form.
func (b *Bot) handleSubmit(ctx context.Context, chatID int64, s *session) {
	if s.step != stepConfirm {
		b.sendText(chatID, "Formulir belum lengkap.")
		return
	}

	err := s.store.Submit(ctx)
	b.flushNotice(chatID, s)

	var verr *model.ValidationError
	switch {
	case err == nil:
		s.step = stepIdle
		b.showList(chatID, s)
	case errors.As(err, &verr):
		s.step = stepName
		b.sendText(chatID, "Masukkan nama ibadah:")
	default:
		log.Debug().Err(err).Int64("chat_id", chatID).Msg("[bot] submit failed")
		b.askConfirm(chatID, s)
	}
}

// handleDelete deletes id and shows the list without fetching it again.
func (b *Bot) handleDelete(ctx context.Context, chatID int64, s *session, id int64) {
	if err := s.store.Delete(ctx, id); err != nil {
		log.Debug().Err(err).Int64("chat_id", chatID).Int64("id", id).Msg("[bot] delete failed")
	}
	b.flushNotice(chatID, s)
	b.showList(chatID, s)
}

// ensureLoaded fetches the list once for a session that never loaded it,
// as happens for every webhook invocation.
func (b *Bot) ensureLoaded(ctx context.Context, s *session) {
	if s.store.Snapshot().Status == service.StatusIdle {
		_ = s.store.List(ctx)
	}
}

// askCategory moves the form to the category step.
func (b *Bot) askCategory(chatID int64, s *session) {
	s.step = stepCategory
	msg := tgbotapi.NewMessage(chatID, "Pilih jenis ibadah:")
	msg.ReplyMarkup = b.getCategoryKeyboard()
	b.send(msg)
}

// askDate moves the form to the date step.
func (b *Bot) askDate(chatID int64, s *session) {
	s.step = stepDate
	snap := s.store.Snapshot()
	msg := tgbotapi.NewMessage(chatID, "Masukkan tanggal (YYYY-MM-DD) atau ketik \"hari ini\":")
	msg.ReplyMarkup = b.getDateKeyboard(snap.Editing, snap.Draft.Date)
	b.send(msg)
}

// askConfirm shows the filled-in form for confirmation.
func (b *Bot) askConfirm(chatID int64, s *session) {
	s.step = stepConfirm
	snap := s.store.Snapshot()
	msg := tgbotapi.NewMessage(chatID, formatDraft(snap.Draft, snap.Editing))
	msg.ReplyMarkup = b.getConfirmKeyboard()
	b.send(msg)
}

// showList sends the session's current list page.
func (b *Bot) showList(chatID int64, s *session) {
	snap := s.store.Snapshot()
	s.page = clampPage(s.page, len(snap.Records))
	msg := tgbotapi.NewMessage(chatID, formatList(snap, s.page))
	msg.ReplyMarkup = b.getListKeyboard(snap.Records, s.page)
	b.send(msg)
}

// flushNotice shows the pending notice once.
func (b *Bot) flushNotice(chatID int64, s *session) {
	snap := s.store.Snapshot()
	if snap.Notice == nil {
		return
	}
	b.sendText(chatID, formatNotice(snap.Notice))
	s.store.DismissNotice()
}

// answerCallback stops the client's loading indicator on the pressed button.
func (b *Bot) answerCallback(callback *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		log.Warn().Err(err).Msg("[bot] callback answer failed")
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}
