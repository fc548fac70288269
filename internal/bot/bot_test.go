package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanoskov/ibadah_bot/internal/model"
	"github.com/ivanoskov/ibadah_bot/internal/repository"
	"github.com/ivanoskov/ibadah_bot/internal/repository/repotest"
	"github.com/ivanoskov/ibadah_bot/internal/service"
)

const chatID int64 = 42

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// drain returns what was sent since the last drain: message texts in
// order, and the number of photos.
func (f *fakeSender) drain() ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var (
		texts  []string
		photos int
	)
	for _, c := range f.sent {
		switch c := c.(type) {
		case tgbotapi.MessageConfig:
			texts = append(texts, c.Text)
		case tgbotapi.PhotoConfig:
			photos++
		}
	}
	f.sent = nil
	return texts, photos
}

func (f *fakeSender) texts() []string {
	texts, _ := f.drain()
	return texts
}

// lastMarkup returns the inline keyboard of the last message sent.
func (f *fakeSender) lastMarkup(t *testing.T) tgbotapi.InlineKeyboardMarkup {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	msg, ok := f.sent[len(f.sent)-1].(tgbotapi.MessageConfig)
	require.True(t, ok)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	return markup
}

type harness struct {
	t      *testing.T
	srv    *repotest.Server
	sender *fakeSender
	bot    *Bot
	cbSeq  int
}

func newHarness(t *testing.T, seed ...model.Ibadah) *harness {
	t.Helper()
	srv := repotest.NewServer(t, seed...)
	repo, err := repository.NewRESTRepository(srv.URL, nil)
	require.NoError(t, err)

	clock := func() time.Time { return time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC) }
	sender := &fakeSender{}
	b := NewBot(sender, func() *service.IbadahStore {
		return service.NewIbadahStore(repo, service.WithClock(clock))
	})
	t.Cleanup(b.Close)

	return &harness{t: t, srv: srv, sender: sender, bot: b}
}

func commandUpdate(chat int64, name string) tgbotapi.Update {
	text := "/" + name
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Chat:     &tgbotapi.Chat{ID: chat},
			Text:     text,
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
		},
	}
}

func (h *harness) command(name string) []string {
	h.t.Helper()
	require.NoError(h.t, h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, name)))
	return h.sender.texts()
}

func (h *harness) say(text string) []string {
	h.t.Helper()
	require.NoError(h.t, h.bot.HandleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text},
	}))
	return h.sender.texts()
}

func (h *harness) press(data string) []string {
	h.t.Helper()
	h.cbSeq++
	require.NoError(h.t, h.bot.HandleUpdate(context.Background(), tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      fmt.Sprintf("cb-%d", h.cbSeq),
			Data:    data,
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
		},
	}))
	return h.sender.texts()
}

func seed() []model.Ibadah {
	return []model.Ibadah{
		{ID: 5, Name: "Subuh", Category: model.CategoryMandatory, Date: model.NewDate(2024, time.January, 9)},
		{ID: 6, Name: "Dhuha", Category: model.CategoryVoluntary, Date: model.NewDate(2024, time.January, 10)},
	}
}

func TestStartShowsList(t *testing.T) {
	h := newHarness(t, seed()...)

	texts := h.command("start")
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Assalamu'alaikum")
	assert.Contains(t, texts[1], "1. Subuh · Wajib · 2024-01-09")
	assert.Contains(t, texts[1], "2. Dhuha · Sunah · 2024-01-10")
}

func TestListEmptyAndFailed(t *testing.T) {
	h := newHarness(t)
	texts := h.command("list")
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Belum ada ibadah")

	h.srv.Override(http.MethodGet, "/ibadah", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	texts = h.command("list")
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "⚠️ Gagal memuat data. Silakan coba lagi.")
	assert.NotContains(t, texts[0], "Belum ada ibadah")
}

func TestAddFlow(t *testing.T) {
	h := newHarness(t)

	assert.Contains(t, h.command("add")[0], "Masukkan nama ibadah")
	assert.Equal(t, []string{"Pilih jenis ibadah:"}, h.say("Tahajud"))
	assert.Contains(t, h.press(cbCategory+"sunah")[0], "Masukkan tanggal")
	confirm := h.press(cbDateToday)
	require.Len(t, confirm, 1)
	assert.Contains(t, confirm[0], "Nama: Tahajud\nJenis: Sunah\nTanggal: 2024-01-10")

	texts := h.press(cbSubmit)
	require.Len(t, texts, 2)
	assert.Equal(t, "✅ Berhasil\nIbadah berhasil ditambahkan", texts[0])
	assert.Contains(t, texts[1], "1. Tahajud · Sunah · 2024-01-10")

	records := h.srv.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "Tahajud", records[0].Name)
	assert.Equal(t, model.CategoryVoluntary, records[0].Category)
	assert.Len(t, h.sender.requests, 3)
}

func TestAddFlowTypedInput(t *testing.T) {
	h := newHarness(t)

	h.command("add")
	h.say("Maghrib")
	// unknown category asks again
	assert.Equal(t, []string{"Pilih jenis ibadah:"}, h.say("fardhu"))
	h.say("Wajib")
	assert.Contains(t, h.say("10-01-2024")[0], "Format tanggal salah")
	assert.Contains(t, h.say("2024-01-08")[0], "Tanggal: 2024-01-08")
	h.press(cbSubmit)

	records := h.srv.Records()
	require.Len(t, records, 1)
	assert.Equal(t, model.CategoryMandatory, records[0].Category)
	assert.Equal(t, "2024-01-08", records[0].Date.String())
}

func TestAddBlankNameIsRejectedLocally(t *testing.T) {
	h := newHarness(t)

	h.command("add")
	h.say("   ")
	h.press(cbCategory + "wajib")
	h.press(cbDateToday)

	texts := h.press(cbSubmit)
	require.Len(t, texts, 2)
	assert.Equal(t, "❌ Kesalahan Validasi\nNama ibadah tidak boleh kosong", texts[0])
	assert.Equal(t, "Masukkan nama ibadah:", texts[1])
	assert.Equal(t, 0, h.srv.Calls(http.MethodPost, "/ibadah"))

	// the form continues from the name step
	h.say("Ashar")
	h.press(cbCategory + "wajib")
	h.press(cbDateToday)
	h.press(cbSubmit)
	assert.Equal(t, 1, h.srv.Calls(http.MethodPost, "/ibadah"))
}

func TestAddServerRejection(t *testing.T) {
	h := newHarness(t)
	h.srv.Override(http.MethodPost, "/ibadah", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":{"tanggal_ibadah":["Tanggal tidak valid."]}}`))
	})

	h.command("add")
	h.say("Isya")
	h.press(cbCategory + "wajib")
	h.press(cbDateToday)
	texts := h.press(cbSubmit)

	require.Len(t, texts, 2)
	assert.Equal(t, "❌ Kesalahan Validasi\nTanggal tidak valid.", texts[0])
	// still on the confirm step
	assert.Contains(t, texts[1], "Nama: Isya")
}

func TestSubmitBeforeFormComplete(t *testing.T) {
	h := newHarness(t)
	h.command("add")
	assert.Equal(t, []string{"Formulir belum lengkap."}, h.press(cbSubmit))
	assert.Zero(t, h.srv.TotalCalls())
}

func TestEditFlowKeepsUnchangedFields(t *testing.T) {
	h := newHarness(t, seed()...)
	h.command("list")

	texts := h.press(cbEdit + "5")
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "✏️ Edit Ibadah")
	assert.Contains(t, texts[0], "Nama: Subuh")

	h.say("-")
	h.say("sunah")
	confirm := h.say("-")
	require.Len(t, confirm, 1)
	assert.Contains(t, confirm[0], "Nama: Subuh\nJenis: Sunah\nTanggal: 2024-01-09")

	texts = h.press(cbSubmit)
	require.Len(t, texts, 2)
	assert.Equal(t, "✅ Berhasil\nIbadah berhasil diperbarui", texts[0])
	assert.Equal(t, 1, h.srv.Calls(http.MethodPut, "/ibadah/5"))

	rec := h.srv.Records()[0]
	assert.Equal(t, "Subuh", rec.Name)
	assert.Equal(t, model.CategoryVoluntary, rec.Category)
	assert.Equal(t, "2024-01-09", rec.Date.String())
}

func TestEditUnknownRecord(t *testing.T) {
	h := newHarness(t, seed()...)
	texts := h.press(cbEdit + "99")
	assert.Equal(t, []string{"Ibadah tidak ditemukan. Muat ulang daftar."}, texts)
}

func TestCancelLeavesEditMode(t *testing.T) {
	h := newHarness(t, seed()...)
	h.command("list")
	h.press(cbEdit + "5")

	assert.Equal(t, []string{"Dibatalkan."}, h.press(cbCancel))
	texts := h.command("list")
	assert.NotContains(t, texts[0], "✏️")
	assert.Zero(t, h.srv.Calls(http.MethodPut, "/ibadah/5"))
}

func TestDeleteFlow(t *testing.T) {
	h := newHarness(t, seed()...)

	prompt := h.press(cbDelete + "5")
	require.Len(t, prompt, 1)
	assert.Contains(t, prompt[0], "\"Subuh\"")

	texts := h.press(cbConfirmDelete + "5")
	require.Len(t, texts, 2)
	assert.Equal(t, "✅ Berhasil\nIbadah berhasil dihapus", texts[0])
	assert.NotContains(t, texts[1], "Subuh")
	assert.Contains(t, texts[1], "Dhuha")
	assert.Len(t, h.srv.Records(), 1)
	// one load for the prompt, none after the delete
	assert.Equal(t, 1, h.srv.Calls(http.MethodGet, "/ibadah"))
}

func TestDeleteServerError(t *testing.T) {
	h := newHarness(t, seed()...)
	h.command("list")
	h.srv.Override(http.MethodDelete, "/ibadah/5", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"db error"}`))
	})

	texts := h.press(cbConfirmDelete + "5")
	require.Len(t, texts, 2)
	assert.Equal(t, "❌ Kesalahan Server\nStatus: 500\nPesan: {\"message\":\"db error\"}", texts[0])
	assert.Contains(t, texts[1], "Subuh")
}

func TestRecap(t *testing.T) {
	h := newHarness(t, seed()...)

	require.NoError(t, h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, "rekap")))
	texts, photos := h.sender.drain()

	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "📊 Rekap 2024-01-04 s/d 2024-01-10")
	assert.Contains(t, texts[0], "Total: 2")
	assert.Equal(t, 2, photos)
}

func TestRecapEmpty(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, []string{"Belum ada ibadah dalam 7 hari terakhir."}, h.command("rekap"))
}

func TestStopClosesSession(t *testing.T) {
	h := newHarness(t, seed()...)
	h.command("start")

	assert.Equal(t, []string{"Sesi ditutup. Kirim /start untuk memulai lagi."}, h.command("stop"))
	assert.Equal(t, []string{"Tidak ada sesi aktif."}, h.say(btnStop))
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	texts := h.command("foo")
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Perintah tidak dikenal")
}

func TestCallbacksAreAnswered(t *testing.T) {
	h := newHarness(t, seed()...)
	h.press(cbRefresh)
	h.press(cbBack)
	h.press(cbDateKeep)

	h.sender.mu.Lock()
	defer h.sender.mu.Unlock()
	require.Len(t, h.sender.requests, 3)
	for i, req := range h.sender.requests {
		cb, ok := req.(tgbotapi.CallbackConfig)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("cb-%d", i+1), cb.CallbackQueryID)
	}
}

func TestHandleWebhook(t *testing.T) {
	h := newHarness(t, seed()...)

	body := fmt.Sprintf(`{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":%d,"type":"private"},"text":"/list","entities":[{"type":"bot_command","offset":0,"length":5}]}}`, chatID)
	require.NoError(t, h.bot.HandleWebhook(context.Background(), []byte(body)))

	texts := h.sender.texts()
	require.Len(t, texts, 1)
	assert.True(t, strings.HasPrefix(texts[0], "📿 Daftar Ibadah"))

	assert.Error(t, h.bot.HandleWebhook(context.Background(), []byte("{")))
}

func TestStartRequiresPoller(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.bot.Start(context.Background()))
}

func TestMainKeyboard(t *testing.T) {
	h := newHarness(t)
	kb := h.bot.getMainKeyboard()

	require.Len(t, kb.Keyboard, 2)
	assert.Equal(t, btnList, kb.Keyboard[0][0].Text)
	assert.Equal(t, btnAdd, kb.Keyboard[0][1].Text)
	assert.Equal(t, btnRecap, kb.Keyboard[1][0].Text)
	assert.Equal(t, btnStop, kb.Keyboard[1][1].Text)
	assert.True(t, kb.ResizeKeyboard)
}

func manyRecords(n int) []model.Ibadah {
	names := []string{"Subuh", "Dzuhur", "Ashar", "Maghrib", "Isya", "Tahajud berjamaah di masjid dekat rumah"}
	records := make([]model.Ibadah, 0, n)
	for i := 0; i < n; i++ {
		category := model.CategoryMandatory
		if i%len(names) == len(names)-1 {
			category = model.CategoryVoluntary
		}
		records = append(records, model.Ibadah{
			ID:       int64(i + 1),
			Name:     names[i%len(names)],
			Category: category,
			Date:     model.NewDate(2024, time.January, 1).AddDays(i / len(names)),
		})
	}
	return records
}

func inlineButtons(markup tgbotapi.InlineKeyboardMarkup) (n int, data []string) {
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			n++
			if btn.CallbackData != nil {
				data = append(data, *btn.CallbackData)
			}
		}
	}
	return n, data
}

func TestLongListIsPaginated(t *testing.T) {
	h := newHarness(t, manyRecords(84)...)

	require.NoError(t, h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, "list")))
	markup := h.sender.lastMarkup(t)
	texts := h.sender.texts()
	require.Len(t, texts, 1)

	// Telegram counts message length in UTF-16 code units
	assert.LessOrEqual(t, len(utf16.Encode([]rune(texts[0]))), 4096)
	assert.Contains(t, texts[0], "1. Subuh")
	assert.Contains(t, texts[0], "10. Maghrib")
	assert.NotContains(t, texts[0], "11. ")
	assert.Contains(t, texts[0], "Halaman 1/9 · 84 ibadah")

	buttons, data := inlineButtons(markup)
	assert.LessOrEqual(t, buttons, 2*listPageSize+2)
	assert.Contains(t, data, cbPage+"1")
	assert.NotContains(t, data, cbPage+"-1")
	assert.Contains(t, data, cbEdit+"10")
	assert.NotContains(t, data, cbEdit+"11")

	texts = h.press(cbPage + "8")
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "81. Ashar")
	assert.Contains(t, texts[0], "84. Tahajud berjamaah")
	assert.Contains(t, texts[0], "Halaman 9/9")
	assert.NotContains(t, texts[0], "80. ")

	// a page past the end shows the last one
	texts = h.press(cbPage + "40")
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Halaman 9/9")
}

func TestDeleteKeepsPageInRange(t *testing.T) {
	h := newHarness(t, manyRecords(11)...)
	h.command("list")
	assert.Contains(t, h.press(cbPage + "1")[0], "11. Isya")

	texts := h.press(cbConfirmDelete + "11")
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], "10. Maghrib")
	assert.NotContains(t, texts[1], "Halaman")
}

func TestLongNamesAreShortened(t *testing.T) {
	long := strings.Repeat("dzikir ", 200)
	h := newHarness(t, model.Ibadah{ID: 1, Name: long, Category: model.CategoryVoluntary, Date: model.NewDate(2024, time.January, 1)})

	require.NoError(t, h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, "list")))
	markup := h.sender.lastMarkup(t)
	texts := h.sender.texts()

	require.Len(t, texts, 1)
	assert.Less(t, len([]rune(texts[0])), 200)
	assert.Contains(t, texts[0], "…")
	assert.LessOrEqual(t, len([]rune(markup.InlineKeyboard[0][0].Text)), maxButtonName+3)
}

func TestSlowChatDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t, seed()...)

	release := make(chan struct{})
	var once sync.Once
	defer once.Do(func() { close(release) })

	var (
		mu    sync.Mutex
		first = true
	)
	h.srv.Override(http.MethodGet, "/ibadah", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		block := first
		first = false
		mu.Unlock()
		if block {
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	slow := make(chan error, 1)
	go func() { slow <- h.bot.HandleUpdate(context.Background(), commandUpdate(1, "list")) }()
	require.Eventually(t, func() bool {
		return h.srv.Calls(http.MethodGet, "/ibadah") == 1
	}, time.Second, 5*time.Millisecond)

	fast := make(chan error, 1)
	go func() { fast <- h.bot.HandleUpdate(context.Background(), commandUpdate(2, "list")) }()
	select {
	case err := <-fast:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second chat waited for the first one")
	}

	once.Do(func() { close(release) })
	select {
	case err := <-slow:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("first chat never finished")
	}
}

func TestCallbackWithoutMessageIsAnswered(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bot.HandleUpdate(context.Background(), tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{ID: "orphan", Data: cbRefresh},
	}))

	h.sender.mu.Lock()
	defer h.sender.mu.Unlock()
	require.Len(t, h.sender.requests, 1)
	assert.Empty(t, h.sender.sent)
	assert.Zero(t, h.srv.TotalCalls())
}
