package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ivanoskov/ibadah_bot/internal/repository"
)

const (
	titleSuccess    = "Berhasil"
	titleValidation = "Kesalahan Validasi"
	titleError      = "Gagal"
	titleServer     = "Kesalahan Server"
	titleNetwork    = "Kesalahan Jaringan"

	msgLoadFailed   = "Gagal memuat data. Silakan coba lagi."
	msgCreated      = "Ibadah berhasil ditambahkan"
	msgUpdated      = "Ibadah berhasil diperbarui"
	msgDeleted      = "Ibadah berhasil dihapus"
	msgCreateFailed = "Gagal menambahkan ibadah. Silakan coba lagi."
	msgUpdateFailed = "Gagal memperbarui ibadah. Silakan coba lagi."
	msgNoResponse   = "Tidak ada respons dari server. Periksa koneksi Anda."
)

// writeFailureNotice builds the notice for a failed create or update.
// Server-side field errors are shown verbatim, one per line.
func writeFailureNotice(err error, generic string) *Notice {
	var rve *repository.RemoteValidationError
	if errors.As(err, &rve) {
		return &Notice{Kind: NoticeError, Title: titleValidation, Message: strings.Join(rve.Messages(), "\n")}
	}
	return &Notice{Kind: NoticeError, Title: titleError, Message: generic}
}

// deleteFailureNotice tells apart a server answer, a missing answer and a
// request that never went out.
func deleteFailureNotice(err error) *Notice {
	var (
		se  *repository.ServerError
		rve *repository.RemoteValidationError
		ne  *repository.NetworkError
		ce  *repository.ClientError
	)
	switch {
	case errors.As(err, &se):
		return &Notice{Kind: NoticeError, Title: titleServer, Message: serverMessage(se.StatusCode, se.Body)}
	case errors.As(err, &rve):
		return &Notice{Kind: NoticeError, Title: titleServer, Message: serverMessage(rve.StatusCode, rve.Body)}
	case errors.As(err, &ne):
		return &Notice{Kind: NoticeError, Title: titleNetwork, Message: msgNoResponse}
	case errors.As(err, &ce):
		return &Notice{Kind: NoticeError, Title: titleError, Message: "Permintaan gagal: " + ce.Err.Error()}
	}
	return &Notice{Kind: NoticeError, Title: titleError, Message: "Permintaan gagal: " + err.Error()}
}

func serverMessage(status int, body string) string {
	return fmt.Sprintf("Status: %d\nPesan: %s", status, body)
}
