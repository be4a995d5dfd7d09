package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/library-service/cmd/api/library"
)

/* LanguageConfig holds the languages offered by the public site and the
cookie used to remember a visitor's pick. */
type LanguageConfig struct {
	Default    string
	Available  []string
	CookieName string
}

func (c LanguageConfig) valid(code string) bool {
	for _, available := range c.Available {
		if code == available {
			return true
		}
	}
	return false
}

type LanguageEntry struct {
	Language string `json:"language"`
}

type LanguageResponse struct {
	Language  string   `json:"language"`
	Available []string `json:"available"`
}

type ServerTimeResponse struct {
	Datetime  string `json:"datetime"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Timestamp int64  `json:"timestamp"`
}

/* Addresses a call to "/api/language" according to the requested action. */
func (h *LibraryHandler) apiLanguage(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getLanguage(w, r)
	case http.MethodPost:
		h.setLanguage(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

/* Returns the visitor language, falling back to the default when the cookie
is absent or carries a language no longer offered. */
func (h *LibraryHandler) getLanguage(w http.ResponseWriter, r *http.Request) {
	language := h.languages.Default
	cookie, err := r.Cookie(h.languages.CookieName)
	if err == nil && h.languages.valid(cookie.Value) {
		language = cookie.Value
	}

	responseJSON(w, http.StatusOK, LanguageResponse{
		Language:  language,
		Available: h.languages.Available,
	})
}

func (h *LibraryHandler) setLanguage(w http.ResponseWriter, r *http.Request) {
	var languageEntry LanguageEntry
	err := json.NewDecoder(r.Body).Decode(&languageEntry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	if !h.languages.valid(languageEntry.Language) {
		validation := library.NewErrValidation()
		validation.Add("language", "this language is not available.")
		responseJSON(w, http.StatusBadRequest, validation)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.languages.CookieName,
		Value:    languageEntry.Language,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	responseJSON(w, http.StatusOK, LanguageResponse{
		Language:  languageEntry.Language,
		Available: h.languages.Available,
	})
}

/* Returns the server clock in a few formats, so the public site never
trusts a visitor's machine for due dates. */
func (h *LibraryHandler) apiTime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	serverNow := h.now().UTC()
	responseJSON(w, http.StatusOK, ServerTimeResponse{
		Datetime:  serverNow.Format(time.RFC3339),
		Date:      serverNow.Format(dateLayout),
		Time:      serverNow.Format("15:04:05"),
		Timestamp: serverNow.Unix(),
	})
}

/* Public book search. Only books with copies in stock are shown, the title
and the author names are both matched. */
func (h *LibraryHandler) apiBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	r, cancel := withTimeout(r)
	defer cancel()

	search := r.URL.Query().Get("search")
	if len(search) > 250 {
		responseJSON(w, http.StatusBadRequest, library.ErrResponseQuerySearchTooLong)
		return
	}

	booksList, err := h.service.SearchAvailableBooks(r.Context(), search)
	if err != nil {
		handleError(err, w)
		return
	}

	responseJSON(w, http.StatusOK, booksToResponse(booksList))
}
