package http

import (
	"fmt"
	"net/http"
)

type ServerConfig struct {
	Port int
}

func NewServer(config ServerConfig, h *LibraryHandler) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", ping)
	mux.HandleFunc("/authors", h.authors)
	mux.HandleFunc("/authors/", h.authorById)
	mux.HandleFunc("/books", h.books)
	mux.HandleFunc("/books/", h.bookById)
	mux.HandleFunc("/customers", h.customers)
	mux.HandleFunc("/customers/", h.customerById)
	mux.HandleFunc("/loans", h.loans)
	mux.HandleFunc("/loans/", h.loanById)
	mux.HandleFunc("/users", h.users)
	mux.HandleFunc("/users/", h.userById)
	mux.HandleFunc("/api/books", h.apiBooks)
	mux.HandleFunc("/api/language", h.apiLanguage)
	mux.HandleFunc("/api/time", h.apiTime)

	server := http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: mux,
	}
	return &server
}

/* Tests the http server connection.  */
func ping(w http.ResponseWriter, r *http.Request) {
	method := r.Method
	if method == http.MethodGet {
		w.WriteHeader(http.StatusNoContent)
		return
	} else {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
}
