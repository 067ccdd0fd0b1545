package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/owenthereal/webterm/auth"
	"github.com/owenthereal/webterm/internal/version"
)

func newRouter(opt Opt, terminal http.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(serverHeader)

	r.Get(opt.WSPath, terminal.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(opt.credentials(), func(req *http.Request, err error) {
			logger.Info("static request rejected", "path", req.URL.Path, "remote_addr", req.RemoteAddr, "error", err)
		}))
		r.Handle("/*", http.FileServer(http.Dir(opt.StaticDir)))
	})

	return r
}

func serverHeader(next http.Handler) http.Handler {
	header := version.ServerHeader()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", header)
		next.ServeHTTP(w, r)
	})
}
