package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/petit-coffre/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса учёта бюджета.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Put("/password", h.ChangePassword)
			r.Put("/profile", h.UpdateProfile)

			r.Get("/document", h.GetDocument)
			r.Get("/export", h.Export)
			r.Get("/stats", h.GetStats)

			r.Route("/months/{month}", func(r chi.Router) {
				r.Get("/", h.GetMonth)
				r.Put("/budget", h.PlanMonth)
				r.Post("/expenses", h.RecordExpense)
				r.Get("/expenses", h.RecentExpenses)
				r.Post("/allocations", h.AllocateSavings)
				r.Get("/quest", h.GetQuest)
			})

			r.Post("/savings/deposit", h.DepositSavings)
			r.Post("/savings/reset", h.ResetSavings)
			r.Post("/reset", h.ResetAll)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
