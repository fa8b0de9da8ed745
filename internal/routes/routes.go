package routes

import (
	"accountsvc/internal/handlers"
	"accountsvc/internal/middleware"
	"accountsvc/internal/utils/helpers"
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Deps: всё, что нужно для сборки маршрутов.
type Deps struct {
	Users  *handlers.AccountHandler
	Admins *handlers.AccountHandler
	Logs   *handlers.AdminLogsHandler

	AdminAuth middleware.AdminAuthenticator

	LoginLimiter    *middleware.RateLimiter
	RegisterLimiter *middleware.RateLimiter
	// OTPLimiter ограничивает подбор кода на /validate-otp и /reset
	OTPLimiter *middleware.RateLimiter

	// UploadDir пустой, если файлы лежат не локально
	UploadDir string
}

func InitRoutes(router *mux.Router, d Deps) {
	router.Use(middleware.RequestID, middleware.Logging, middleware.Recoverer)

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		helpers.JSON(w, http.StatusOK, "Server is running", nil)
	}).Methods(http.MethodGet)

	requireAdmin := middleware.RequireAdmin(d.AdminAuth)

	// --- Пользователи ---
	users := router.PathPrefix("/users").Subrouter()
	users.Handle("/register", d.RegisterLimiter.Middleware(http.HandlerFunc(d.Users.Register))).Methods(http.MethodPost)
	accountRoutes(users, d.Users, d, requireAdmin)

	// --- Администраторы ---
	admins := router.PathPrefix("/admins").Subrouter()
	admins.Handle("/register", requireAdmin(http.HandlerFunc(d.Admins.Register))).Methods(http.MethodPost)
	accountRoutes(admins, d.Admins, d, requireAdmin)

	logs := admins.PathPrefix("/logs").Subrouter()
	logs.Use(requireAdmin)
	logs.HandleFunc("", d.Logs.GetLogs).Methods(http.MethodGet)
	logs.HandleFunc("/days", d.Logs.ListDays).Methods(http.MethodGet)
	logs.HandleFunc("/stats", d.Logs.Stats).Methods(http.MethodGet)

	if d.UploadDir != "" {
		router.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(d.UploadDir))),
		).Methods(http.MethodGet)
	}

	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
}

// accountRoutes: маршруты, общие для обоих видов аккаунтов.
func accountRoutes(sub *mux.Router, h *handlers.AccountHandler, d Deps, requireAdmin func(http.Handler) http.Handler) {
	sub.Handle("/login", d.LoginLimiter.Middleware(http.HandlerFunc(h.Login))).Methods(http.MethodPost)

	sub.HandleFunc("/send-otp", h.SendOTP).Methods(http.MethodPost)
	sub.Handle("/validate-otp", d.OTPLimiter.Middleware(http.HandlerFunc(h.ValidateOTP))).Methods(http.MethodPost)
	sub.Handle("/reset", d.OTPLimiter.Middleware(http.HandlerFunc(h.ResetByOTP))).Methods(http.MethodPatch)
	sub.HandleFunc("/resetpassword/{email}", h.ResetByOldPassword).Methods(http.MethodPatch)

	sub.Handle("/find/{id}", requireAdmin(http.HandlerFunc(h.GetOne))).Methods(http.MethodGet)
	sub.Handle("/all", requireAdmin(http.HandlerFunc(h.GetAll))).Methods(http.MethodGet)
	sub.Handle("/update/{id}", requireAdmin(http.HandlerFunc(h.Update))).Methods(http.MethodPatch)
	sub.Handle("/delete/{id}", requireAdmin(http.HandlerFunc(h.Delete))).Methods(http.MethodDelete)
}
