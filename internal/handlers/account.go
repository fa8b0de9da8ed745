package handlers

import (
	"accountsvc/internal/logger"
	"accountsvc/internal/models"
	"accountsvc/internal/services"
	"accountsvc/internal/utils/helpers"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// AccountHandler обслуживает маршруты одного вида аккаунтов (/users или /admins).
type AccountHandler struct {
	service   *services.AccountService
	kind      models.Kind
	maxUpload int64
}

func NewAccountHandler(service *services.AccountService, maxUpload int64) *AccountHandler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &AccountHandler{service: service, kind: service.Kind(), maxUpload: maxUpload}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetByOTPRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

type resetByOldPasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Login
// @Summary      Вход
// @Description  Проверяет пароль и возвращает аккаунт с JWT.
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        kind  path  string        true  "users | admins"
// @Param        input body  loginRequest  true  "email и пароль (или поле формы data)"
// @Success      200 {object} helpers.Response
// @Failure      401 {object} helpers.Response
// @Failure      404 {object} helpers.Response
// @Failure      429 {object} helpers.Response
// @Router       /{kind}/login [post]
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodePayload(r, h.maxUpload, &req); err != nil {
		fail(w, r, h.kind, "login", err)
		return
	}

	view, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		fail(w, r, h.kind, "login", err, zap.String("email", req.Email))
		return
	}

	logger.WithCtx(r.Context()).Info("Успешный вход", zap.String("kind", h.kind.Name), zap.String("email", view.Email))
	helpers.JSON(w, http.StatusOK, h.kind.Title()+" logged in successfully", view)
}

// Register
// @Summary      Регистрация
// @Description  Создаёт аккаунт. Для /admins доступно только администратору.
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        kind  path  string           true  "users | admins"
// @Param        input body  registerRequest  true  "имя, email, пароль"
// @Success      201 {object} helpers.Response
// @Failure      400 {object} helpers.Response
// @Failure      409 {object} helpers.Response
// @Failure      429 {object} helpers.Response
// @Router       /{kind}/register [post]
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodePayload(r, h.maxUpload, &req); err != nil {
		fail(w, r, h.kind, "register", err)
		return
	}

	view, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		fail(w, r, h.kind, "register", err, zap.String("email", req.Email))
		return
	}

	logger.WithCtx(r.Context()).Info("Аккаунт зарегистрирован", zap.String("kind", h.kind.Name), zap.String("id", view.ID))
	helpers.JSON(w, http.StatusCreated, h.kind.Title()+" registered successfully", view)
}

// GetOne
// @Summary      Аккаунт по id
// @Tags         accounts
// @Security     ApiKeyAuth
// @Produce      json
// @Param        kind path string true "users | admins"
// @Param        id   path string true "Идентификатор"
// @Success      200 {object} helpers.Response
// @Failure      400 {object} helpers.Response
// @Failure      404 {object} helpers.Response
// @Router       /{kind}/find/{id} [get]
func (h *AccountHandler) GetOne(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	view, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		fail(w, r, h.kind, "get", err, zap.String("id", id))
		return
	}
	helpers.JSON(w, http.StatusOK, h.kind.Title()+" retrieved successfully", view)
}

// GetAll
// @Summary      Все аккаунты вида
// @Tags         accounts
// @Security     ApiKeyAuth
// @Produce      json
// @Param        kind path string true "users | admins"
// @Success      200 {object} helpers.Response
// @Router       /{kind}/all [get]
func (h *AccountHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListAll(r.Context())
	if err != nil {
		fail(w, r, h.kind, "list", err)
		return
	}
	logger.WithCtx(r.Context()).Info("Список аккаунтов", zap.String("kind", h.kind.Name), zap.Int("count", len(views)))
	helpers.JSON(w, http.StatusOK, plural(h.kind)+" retrieved successfully", views)
}

// Update
// @Summary      Обновление аккаунта
// @Description  multipart: поле data с JSON (name, password), файлы single (аватар) и multiple (обложка).
// @Tags         accounts
// @Security     ApiKeyAuth
// @Accept       mpfd
// @Produce      json
// @Param        kind     path     string true  "users | admins"
// @Param        id       path     string true  "Идентификатор"
// @Param        data     formData string false "JSON с полями name, password"
// @Param        single   formData file   false "Аватар"
// @Param        multiple formData file   false "Обложка"
// @Success      200 {object} helpers.Response
// @Failure      400 {object} helpers.Response
// @Failure      404 {object} helpers.Response
// @Failure      502 {object} helpers.Response
// @Router       /{kind}/update/{id} [patch]
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var patch services.AccountPatch
	if err := decodePayload(r, h.maxUpload, &patch); err != nil {
		fail(w, r, h.kind, "update", err, zap.String("id", id))
		return
	}

	display, closeDisplay, err := formFile(r, fieldSingle)
	if err != nil {
		fail(w, r, h.kind, "update", fmt.Errorf("%w: %w", errBadPayload, err))
		return
	}
	defer closeDisplay()

	cover, closeCover, err := formFile(r, fieldMultiple)
	if err != nil {
		fail(w, r, h.kind, "update", fmt.Errorf("%w: %w", errBadPayload, err))
		return
	}
	defer closeCover()

	view, err := h.service.UpdateByID(r.Context(), id, patch, services.ImageUploads{Display: display, Cover: cover})
	if err != nil {
		fail(w, r, h.kind, "update", err, zap.String("id", id))
		return
	}
	helpers.JSON(w, http.StatusOK, h.kind.Title()+" updated successfully", view)
}

// SendOTP
// @Summary      Код для сброса пароля
// @Description  Выдаёт одноразовый код и отправляет его на почту аккаунта.
// @Tags         password
// @Accept       json
// @Produce      json
// @Param        kind  path string     true "users | admins"
// @Param        input body otpRequest true "email"
// @Success      200 {object} helpers.Response
// @Failure      404 {object} helpers.Response
// @Failure      502 {object} helpers.Response
// @Router       /{kind}/send-otp [post]
func (h *AccountHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodePayload(r, h.maxUpload, &req); err != nil {
		fail(w, r, h.kind, "send-otp", err)
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		fail(w, r, h.kind, "send-otp", err, zap.String("email", req.Email))
		return
	}
	helpers.JSON(w, http.StatusOK, "OTP sent successfully", nil)
}

// ValidateOTP
// @Summary      Проверка кода
// @Description  Проверяет код без погашения, сам сброс делает PATCH /reset.
// @Tags         password
// @Accept       json
// @Produce      json
// @Param        kind  path string     true "users | admins"
// @Param        input body otpRequest true "email и код"
// @Success      200 {object} helpers.Response
// @Failure      401 {object} helpers.Response
// @Failure      404 {object} helpers.Response
// @Router       /{kind}/validate-otp [post]
func (h *AccountHandler) ValidateOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodePayload(r, h.maxUpload, &req); err != nil {
		fail(w, r, h.kind, "validate-otp", err)
		return
	}

	if err := h.service.CheckResetCode(r.Context(), req.Email, req.OTP); err != nil {
		fail(w, r, h.kind, "validate-otp", err, zap.String("email", req.Email))
		return
	}
	helpers.JSON(w, http.StatusOK, "OTP validated successfully", nil)
}

// ResetByOTP
// @Summary      Сброс пароля по коду
// @Tags         password
// @Accept       json
// @Produce      json
// @Param        kind  path string            true "users | admins"
// @Param        input body resetByOTPRequest true "email, код, новый пароль"
// @Success      200 {object} helpers.Response
// @Failure      400 {object} helpers.Response
// @Failure      401 {object} helpers.Response
// @Failure      404 {object} helpers.Response
// @Router       /{kind}/reset [patch]
func (h *AccountHandler) ResetByOTP(w http.ResponseWriter, r *http.Request) {
	var req resetByOTPRequest
	if err := decodePayload(r, h.maxUpload, &req); err != nil {
		fail(w, r, h.kind, "reset", err)
		return
	}

	if _, err := h.service.ResetByOTP(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		fail(w, r, h.kind, "reset", err, zap.String("email", req.Email))
		return
	}
	helpers.JSON(w, http.StatusOK, "Password updated successfully", nil)
}

// ResetByOldPassword
// @Summary      Смена пароля по старому паролю
// @Tags         password
// @Accept       json
// @Produce      json
// @Param        kind  path string                    true "users | admins"
// @Param        email path string                    true "Email аккаунта"
// @Param        input body resetByOldPasswordRequest true "старый и новый пароль"
// @Success      200 {object} helpers.Response
// @Failure      401 {object} helpers.Response
// @Failure      404 {object} helpers.Response
// @Router       /{kind}/resetpassword/{email} [patch]
func (h *AccountHandler) ResetByOldPassword(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]

	var req resetByOldPasswordRequest
	if err := decodePayload(r, h.maxUpload, &req); err != nil {
		fail(w, r, h.kind, "resetpassword", err)
		return
	}

	view, err := h.service.ResetByOldPassword(r.Context(), email, req.OldPassword, req.NewPassword)
	if err != nil {
		fail(w, r, h.kind, "resetpassword", err, zap.String("email", email))
		return
	}
	helpers.JSON(w, http.StatusOK, "Password updated successfully", view)
}

// Delete
// @Summary      Удаление аккаунта
// @Tags         accounts
// @Security     ApiKeyAuth
// @Produce      json
// @Param        kind path string true "users | admins"
// @Param        id   path string true "Идентификатор"
// @Success      200 {object} helpers.Response
// @Failure      400 {object} helpers.Response
// @Failure      404 {object} helpers.Response
// @Router       /{kind}/delete/{id} [delete]
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	msg, err := h.service.DeleteByID(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		logger.WithCtx(r.Context()).Warn("Нечего удалять", zap.String("kind", h.kind.Name), zap.String("id", id))
		helpers.Error(w, http.StatusNotFound, fmt.Sprintf("No %s found to delete with this id: %s", h.kind.Name, id))
		return
	}
	if err != nil {
		fail(w, r, h.kind, "delete", err, zap.String("id", id))
		return
	}

	logger.WithCtx(r.Context()).Info(msg)
	helpers.JSON(w, http.StatusOK, msg, nil)
}
