package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"slices"

	"github.com/bruss-it/overtime-manager/backend/internal/apperror"
	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type myInfoResponse struct {
	*domain.User
	Capabilities []domain.Capability `json:"capabilities"`
	Language     domain.Language     `json:"language"`
}

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	myInfo := actorFrom(r)

	caps := make([]domain.Capability, 0)
	for c := range domain.Capabilities(myInfo.Roles) {
		caps = append(caps, c)
	}
	slices.Sort(caps)

	h.successResponse(w, r, "ok", myInfoResponse{
		User:         myInfo,
		Capabilities: caps,
		Language:     myInfo.Language(),
	})
}

func (h *Handler) GetMyQuota(w http.ResponseWriter, r *http.Request) {
	usage, err := h.overtime.Quota(actorFrom(r))
	if err != nil {
		h.appError(w, r, err)
		return
	}

	h.successResponse(w, r, "ok", usage)
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	myInfo := actorFrom(r)

	var req struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(myInfo.PasswordHash), []byte(req.OldPassword)); err != nil {
		h.errorResponse(w, r, "invalid_credentials", "the old password is wrong")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	myInfo.PasswordHash = string(hashedPassword)

	if err := h.users.UpdateUser(myInfo); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.appError(w, r, apperror.ErrConflict)
		default:
			h.serviceUnavailable(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "password updated", nil)
}
