package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-tx-propagation/internal/application"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/auditlog"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/member"
)

type MemberHandler struct {
	service MemberServiceInterface
}

func NewMemberHandler(s MemberServiceInterface) *MemberHandler {
	return &MemberHandler{service: s}
}

type JoinRequest struct {
	Username string `json:"username" validate:"required,max=64" example:"alice"`
	// Mode はログ保存失敗の扱い（v1: 返す, v2: 握りつぶす）
	Mode string `json:"mode" validate:"omitempty,oneof=v1 v2" example:"v2"`
}

type MemberResponse struct {
	ID          string    `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Username    string    `json:"username" example:"alice"`
	LogRecorded *bool     `json:"log_recorded,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toMemberResponse(m *member.Member) MemberResponse {
	return MemberResponse{ID: m.ID, Username: m.Username, CreatedAt: m.CreatedAt}
}

// Join godoc
// @Summary 会員登録
// @Description 会員と監査ログを保存します。mode=v2 ではログ保存の失敗を無視します
// @Tags members
// @Accept json
// @Produce json
// @Param request body JoinRequest true "会員情報"
// @Success 201 {object} MemberResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string "会員が既に存在する、または rollback-only のためロールバックされた"
// @Failure 422 {object} map[string]string "ログ保存が拒否された"
// @Router /members [post]
func (h *MemberHandler) Join(c echo.Context) error {
	var req JoinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	mode := application.JoinModeV1
	if req.Mode != "" {
		mode = application.JoinMode(req.Mode)
	}
	m, err := h.service.Join(c.Request().Context(), req.Username, mode)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toMemberResponse(m))
}

// GetByUsername godoc
// @Summary 会員を取得
// @Description ユーザー名で会員を取得し、監査ログの有無を返します
// @Tags members
// @Produce json
// @Param username path string true "ユーザー名"
// @Success 200 {object} MemberResponse
// @Failure 404 {object} map[string]string
// @Router /members/{username} [get]
func (h *MemberHandler) GetByUsername(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("username")
	m, err := h.service.FindMember(ctx, username)
	if err != nil {
		return toHTTPError(err)
	}

	recorded := true
	if _, err := h.service.FindLog(ctx, m.Username); err != nil {
		if !errors.Is(err, auditlog.ErrLogNotFound) {
			return toHTTPError(err)
		}
		recorded = false
	}

	resp := toMemberResponse(m)
	resp.LogRecorded = &recorded
	return c.JSON(http.StatusOK, resp)
}
