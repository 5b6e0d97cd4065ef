package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-tx-propagation/internal/application"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/order"
)

type OrderHandler struct {
	service OrderServiceInterface
}

func NewOrderHandler(s OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: s}
}

type PlaceOrderRequest struct {
	Username string `json:"username" validate:"required,max=64" example:"alice"`
	Amount   int    `json:"amount" validate:"min=0" example:"10000"`
}

type OrderResponse struct {
	ID        string    `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Username  string    `json:"username" example:"alice"`
	Amount    int       `json:"amount" example:"10000"`
	PayStatus string    `json:"pay_status" example:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentRequiredResponse は残高不足で決済待ちになった注文のレスポンス
type PaymentRequiredResponse struct {
	Error string        `json:"error" example:"残高が不足しています"`
	Order OrderResponse `json:"order"`
}

func toOrderResponse(o *order.Order) OrderResponse {
	return OrderResponse{
		ID: o.ID, Username: o.Username, Amount: o.Amount,
		PayStatus: string(o.PayStatus), CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt,
	}
}

// Place godoc
// @Summary 注文を作成
// @Description 注文を保存して決済します。残高不足の場合は決済待ちの注文を 402 で返します
// @Tags orders
// @Accept json
// @Produce json
// @Param request body PlaceOrderRequest true "注文情報"
// @Success 201 {object} OrderResponse
// @Failure 400 {object} map[string]string
// @Failure 402 {object} PaymentRequiredResponse "残高不足"
// @Failure 409 {object} map[string]string "同じユーザーの注文が処理中"
// @Failure 500 {object} map[string]string "決済システムエラー"
// @Router /orders [post]
func (h *OrderHandler) Place(c echo.Context) error {
	var req PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	o, err := h.service.PlaceOrder(c.Request().Context(), application.PlaceOrderInput{
		Username: req.Username, Amount: req.Amount,
	})
	if err != nil {
		if o != nil && errors.Is(err, order.ErrNotEnoughMoney) {
			return c.JSON(http.StatusPaymentRequired, PaymentRequiredResponse{
				Error: err.Error(),
				Order: toOrderResponse(o),
			})
		}
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toOrderResponse(o))
}

// GetByID godoc
// @Summary 注文を取得
// @Description 指定IDの注文を取得します
// @Tags orders
// @Produce json
// @Param id path string true "注文ID"
// @Success 200 {object} OrderResponse
// @Failure 404 {object} map[string]string
// @Router /orders/{id} [get]
func (h *OrderHandler) GetByID(c echo.Context) error {
	o, err := h.service.GetOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}
