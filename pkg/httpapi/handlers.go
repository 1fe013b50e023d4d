package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/slacktip/tipbot/pkg/app/errors"
	"github.com/slacktip/tipbot/pkg/engine"
	"github.com/slacktip/tipbot/pkg/ledger"
)

// Service is the slice of the engine the HTTP layer needs.
type Service interface {
	Tip(ctx context.Context, fromSlackID, toSlackID string, ref ledger.MessageRef) (*engine.TipResult, error)
	SweepDeposit(ctx context.Context, slackID string) (*engine.SweepResult, error)
	DepositAddress(ctx context.Context, slackID string) (string, error)
	Withdraw(ctx context.Context, slackID, toAddress string) (*engine.WithdrawResult, error)
	UserStatus(ctx context.Context, slackID string) (*engine.UserStatus, error)
	Settings(ctx context.Context) (*ledger.Settings, error)
	RecentTips(ctx context.Context, limit int) ([]*ledger.Tip, error)
	UpdateSettings(ctx context.Context, dailyTipLimit int, tipAmount decimal.Decimal) error
	IsAdmin(ctx context.Context, slackID string) (bool, error)
	AddAdmin(ctx context.Context, slackID string) error
	SendWithdrawalReminders(ctx context.Context) error
}

// Handler holds the HTTP handlers for the tip bot API.
type Handler struct {
	svc      Service
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler creates the handler set.
func NewHandler(svc Service, logger *zap.Logger) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}
	if err := h.validate.Struct(dst); err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// mapError translates ledger sentinels into service errors with the right
// HTTP status.
func mapError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrSelfTip):
		return apperrors.BadRequestError(err, "cannot tip yourself")
	case errors.Is(err, ledger.ErrDuplicateTip):
		return apperrors.ConflictError(err, "message already tipped")
	case errors.Is(err, ledger.ErrTipLimitReached):
		return apperrors.QuotaExceededError(err, "daily tip limit reached and no extra balance")
	case errors.Is(err, ledger.ErrInvalidAddress):
		return apperrors.BadRequestError(err, "invalid address")
	case errors.Is(err, ledger.ErrUserNotFound):
		return apperrors.ResourceNotFoundError(err, "user not found")
	default:
		return apperrors.GeneralError(err)
	}
}

type tipRequest struct {
	FromSlackID string `json:"from_slack_id" validate:"required"`
	ToSlackID   string `json:"to_slack_id" validate:"required"`
	ChannelID   string `json:"channel_id" validate:"required"`
	MessageTS   string `json:"message_ts" validate:"required"`
}

type tipResponse struct {
	TipID         string `json:"tip_id"`
	Amount        string `json:"amount"`
	Outcome       string `json:"outcome"`
	RemainingTips int    `json:"remaining_tips"`
}

func (h *Handler) tip(w http.ResponseWriter, r *http.Request) error {
	var req tipRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	result, err := h.svc.Tip(r.Context(), req.FromSlackID, req.ToSlackID, ledger.MessageRef{
		ChannelID: req.ChannelID,
		MessageTS: req.MessageTS,
	})
	if err != nil {
		return mapError(err)
	}

	return writeJSON(w, http.StatusCreated, &tipResponse{
		TipID:         result.Tip.ID,
		Amount:        result.Tip.Amount.String(),
		Outcome:       string(result.Outcome),
		RemainingTips: result.RemainingTips,
	})
}

type sweepRequest struct {
	SlackID string `json:"slack_id" validate:"required"`
}

type sweepResponse struct {
	DepositAddress string `json:"deposit_address"`
	Amount         string `json:"amount"`
	Enqueued       bool   `json:"enqueued"`
}

func (h *Handler) sweepDeposit(w http.ResponseWriter, r *http.Request) error {
	var req sweepRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	result, err := h.svc.SweepDeposit(r.Context(), req.SlackID)
	if err != nil {
		return mapError(err)
	}

	return writeJSON(w, http.StatusAccepted, &sweepResponse{
		DepositAddress: result.DepositAddress,
		Amount:         result.Amount.String(),
		Enqueued:       result.Enqueued,
	})
}

type withdrawRequest struct {
	SlackID string `json:"slack_id" validate:"required"`
	Address string `json:"address" validate:"required"`
}

type withdrawResponse struct {
	Address  string `json:"address"`
	Amount   string `json:"amount"`
	Enqueued bool   `json:"enqueued"`
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) error {
	var req withdrawRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	result, err := h.svc.Withdraw(r.Context(), req.SlackID, req.Address)
	if err != nil {
		return mapError(err)
	}

	return writeJSON(w, http.StatusAccepted, &withdrawResponse{
		Address:  result.Address,
		Amount:   result.Amount.String(),
		Enqueued: result.Enqueued,
	})
}

type userStatusResponse struct {
	SlackID           string `json:"slack_id"`
	DepositAddress    string `json:"deposit_address,omitempty"`
	WithdrawalAddress string `json:"withdrawal_address,omitempty"`
	FreeBalance       string `json:"free_balance"`
	ExtraBalance      string `json:"extra_balance"`
	RemainingTips     int    `json:"remaining_tips"`
	TipAmount         string `json:"tip_amount"`
}

func (h *Handler) userStatus(w http.ResponseWriter, r *http.Request) error {
	slackID := chi.URLParam(r, "slackID")

	status, err := h.svc.UserStatus(r.Context(), slackID)
	if err != nil {
		return mapError(err)
	}

	return writeJSON(w, http.StatusOK, &userStatusResponse{
		SlackID:           status.User.SlackID,
		DepositAddress:    status.User.DepositAddress,
		WithdrawalAddress: status.User.WithdrawalAddress,
		FreeBalance:       status.User.FreeBalance.String(),
		ExtraBalance:      status.User.ExtraBalance.String(),
		RemainingTips:     status.RemainingTips,
		TipAmount:         status.TipAmount.String(),
	})
}

type depositAddressResponse struct {
	DepositAddress string `json:"deposit_address"`
}

func (h *Handler) depositAddress(w http.ResponseWriter, r *http.Request) error {
	slackID := chi.URLParam(r, "slackID")

	address, err := h.svc.DepositAddress(r.Context(), slackID)
	if err != nil {
		return mapError(err)
	}

	return writeJSON(w, http.StatusOK, &depositAddressResponse{DepositAddress: address})
}
