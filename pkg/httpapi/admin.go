package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/slacktip/tipbot/pkg/app/errors"
	"github.com/slacktip/tipbot/pkg/auth"
)

// requireAdmin checks that the JWT-authenticated caller is an admin.
func (h *Handler) requireAdmin(r *http.Request) error {
	slackID, ok := auth.SlackIDFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "missing identity")
	}
	isAdmin, err := h.svc.IsAdmin(r.Context(), slackID)
	if err != nil {
		return apperrors.GeneralError(err)
	}
	if !isAdmin {
		return apperrors.ForbiddenError(nil, "admin access required")
	}
	return nil
}

type adminTip struct {
	ID         string `json:"id"`
	FromUserID int64  `json:"from_user_id"`
	ToUserID   int64  `json:"to_user_id"`
	Amount     string `json:"amount"`
	ChannelID  string `json:"channel_id"`
	MessageTS  string `json:"message_ts"`
	TxHash     string `json:"tx_hash,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// defaultTipListLimit bounds unqualified admin tip listings.
const defaultTipListLimit = 50

func (h *Handler) listTips(w http.ResponseWriter, r *http.Request) error {
	if err := h.requireAdmin(r); err != nil {
		return err
	}

	limit := defaultTipListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return apperrors.BadRequestError(err, "invalid limit")
		}
		limit = parsed
	}

	tips, err := h.svc.RecentTips(r.Context(), limit)
	if err != nil {
		return mapError(err)
	}

	out := make([]adminTip, len(tips))
	for i, tip := range tips {
		out[i] = adminTip{
			ID:         tip.ID,
			FromUserID: tip.FromUserID,
			ToUserID:   tip.ToUserID,
			Amount:     tip.Amount.String(),
			ChannelID:  tip.ChannelID,
			MessageTS:  tip.MessageTS,
			TxHash:     tip.TxHash,
			CreatedAt:  tip.CreatedAt.UTC().Format(time.RFC3339),
		}
	}

	return writeJSON(w, http.StatusOK, out)
}

type settingsResponse struct {
	DailyTipLimit int      `json:"daily_tip_limit"`
	TipAmount     string   `json:"tip_amount"`
	Admins        []string `json:"admins"`
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) error {
	if err := h.requireAdmin(r); err != nil {
		return err
	}

	settings, err := h.svc.Settings(r.Context())
	if err != nil {
		return mapError(err)
	}

	return writeJSON(w, http.StatusOK, &settingsResponse{
		DailyTipLimit: settings.DailyTipLimit,
		TipAmount:     settings.TipAmount.String(),
		Admins:        settings.AdminSlackIDs,
	})
}

type updateSettingsRequest struct {
	DailyTipLimit int    `json:"daily_tip_limit" validate:"min=0"`
	TipAmount     string `json:"tip_amount" validate:"required"`
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) error {
	if err := h.requireAdmin(r); err != nil {
		return err
	}

	var req updateSettingsRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	amount, err := decimal.NewFromString(req.TipAmount)
	if err != nil {
		return apperrors.BadRequestError(err, "invalid tip amount")
	}
	if !amount.IsPositive() {
		return apperrors.BadRequestError(nil, "tip amount must be positive")
	}

	if err := h.svc.UpdateSettings(r.Context(), req.DailyTipLimit, amount); err != nil {
		return mapError(err)
	}

	return writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type addAdminRequest struct {
	SlackID string `json:"slack_id" validate:"required"`
}

func (h *Handler) addAdmin(w http.ResponseWriter, r *http.Request) error {
	if err := h.requireAdmin(r); err != nil {
		return err
	}

	var req addAdminRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	if err := h.svc.AddAdmin(r.Context(), req.SlackID); err != nil {
		return mapError(err)
	}

	return writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (h *Handler) sendReminders(w http.ResponseWriter, r *http.Request) error {
	if err := h.requireAdmin(r); err != nil {
		return err
	}

	if err := h.svc.SendWithdrawalReminders(r.Context()); err != nil {
		return mapError(err)
	}

	return writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}
