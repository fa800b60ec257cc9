package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clipgate/clipgate-backend/api/responses"
	"github.com/clipgate/clipgate-backend/api/validators"
	purchasesvc "github.com/clipgate/clipgate-backend/internal/purchases"
	"github.com/clipgate/clipgate-backend/pkg/db/models"
	"github.com/clipgate/clipgate-backend/pkg/enums"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
	"github.com/clipgate/clipgate-backend/pkg/logger"
	"github.com/clipgate/clipgate-backend/pkg/pagination"
)

// CheckPurchase resolves an access token to the content ids it unlocks.
func CheckPurchase(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		var payload checkPurchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		videoIDs, err := svc.CheckAccess(r.Context(), payload.Token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, checkPurchaseResponse{
			Success:  true,
			VideoIDs: videoIDs,
		})
	}
}

// ListPurchases pages through the ledger for back-office tooling.
func ListPurchases(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		query, err := parseListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, next, err := svc.List(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := listPurchasesResponse{Purchases: make([]purchaseResponse, 0, len(rows))}
		for _, row := range rows {
			resp.Purchases = append(resp.Purchases, newPurchaseResponse(row))
		}
		if next != nil {
			cursor := pagination.EncodeCursor(*next)
			resp.NextCursor = &cursor
		}

		responses.WriteSuccess(w, resp)
	}
}

func parseListQuery(r *http.Request) (purchasesvc.ListQuery, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return purchasesvc.ListQuery{}, err
	}
	query := purchasesvc.ListQuery{Limit: limit}

	if userID := r.URL.Query().Get("user_id"); userID != "" {
		query.UserID = &userID
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := enums.PurchaseStatus(raw)
		if status != enums.PurchaseStatusPending && status != enums.PurchaseStatusPaid {
			return purchasesvc.ListQuery{}, pkgerrors.New(pkgerrors.CodeValidation, "status must be pending or paid")
		}
		query.Status = &status
	}
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor, err := pagination.ParseCursor(raw)
		if err != nil {
			return purchasesvc.ListQuery{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}
	return query, nil
}

type checkPurchaseRequest struct {
	Token string `json:"token" validate:"required"`
}

type checkPurchaseResponse struct {
	Success  bool     `json:"success"`
	VideoIDs []string `json:"video_ids"`
}

type listPurchasesResponse struct {
	Purchases  []purchaseResponse `json:"purchases"`
	NextCursor *string            `json:"next_cursor,omitempty"`
}

type purchaseResponse struct {
	ID               uuid.UUID  `json:"id"`
	UserID           string     `json:"user_id"`
	Type             string     `json:"type"`
	Status           string     `json:"status"`
	VideoID          *string    `json:"video_id,omitempty"`
	BundleID         *string    `json:"bundle_id,omitempty"`
	VideoTitle       *string    `json:"video_title,omitempty"`
	UnlockedVideoIDs []string   `json:"unlocked_video_ids,omitempty"`
	BasePriceCents   int64      `json:"base_price_cents"`
	FinalPriceCents  int64      `json:"final_price_cents"`
	AmountCents      int64      `json:"amount_cents"`
	DiscountLabel    *string    `json:"discount_label,omitempty"`
	Site             string     `json:"site"`
	Email            *string    `json:"email,omitempty"`
	StripeSessionID  *string    `json:"stripe_session_id,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func newPurchaseResponse(row models.Purchase) purchaseResponse {
	return purchaseResponse{
		ID:               row.ID,
		UserID:           row.UserID,
		Type:             string(row.Type),
		Status:           string(row.Status),
		VideoID:          row.VideoID,
		BundleID:         row.BundleID,
		VideoTitle:       row.VideoTitle,
		UnlockedVideoIDs: row.UnlockedVideoIDs,
		BasePriceCents:   row.BasePriceCents,
		FinalPriceCents:  row.FinalPriceCents,
		AmountCents:      row.AmountCents,
		DiscountLabel:    row.DiscountLabel,
		Site:             row.Site,
		Email:            row.Email,
		StripeSessionID:  row.StripeSessionID,
		PaidAt:           row.PaidAt,
		CreatedAt:        row.CreatedAt,
	}
}
