package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clipgate/clipgate-backend/api/responses"
	"github.com/clipgate/clipgate-backend/api/validators"
	discountsvc "github.com/clipgate/clipgate-backend/internal/discounts"
	"github.com/clipgate/clipgate-backend/pkg/db/models"
	"github.com/clipgate/clipgate-backend/pkg/enums"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
	"github.com/clipgate/clipgate-backend/pkg/logger"
)

// DiscountCreate registers a new pricing rule.
func DiscountCreate(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "discount service unavailable"))
			return
		}

		var payload discountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discount, err := svc.Create(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newDiscountResponse(discount))
	}
}

// DiscountUpdate replaces an existing rule's fields.
func DiscountUpdate(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "discount service unavailable"))
			return
		}

		id, err := discountIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload discountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discount, err := svc.Update(r.Context(), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDiscountResponse(discount))
	}
}

func DiscountDelete(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "discount service unavailable"))
			return
		}

		id, err := discountIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

func DiscountGet(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "discount service unavailable"))
			return
		}

		id, err := discountIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discount, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDiscountResponse(discount))
	}
}

func DiscountList(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "discount service unavailable"))
			return
		}

		discounts, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := make([]discountResponse, 0, len(discounts))
		for i := range discounts {
			resp = append(resp, newDiscountResponse(&discounts[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

// DiscountActive summarizes the strongest currently-running discounts for the
// storefronts.
func DiscountActive(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "discount service unavailable"))
			return
		}

		summary, err := svc.ActiveSummary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func discountIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "discountId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount id")
	}
	return id, nil
}

type discountRequest struct {
	Name            string    `json:"name" validate:"required"`
	Kind            string    `json:"kind" validate:"required,oneof=percentage fixed_price amount_off"`
	PercentOff      *float64  `json:"percent_off,omitempty"`
	FixedPriceCents *int64    `json:"fixed_price_cents,omitempty"`
	AmountOffCents  *int64    `json:"amount_off_cents,omitempty"`
	Creators        []string  `json:"creators,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	EndsAt          time.Time `json:"ends_at" validate:"required"`
	Active          bool      `json:"active"`
}

func (d discountRequest) toInput() discountsvc.Input {
	return discountsvc.Input{
		Name:            d.Name,
		Kind:            enums.DiscountKind(d.Kind),
		PercentOff:      d.PercentOff,
		FixedPriceCents: d.FixedPriceCents,
		AmountOffCents:  d.AmountOffCents,
		Creators:        d.Creators,
		Tags:            d.Tags,
		StartsAt:        d.StartsAt,
		EndsAt:          d.EndsAt,
		Active:          d.Active,
	}
}

type discountResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Kind            string    `json:"kind"`
	PercentOff      *float64  `json:"percent_off,omitempty"`
	FixedPriceCents *int64    `json:"fixed_price_cents,omitempty"`
	AmountOffCents  *int64    `json:"amount_off_cents,omitempty"`
	Creators        []string  `json:"creators,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newDiscountResponse(discount *models.Discount) discountResponse {
	if discount == nil {
		return discountResponse{}
	}
	return discountResponse{
		ID:              discount.ID,
		Name:            discount.Name,
		Kind:            string(discount.Kind),
		PercentOff:      discount.PercentOff,
		FixedPriceCents: discount.FixedPriceCents,
		AmountOffCents:  discount.AmountOffCents,
		Creators:        discount.Creators,
		Tags:            discount.Tags,
		StartsAt:        discount.StartsAt,
		EndsAt:          discount.EndsAt,
		Active:          discount.Active,
		CreatedAt:       discount.CreatedAt,
		UpdatedAt:       discount.UpdatedAt,
	}
}
