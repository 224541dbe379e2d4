package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"course-entitlement-platform/internal/domain"
	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/usecase"
)

type progressSaveRequest struct {
	VideoID    string `json:"video_id"`
	ElapsedSec int    `json:"elapsed_sec"`
	// DurationSec is the client's player duration; the server clamps
	// elapsed against it and derives completion itself.
	DurationSec int `json:"duration_sec"`
}

func progressSaveHandler(progressUC usecase.ProgressUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFrom(r.Context())

		var req progressSaveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		p, err := progressUC.SaveProgress(r.Context(), claims.Subject, req.VideoID, req.ElapsedSec, req.DurationSec)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidArgument):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			case errors.Is(err, domain.ErrNotFound):
				http.Error(w, "Video not found", http.StatusNotFound)
			default:
				http.Error(w, "Failed to save progress", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, struct {
			VideoID    string  `json:"video_id"`
			ElapsedSec int     `json:"elapsed_sec"`
			Completed  bool    `json:"completed"`
			Fraction   float64 `json:"fraction"`
		}{p.VideoID, p.ElapsedSec, p.Completed, p.Fraction()})
	}
}

type refundCreateRequest struct {
	TargetType string `json:"target_type"` // "subscription" | "purchase"
	TargetID   string `json:"target_id"`
	Reason     string `json:"reason"`
}

func refundCreateHandler(refundUC usecase.RefundUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFrom(r.Context())

		var req refundCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		ref, err := refundUC.Create(r.Context(), claims.Subject, model.RefundTargetType(req.TargetType), req.TargetID, req.Reason)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidArgument):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			case errors.Is(err, domain.ErrNotFound):
				http.Error(w, "Target not found", http.StatusNotFound)
			case errors.Is(err, domain.ErrForbidden):
				http.Error(w, "Forbidden", http.StatusForbidden)
			case errors.Is(err, domain.ErrAlreadyRefunded):
				http.Error(w, "Already refunded", http.StatusConflict)
			case errors.Is(err, domain.ErrAlreadyExists):
				http.Error(w, "A pending request already exists for this target", http.StatusConflict)
			default:
				http.Error(w, "Failed to create refund request", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, refundResponse(ref))
	}
}

func profileHandler(entitlementUC usecase.EntitlementUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFrom(r.Context())

		p, err := entitlementUC.Profile(r.Context(), claims.Subject)
		if err != nil {
			http.Error(w, "Failed to load profile", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func notificationsListHandler(notifUC usecase.NotificationUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFrom(r.Context())

		unreadOnly := r.URL.Query().Get("unread") == "true"
		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 200 {
				limit = n
			}
		}

		items, err := notifUC.ListForUser(r.Context(), claims.Subject, unreadOnly, limit)
		if err != nil {
			http.Error(w, "Failed to list notifications", http.StatusInternalServerError)
			return
		}
		if items == nil {
			items = []*model.Notification{}
		}
		writeJSON(w, http.StatusOK, struct {
			Items []*model.Notification `json:"items"`
		}{items})
	}
}

func notificationMarkReadHandler(notifUC usecase.NotificationUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFrom(r.Context())
		id := chi.URLParam(r, "id")

		if err := notifUC.MarkRead(r.Context(), id, claims.Subject); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "Notification not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to mark notification", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func packagesListHandler(packageUC usecase.PackageUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := packageUC.List(r.Context())
		if err != nil {
			http.Error(w, "Failed to list packages", http.StatusInternalServerError)
			return
		}
		if items == nil {
			items = []*model.Package{}
		}
		writeJSON(w, http.StatusOK, struct {
			Items []*model.Package `json:"items"`
		}{items})
	}
}

func packageVideosHandler(packageUC usecase.PackageUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		items, err := packageUC.Videos(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "Package not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to list videos", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Items []*model.Video `json:"items"`
		}{items})
	}
}

// ===== staff handlers =====

func adminRefundsListHandler(refundUC usecase.RefundUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := refundUC.ListPending(r.Context())
		if err != nil {
			http.Error(w, "Failed to list refund requests", http.StatusInternalServerError)
			return
		}
		out := make([]map[string]any, 0, len(items))
		for _, ref := range items {
			out = append(out, refundResponse(ref))
		}
		writeJSON(w, http.StatusOK, struct {
			Items []map[string]any `json:"items"`
		}{out})
	}
}

type refundDecisionRequest struct {
	Approve bool `json:"approve"`
}

func adminRefundDecisionHandler(refundUC usecase.RefundUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFrom(r.Context())
		id := chi.URLParam(r, "id")

		var req refundDecisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if err := refundUC.Decide(r.Context(), claims.Subject, id, req.Approve); err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				http.Error(w, "Refund request not found", http.StatusNotFound)
			default:
				http.Error(w, "Failed to decide refund request", http.StatusInternalServerError)
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func refundResponse(ref *model.RefundRequest) map[string]any {
	return map[string]any{
		"id":          ref.ID,
		"user_id":     ref.UserID,
		"target_type": ref.TargetType(),
		"target_id":   ref.TargetID(),
		"reason":      ref.Reason,
		"status":      ref.Status,
		"created_at":  ref.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
