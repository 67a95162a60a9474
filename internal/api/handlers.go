package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/susu3304/warikanbot/internal/apperrors"
	"github.com/susu3304/warikanbot/internal/invitation"
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/participant"
	"github.com/susu3304/warikanbot/internal/reconcile"
)

// Invitation handlers
func (a *API) handleValidateInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := a.svc.Invitations.Validate(r.Context(), mux.Vars(r)["token"])
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"valid":     true,
			"status":    inv.Status,
			"expiresAt": inv.ExpiresAt,
		})
	case apperrors.Is(err, apperrors.KindExpired), apperrors.Is(err, apperrors.KindInvalidTransition):
		writeJSON(w, http.StatusOK, map[string]any{
			"valid":  false,
			"status": inv.Status,
			"reason": apperrors.PublicMessage(err),
		})
	default:
		writeError(w, r, err)
	}
}

func (a *API) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	var req struct {
		DisplayName string `json:"displayName"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.DisplayName == "" {
		req.DisplayName = claims.Username
	}

	inv, err := a.svc.Invitations.Accept(r.Context(), mux.Vars(r)["token"], claims.UserID, req.DisplayName, claims.AvatarURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, participant.Participant{
		ID:          inv.AcceptedBy,
		DisplayName: inv.AcceptedDisplayName,
		PictureURL:  inv.AcceptedPictureURL,
	})
}

func (a *API) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TTLHours int               `json:"ttlHours"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := a.svc.Invitations.Create(r.Context(), claimsFrom(r.Context()).UserID, time.Duration(req.TTLHours)*time.Hour, req.Metadata)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (a *API) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	var status invitation.Status
	if s := r.URL.Query().Get("status"); s != "" {
		var err error
		if status, err = invitation.ParseStatus(s); err != nil {
			writeError(w, r, err)
			return
		}
	}
	list, err := a.svc.Invitations.List(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleRevokeInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := a.svc.Invitations.Revoke(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// Participant handlers
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	p, _, err := a.svc.Directory.Get(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"participant": p,
		"admin":       a.config.IsAdmin(claims.UserID),
	})
}

func (a *API) handleUpdateDisplayName(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"displayName"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := a.svc.Invitations.UpdateDisplayName(r.Context(), claimsFrom(r.Context()).UserID, req.DisplayName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, participant.Participant{
		ID:          inv.AcceptedBy,
		DisplayName: inv.AcceptedDisplayName,
		PictureURL:  inv.AcceptedPictureURL,
	})
}

func (a *API) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.Directory.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Entry handlers
func (a *API) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Participant string          `json:"participant"`
		Amount      int64           `json:"amount"`
		Category    ledger.Category `json:"category"`
		Memo        string          `json:"memo"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Participant == "" {
		req.Participant = claimsFrom(r.Context()).UserID
	}
	if _, ok, err := a.svc.Directory.Get(r.Context(), req.Participant); err != nil {
		writeError(w, r, err)
		return
	} else if !ok {
		writeError(w, r, apperrors.Validation("unknown participant %q", req.Participant))
		return
	}

	entry, err := a.svc.Entries.Create(r.Context(), req.Participant, req.Amount, req.Category, req.Memo)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func entryID(r *http.Request) (string, int64, error) {
	vars := mux.Vars(r)
	createdAt, err := strconv.ParseInt(vars["created_at"], 10, 64)
	if err != nil {
		return "", 0, apperrors.Validation("invalid created_at")
	}
	return vars["owner"], createdAt, nil
}

func (a *API) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	owner, createdAt, err := entryID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch ledger.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := a.svc.Entries.Update(r.Context(), owner, createdAt, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	owner, createdAt, err := entryID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.svc.Entries.Delete(r.Context(), owner, createdAt); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Month handlers
func monthVar(r *http.Request) (string, error) {
	return ledger.ParseYearMonth(mux.Vars(r)["month"])
}

func (a *API) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	month, err := monthVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := a.svc.Reconcile.GenerateMonthlySummary(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleCategorySummary(w http.ResponseWriter, r *http.Request) {
	month, err := monthVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cats, err := a.svc.Reconcile.CategorySummary(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (a *API) handleParticipantDetail(w http.ResponseWriter, r *http.Request) {
	month, err := monthVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := a.svc.Reconcile.ParticipantDetail(r.Context(), mux.Vars(r)["id"], month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Settlement handlers
func (a *API) handleListSettlements(w http.ResponseWriter, r *http.Request) {
	month, err := monthVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := a.svc.Reconcile.Settlements(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	month, err := monthVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := a.svc.Reconcile.Settlement(r.Context(), mux.Vars(r)["participant"], month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleCreateSettlement(w http.ResponseWriter, r *http.Request) {
	var req reconcile.NewSettlement
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := a.svc.Reconcile.CreateSettlement(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handleCompleteSettlement(w http.ResponseWriter, r *http.Request) {
	month, err := monthVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := a.svc.Reconcile.CompleteSettlement(r.Context(), mux.Vars(r)["participant"], month, claimsFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleCancelSettlement(w http.ResponseWriter, r *http.Request) {
	month, err := monthVar(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := a.svc.Reconcile.CancelSettlement(r.Context(), mux.Vars(r)["participant"], month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
