package httpserver

import (
	"net/http"

	"github.com/and161185/findit/internal/model"
)

type startClaimRequest struct {
	ItemID           int64  `json:"item_id" validate:"required,gt=0"`
	ProofDescription string `json:"proof_description" validate:"max=2000"`
}

type claimRequest struct {
	ClaimID int64 `json:"claim_id" validate:"required,gt=0"`
}

type submitIdentityRequest struct {
	ClaimID           int64  `json:"claim_id" validate:"required,gt=0"`
	FullName          string `json:"full_name" validate:"required"`
	PlaceFound        string `json:"place_found"`
	DateOfLoss        string `json:"date_of_loss"`
	LocationOfLoss    string `json:"location_of_loss"`
	UnlockDescription string `json:"unlock_description"`
}

type confirmHandoverRequest struct {
	ClaimID int64  `json:"claim_id" validate:"required,gt=0"`
	Code    string `json:"code" validate:"required"`
}

type claimMessageRequest struct {
	ClaimID int64  `json:"claim_id" validate:"required,gt=0"`
	Content string `json:"content" validate:"required,max=4000"`
}

type messageSent struct {
	Success   bool  `json:"success"`
	MessageID int64 `json:"message_id"`
}

func (s *Server) startClaim(w http.ResponseWriter, r *http.Request) {
	var req startClaimRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.d.Claims.Start(r.Context(), caller(r), req.ItemID, req.ProofDescription)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"claim_id": c.ID})
}

// claimAction decodes {claim_id} and applies fn as the caller.
func (s *Server) claimAction(fn func(r *http.Request, callerID, claimID int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req claimRequest
		if err := s.decode(w, r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
		if err := fn(r, caller(r).ID, req.ClaimID); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, okBody)
	}
}

func (s *Server) rejectClaim(w http.ResponseWriter, r *http.Request) {
	s.claimAction(func(r *http.Request, callerID, claimID int64) error {
		return s.d.Claims.Reject(r.Context(), callerID, claimID)
	})(w, r)
}

func (s *Server) requestIdentity(w http.ResponseWriter, r *http.Request) {
	s.claimAction(func(r *http.Request, callerID, claimID int64) error {
		return s.d.Claims.RequestIdentity(r.Context(), callerID, claimID)
	})(w, r)
}

func (s *Server) submitIdentity(w http.ResponseWriter, r *http.Request) {
	var req submitIdentityRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	err := s.d.Claims.SubmitIdentity(r.Context(), caller(r).ID, req.ClaimID, model.IdentityAnswers{
		FullName:          req.FullName,
		PlaceFound:        req.PlaceFound,
		DateOfLoss:        req.DateOfLoss,
		LocationOfLoss:    req.LocationOfLoss,
		UnlockDescription: req.UnlockDescription,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (s *Server) initiateHandover(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	code, err := s.d.Claims.InitiateHandover(r.Context(), caller(r).ID, req.ClaimID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success      bool   `json:"success"`
		HandoverCode string `json:"handover_code"`
	}{true, code})
}

func (s *Server) confirmHandover(w http.ResponseWriter, r *http.Request) {
	var req confirmHandoverRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.d.Claims.ConfirmHandover(r.Context(), caller(r).ID, req.ClaimID, req.Code); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (s *Server) listClaims(w http.ResponseWriter, r *http.Request) {
	out, err := s.d.Claims.List(r.Context(), caller(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimSummaries(out))
}

func (s *Server) claimThread(w http.ResponseWriter, r *http.Request) {
	claimID, err := parseID(r.URL.Query().Get("claim_id"), "claim_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	msgs, err := s.d.Claims.Thread(r.Context(), caller(r).ID, claimID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessages(msgs))
}

func (s *Server) sendClaimMessage(w http.ResponseWriter, r *http.Request) {
	var req claimMessageRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.d.Claims.Send(r.Context(), caller(r).ID, req.ClaimID, req.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageSent{Success: true, MessageID: m.ID})
}
