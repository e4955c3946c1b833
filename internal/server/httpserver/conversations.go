package httpserver

import "net/http"

type initiateConversationRequest struct {
	ItemID int64 `json:"item_id" validate:"required,gt=0"`
}

type contentRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

func (s *Server) initiateConversation(w http.ResponseWriter, r *http.Request) {
	var req initiateConversationRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, created, err := s.d.Conversations.Initiate(r.Context(), caller(r).ID, req.ItemID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := "existing"
	if created {
		status = "new"
	}
	writeJSON(w, http.StatusOK, struct {
		ConversationID int64  `json:"conversation_id"`
		Status         string `json:"status"`
	}{c.ID, status})
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	out, err := s.d.Conversations.List(r.Context(), caller(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationSummaries(out))
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	me := caller(r).ID
	d, err := s.d.Conversations.Get(r.Context(), me, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationDetail(*d, me))
}

func (s *Server) conversationMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	msgs, err := s.d.Conversations.Messages(r.Context(), caller(r).ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessages(msgs))
}

func (s *Server) sendConversationMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req contentRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.d.Conversations.Send(r.Context(), caller(r).ID, id, req.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageSent{Success: true, MessageID: m.ID})
}
