package httpserver

import "net/http"

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.d.Users.Me(r.Context(), caller(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUser(*u))
}

func (s *Server) myStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.d.Users.Stats(r.Context(), caller(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"reported": st.Reported,
		"claims":   st.Claims,
		"reunited": st.Reunited,
	})
}

func (s *Server) myItems(w http.ResponseWriter, r *http.Request) {
	out, err := s.d.Users.MyItems(r.Context(), caller(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItems(out))
}

func (s *Server) myClaims(w http.ResponseWriter, r *http.Request) {
	out, err := s.d.Users.MyClaims(r.Context(), caller(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimSummaries(out))
}

func (s *Server) deleteMe(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Users.DeleteAccount(r.Context(), caller(r).ID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}
