package httpserver

import "net/http"

func (s *Server) normalizeLocations(w http.ResponseWriter, r *http.Request) {
	res, err := s.d.Admin.NormalizeLocations(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status     string `json:"status"`
		TotalItems int    `json:"total_items"`
		Updated    int    `json:"updated"`
	}{"success", res.Total, res.Updated})
}

func (s *Server) wipeItems(w http.ResponseWriter, r *http.Request) {
	n, err := s.d.Admin.WipeItems(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) adminDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.d.Admin.DeleteItem(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}
