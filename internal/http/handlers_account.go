package http

import (
	"net/http"

	"ledger/internal/core"
	"ledger/internal/log"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledger.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	acct, err := s.ledger.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in core.AccountInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	in.Name = sanitizeInput(in.Name)

	acct, err := s.ledger.CreateAccount(r.Context(), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	var in core.AccountInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	in.Name = sanitizeInput(in.Name)

	acct, err := s.ledger.UpdateAccount(r.Context(), id, in)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.ledger.DeleteAccount(r.Context(), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
