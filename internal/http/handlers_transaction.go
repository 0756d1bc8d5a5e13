package http

import (
	"net/http"

	"ledger/internal/core"
	"ledger/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	txns, err := s.ledger.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	txn, err := s.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	in, err := decodeTransaction(w, r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	txn, err := s.ledger.CreateTransaction(r.Context(), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	in, err := decodeTransaction(w, r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	txn, err := s.ledger.UpdateTransaction(r.Context(), id, in)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func decodeTransaction(w http.ResponseWriter, r *http.Request) (core.TransactionInput, error) {
	var in core.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		return core.TransactionInput{}, err
	}
	in.Category = sanitizeInput(in.Category)
	in.Description = sanitizeInput(in.Description)
	return in, nil
}
