package itemserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/feed"
	"github.com/udisondev/itemforge/internal/inventory"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/replication"
)

// ItemView is one inventory row as returned by the HTTP API.
type ItemView struct {
	Item    *feed.WireItem          `json:"item"`
	Context replication.ContextData `json:"context,omitempty"`
}

// Handler returns the HTTP API:
//
//	GET    /feed                                 websocket feed (?inventory=<id>)
//	GET    /inventories/{id}                     inventory contents
//	POST   /inventories/{id}/loot                ?table=<table/row>&level=<n>[&magic_find=<n>]
//	POST   /inventories/{id}/items/{item}/split  ?count=<n>
//	DELETE /inventories/{id}/items/{item}
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /feed", s.hub)
	mux.HandleFunc("GET /inventories/{id}", s.handleInventory)
	mux.HandleFunc("POST /inventories/{id}/loot", s.handleLoot)
	mux.HandleFunc("POST /inventories/{id}/items/{item}/split", s.handleSplit)
	mux.HandleFunc("DELETE /inventories/{id}/items/{item}", s.handleRelease)
	return mux
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	inv, err := s.Inventory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	entries := inv.Entries()
	views := make([]ItemView, 0, len(entries))
	for i := range entries {
		views = append(views, ItemView{Item: feed.Wire(&entries[i].Item), Context: entries[i].Context})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleLoot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	table, err := catalog.ParseHandle(q.Get("table"))
	if err != nil {
		writeError(w, err)
		return
	}
	level, err := intParam(q.Get("level"), 1)
	if err != nil {
		http.Error(w, "bad level", http.StatusBadRequest)
		return
	}
	magicFind, err := intParam(q.Get("magic_find"), s.cfg.Itemization.DefaultMagicFind)
	if err != nil {
		http.Error(w, "bad magic_find", http.StatusBadRequest)
		return
	}

	items, err := s.Loot(r.Context(), r.PathValue("id"), table, level, magicFind, model.Location{})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]*feed.WireItem, 0, len(items))
	for i := range items {
		out = append(out, feed.Wire(&items[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(r.PathValue("item"))
	if err != nil {
		http.Error(w, "bad item id", http.StatusBadRequest)
		return
	}
	count, err := intParam(r.URL.Query().Get("count"), 0)
	if err != nil {
		http.Error(w, "bad count", http.StatusBadRequest)
		return
	}
	inv, err := s.Inventory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	// отделённая часть остаётся в том же инвентаре
	split, err := inv.SplitInPlace(itemID, count, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, feed.Wire(&split))
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(r.PathValue("item"))
	if err != nil {
		http.Error(w, "bad item id", http.StatusBadRequest)
		return
	}
	inv, err := s.Inventory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := inv.Release(itemID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func intParam(v string, def int32) (int32, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrInvalidHandle):
		status = http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, replication.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, inventory.ErrCannotSplit), errors.Is(err, inventory.ErrCannotTake),
		errors.Is(err, replication.ErrNotAuthority):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}
