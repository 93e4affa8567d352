// Package http exposes a store over a small JSON REST API.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/cyberpath/sentinel/errors"
	"github.com/cyberpath/sentinel/query"
	"github.com/cyberpath/sentinel/store"
	"github.com/cyberpath/sentinel/value"
)

// ListenAndServe starts an http server bound to the given address.
func ListenAndServe(db *store.Store, addr string) error {
	return http.ListenAndServe(addr, Handler(db))
}

// Handler returns an http.Handler serving the store API:
//
//	GET    /collections
//	DELETE /collections/{collection}
//	GET    /collections/{collection}/documents/{id}
//	POST   /collections/{collection}/documents/{id}   insert
//	PATCH  /collections/{collection}/documents/{id}   update
//	PUT    /collections/{collection}/documents/{id}   upsert
//	DELETE /collections/{collection}/documents/{id}
//	POST   /collections/{collection}/query
//	POST   /collections/{collection}/aggregate
//	GET    /stats
func Handler(db *store.Store) http.Handler {
	s := &server{db: db}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections", s.listCollections)
	mux.HandleFunc("DELETE /collections/{collection}", s.deleteCollection)
	mux.HandleFunc("GET /collections/{collection}/documents/{id}", s.getDocument)
	mux.HandleFunc("POST /collections/{collection}/documents/{id}", s.putDocument)
	mux.HandleFunc("PATCH /collections/{collection}/documents/{id}", s.putDocument)
	mux.HandleFunc("PUT /collections/{collection}/documents/{id}", s.putDocument)
	mux.HandleFunc("DELETE /collections/{collection}/documents/{id}", s.deleteDocument)
	mux.HandleFunc("POST /collections/{collection}/query", s.query)
	mux.HandleFunc("POST /collections/{collection}/aggregate", s.aggregate)
	mux.HandleFunc("GET /stats", s.stats)
	return mux
}

type server struct {
	db *store.Store
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsKind(err, errors.KindNotFound):
		status = http.StatusNotFound
	case errors.IsKind(err, errors.KindConflict):
		status = http.StatusConflict
	case errors.IsKind(err, errors.KindInvalidArgument):
		status = http.StatusBadRequest
	case errors.IsKind(err, errors.KindAuth):
		status = http.StatusUnauthorized
	case errors.IsKind(err, errors.KindEmptyAggregation):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *server) collection(w http.ResponseWriter, r *http.Request) (*store.Collection, bool) {
	c, err := s.db.Collection(r.Context(), r.PathValue("collection"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return c, true
}

func (s *server) listCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.db.ListCollections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *server) deleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteCollection(r.Context(), r.PathValue("collection")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) getDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r)
	if !ok {
		return
	}
	doc, found, err := c.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeError(w, errors.NotFound(c.Name(), r.PathValue("id")))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *server) putDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r)
	if !ok {
		return
	}
	var data value.Value
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, errors.Invalid("parsing document data: %v", err))
		return
	}
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodPost:
		doc, err := c.Insert(r.Context(), id, data)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, doc)
	case http.MethodPatch:
		doc, err := c.Update(r.Context(), id, data)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	default:
		doc, created, err := c.Upsert(r.Context(), id, data)
		if err != nil {
			writeError(w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, doc)
	}
}

func (s *server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r)
	if !ok {
		return
	}
	if err := c.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type filterRequest struct {
	Field string      `json:"field"`
	Op    string      `json:"op"`
	Value value.Value `json:"value"`
}

type sortRequest struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

type queryRequest struct {
	Filters    []filterRequest `json:"filters"`
	Sort       []sortRequest   `json:"sort"`
	Limit      *int            `json:"limit"`
	Offset     int             `json:"offset"`
	Projection []string        `json:"projection"`
}

func (q queryRequest) build() (query.Query, error) {
	b := query.New().Offset(q.Offset)
	if q.Limit != nil {
		if *q.Limit < 0 {
			return query.Query{}, errors.Invalid("limit must not be negative, got %d", *q.Limit)
		}
		b.Limit(*q.Limit)
	}
	for _, f := range q.Filters {
		b.Filter(f.Field, query.Operator(f.Op), f.Value)
	}
	for _, s := range q.Sort {
		switch s.Direction {
		case "", "asc":
			b.Sort(s.Field, query.Ascending)
		case "desc":
			b.Sort(s.Field, query.Descending)
		default:
			return query.Query{}, errors.Invalid("bad sort direction %q", s.Direction)
		}
	}
	if len(q.Projection) > 0 {
		b.Projection(q.Projection...)
	}
	return b.Build(), nil
}

func (q queryRequest) filters() []query.Filter {
	filters := make([]query.Filter, len(q.Filters))
	for i, f := range q.Filters {
		filters[i] = query.Filter{Field: f.Field, Op: query.Operator(f.Op), Value: f.Value}
	}
	return filters
}

func (s *server) query(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r)
	if !ok {
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Invalid("parsing query: %v", err))
		return
	}
	q, err := req.build()
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := c.Query(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type aggregateRequest struct {
	Filters []filterRequest `json:"filters"`
	Op      string          `json:"op"`
	Field   string          `json:"field"`
}

type aggregateResponse struct {
	Result float64 `json:"result"`
}

func (s *server) aggregate(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r)
	if !ok {
		return
	}
	var req aggregateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Invalid("parsing aggregation: %v", err))
		return
	}
	result, err := c.Aggregate(r.Context(), queryRequest{Filters: req.Filters}.filters(), store.Aggregation{
		Kind:  store.AggregationKind(req.Op),
		Field: req.Field,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, aggregateResponse{Result: result})
}
