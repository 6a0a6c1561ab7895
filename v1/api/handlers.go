package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Aleph-Alpha/schemawatch/v1/pipeline"
	"github.com/Aleph-Alpha/schemawatch/v1/schema"
	"github.com/Aleph-Alpha/schemawatch/v1/versioning"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "UP",
		"application": s.cfg.Application,
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
		"features":    s.deps.Features,
	})
}

// handleProduce sends the request body unchanged to the produce topic.
func (s *Server) handleProduce(w http.ResponseWriter, r *http.Request) {
	if s.deps.Producer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "kafka producer is not configured",
		})
		return
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		key = uuid.NewString()
	}

	if err := s.deps.Producer.PublishTo(r.Context(), s.cfg.ProduceTopic, key, body, nil); err != nil {
		s.log.WarnWithContext(r.Context(), "failed to produce message", err, map[string]interface{}{"topic": s.cfg.ProduceTopic})
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Data sent to Kafka",
		"topic":   s.cfg.ProduceTopic,
		"key":     key,
	})
}

// listMessages serves /api/messages and its topic, service and level
// variants. limit, from and to (RFC 3339) are accepted as query parameters.
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	q := pipeline.Query{
		Topic:   vars["topic"],
		Service: vars["service"],
		Level:   vars["level"],
	}

	params := r.URL.Query()
	if v := params.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		q.Limit = limit
	}
	for name, dst := range map[string]*time.Time{"from": &q.From, "to": &q.To} {
		if v := params.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid "+name, err.Error())
				return
			}
			*dst = t
		}
	}

	rows, err := s.deps.Metadata.Find(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query messages", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) topicStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Metadata.TopicStats(r.Context(), mux.Vars(r)["topic"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute topic stats", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) listSchemas(w http.ResponseWriter, r *http.Request) {
	versions, err := s.deps.Versions.ListAll(r.Context())
	s.writeVersions(w, versions, err)
}

func (s *Server) listActiveSchemas(w http.ResponseWriter, r *http.Request) {
	versions, err := s.deps.Versions.ListActive(r.Context())
	s.writeVersions(w, versions, err)
}

func (s *Server) subjectVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.deps.Registry.Store().ListVersions(r.Context(), mux.Vars(r)["subject"])
	s.writeVersions(w, versions, err)
}

func (s *Server) subjectVersion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	version, err := strconv.Atoi(vars["version"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid version", vars["version"])
		return
	}
	v, err := s.deps.Versions.GetVersion(r.Context(), vars["subject"], version)
	s.writeVersion(w, v, err)
}

func (s *Server) schemaByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schema id", mux.Vars(r)["id"])
		return
	}
	v, err := s.deps.Versions.GetBySchemaID(r.Context(), id)
	s.writeVersion(w, v, err)
}

// registrySubjects lists the subjects of the external registry. A missing or
// failing registry yields an empty list.
func (s *Server) registrySubjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Registry.Subjects(r.Context()))
}

type inferResponse struct {
	Schema string        `json:"schema"`
	Fields []fieldResult `json:"fields"`
	Valid  bool          `json:"valid"`
	Error  string        `json:"error,omitempty"`
}

type fieldResult struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (s *Server) inferSchema(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, infer(body))
}

func infer(body []byte) inferResponse {
	res := inferResponse{Schema: schema.EmptySchema, Fields: []fieldResult{}}
	fields, err := schema.DeriveFields(body)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Valid = true
	res.Schema = fields.Canonical()
	for _, f := range fields {
		res.Fields = append(res.Fields, fieldResult{Name: f.Name, Type: string(f.Type)})
	}
	return res
}

type checkResponse struct {
	inferResponse
	Subject       string   `json:"subject"`
	Status        string   `json:"status"`
	LatestVersion int      `json:"latest_version,omitempty"`
	LatestSchema  string   `json:"latest_schema,omitempty"`
	Changes       []string `json:"changes,omitempty"`
}

// checkSchema reports whether the posted record would drift from the latest
// version of the subject. It never registers.
func (s *Server) checkSchema(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	subject := mux.Vars(r)["subject"]

	res := checkResponse{inferResponse: infer(body), Subject: subject}
	d := s.deps.Registry.CheckDrift(r.Context(), subject, res.Schema)
	res.Status = d.Status.String()
	if d.Latest != nil {
		res.LatestVersion = d.Latest.Version
		res.LatestSchema = d.Latest.Definition
		if d.Drifted() {
			res.Changes = schema.DiffCanonical(d.Latest.Definition, res.Schema)
		}
	}
	if d.Err != nil {
		writeError(w, http.StatusServiceUnavailable, "drift check failed", d.Err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "failed to read request body", err.Error())
		return nil, false
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty request body", "")
		return nil, false
	}
	return body, true
}

func (s *Server) writeVersions(w http.ResponseWriter, versions []versioning.SchemaVersion, err error) {
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query schema versions", err.Error())
		return
	}
	if versions == nil {
		versions = []versioning.SchemaVersion{}
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) writeVersion(w http.ResponseWriter, v versioning.SchemaVersion, err error) {
	switch {
	case errors.Is(err, versioning.ErrNotFound):
		writeError(w, http.StatusNotFound, "schema version not found", "")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to query schema version", err.Error())
	default:
		writeJSON(w, http.StatusOK, v)
	}
}
