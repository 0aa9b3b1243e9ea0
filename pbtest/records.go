package pbtest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultPerPage = 30
	maxPerPage     = 500
)

// Record actions carried in realtime events.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Seed inserts a record without publishing an event and returns it with
// its generated fields.
func (s *Server) Seed(collectionName string, data map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.insert(collectionName, data)
}

// AddUser creates a user that can sign in with email and password.
func (s *Server) AddUser(email, password string) map[string]any {
	return s.Seed(UsersCollection, map[string]any{
		"email":    email,
		"username": email,
		"password": password,
		"verified": true,
	})
}

// Record returns a stored record.
func (s *Server) Record(collectionName, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.get(collectionName, id)
}

// publishRecord notifies subscribers of the collection and of the record.
func (s *Server) publishRecord(collectionName, action string, rec map[string]any) {
	id, _ := rec["id"].(string)
	_ = s.Publish(collectionName, action, rec)
	_ = s.Publish(collectionName+"/"+id, action, rec)
}

func (s *Server) handleCreateCollection(c *gin.Context) {
	var body struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		writeFieldError(c.Writer, http.StatusBadRequest, "Failed to create collection.", map[string]fieldProblem{
			"name": {Code: "validation_required", Message: "Missing required value."},
		})
		return
	}
	if body.Type == "" {
		body.Type = "base"
	}

	s.mu.Lock()
	if _, exists := s.store.collections[body.Name]; exists {
		s.mu.Unlock()
		writeFieldError(c.Writer, http.StatusBadRequest, "Failed to create collection.", map[string]fieldProblem{
			"name": {Code: "validation_collection_name_exists", Message: "Collection name must be unique."},
		})
		return
	}
	col := s.store.ensure(body.Name, body.Type)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"id": col.ID, "name": col.Name, "type": col.Type, "schema": []any{}})
}

func (s *Server) handleList(c *gin.Context) {
	page := queryInt(c, "page", 1)
	perPage := min(queryInt(c, "perPage", defaultPerPage), maxPerPage)

	s.mu.Lock()
	items, err := s.store.list(c.Param("collection"), c.Query("filter"), c.Query("sort"))
	s.mu.Unlock()
	if err != nil {
		writeError(c.Writer, http.StatusBadRequest, "Invalid filter parameters.")
		return
	}

	total := len(items)
	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)
	pageItems := items[start:end]
	if pageItems == nil {
		pageItems = []map[string]any{}
	}

	c.JSON(http.StatusOK, gin.H{
		"page":       page,
		"perPage":    perPage,
		"totalItems": total,
		"totalPages": (total + perPage - 1) / perPage,
		"items":      pageItems,
	})
}

func (s *Server) handleView(c *gin.Context) {
	s.mu.Lock()
	rec, ok := s.store.get(c.Param("collection"), c.Param("id"))
	s.mu.Unlock()
	if !ok {
		writeError(c.Writer, http.StatusNotFound, "The requested resource wasn't found.")
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleCreate(c *gin.Context) {
	data, ok := bindRecord(c)
	if !ok {
		return
	}
	name := c.Param("collection")

	s.mu.Lock()
	rec := s.store.insert(name, data)
	s.mu.Unlock()

	s.publishRecord(name, ActionCreate, rec)
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleUpdate(c *gin.Context) {
	data, ok := bindRecord(c)
	if !ok {
		return
	}
	name := c.Param("collection")

	s.mu.Lock()
	rec, found := s.store.update(name, c.Param("id"), data)
	s.mu.Unlock()
	if !found {
		writeError(c.Writer, http.StatusNotFound, "The requested resource wasn't found.")
		return
	}

	s.publishRecord(name, ActionUpdate, rec)
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleDelete(c *gin.Context) {
	name := c.Param("collection")

	s.mu.Lock()
	rec, found := s.store.remove(name, c.Param("id"))
	s.mu.Unlock()
	if !found {
		writeError(c.Writer, http.StatusNotFound, "The requested resource wasn't found.")
		return
	}

	s.publishRecord(name, ActionDelete, rec)
	c.Status(http.StatusNoContent)
}

// bindRecord reads a JSON or multipart record body.
func bindRecord(c *gin.Context) (map[string]any, bool) {
	data := map[string]any{}
	if c.ContentType() == "multipart/form-data" {
		form, err := c.MultipartForm()
		if err != nil {
			writeError(c.Writer, http.StatusBadRequest, "Failed to load the submitted data.")
			return nil, false
		}
		for k, v := range form.Value {
			if len(v) > 0 {
				data[k] = v[0]
			}
		}
		for k, files := range form.File {
			if len(files) > 0 {
				data[k] = files[0].Filename
			}
		}
		return data, true
	}
	if c.Request.ContentLength == 0 {
		return data, true
	}
	if err := c.ShouldBindJSON(&data); err != nil {
		writeError(c.Writer, http.StatusBadRequest, "Failed to load the submitted data.")
		return nil, false
	}
	return data, true
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}
