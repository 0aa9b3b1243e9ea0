package pbtest

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// IssueToken signs an auth token for a record of collectionName.
func (s *Server) IssueToken(collectionName, recordID string) (string, error) {
	s.mu.Lock()
	col, ok := s.store.collections[collectionName]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("pbtest: unknown collection %q", collectionName)
	}

	claims := jwt.MapClaims{
		"id":           recordID,
		"type":         "authRecord",
		"collectionId": col.ID,
		"exp":          time.Now().Add(s.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
}

// verifyToken parses an Authorization header value issued by this server.
func (s *Server) verifyToken(header string) (jwt.MapClaims, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return nil, fmt.Errorf("missing token")
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.signKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Server) handleAuthWithPassword(c *gin.Context) {
	var body struct {
		Identity string `json:"identity"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c.Writer, http.StatusBadRequest, "Failed to load the submitted data.")
		return
	}
	name := c.Param("collection")

	s.mu.Lock()
	rec, ok := s.store.authenticate(name, body.Identity, body.Password)
	s.mu.Unlock()
	if !ok {
		writeError(c.Writer, http.StatusBadRequest, "Failed to authenticate.")
		return
	}
	s.respondAuth(c, name, rec)
}

func (s *Server) handleAuthRefresh(c *gin.Context) {
	claims, err := s.verifyToken(c.GetHeader("Authorization"))
	if err != nil {
		writeError(c.Writer, http.StatusUnauthorized, "The request requires valid record authorization token to be set.")
		return
	}
	name := c.Param("collection")
	id, _ := claims["id"].(string)

	s.mu.Lock()
	rec, ok := s.store.get(name, id)
	s.mu.Unlock()
	if !ok {
		writeError(c.Writer, http.StatusNotFound, "Missing auth record context.")
		return
	}
	s.respondAuth(c, name, rec)
}

func (s *Server) respondAuth(c *gin.Context, collectionName string, rec map[string]any) {
	id, _ := rec["id"].(string)
	token, err := s.IssueToken(collectionName, id)
	if err != nil {
		writeError(c.Writer, http.StatusInternalServerError, "Failed to issue token.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "record": rec})
}
