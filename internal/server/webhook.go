package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	signatureHeader = "X-Webhook-Signature"
	maxWebhookBody  = 1 << 20
)

type revalidateRequest struct {
	Type string `json:"_type"`
	ID   string `json:"_id"`
}

// Sign returns the signature header value for body
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, header string) bool {
	got, err := hex.DecodeString(strings.TrimPrefix(header, "sha256="))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func (s *Server) revalidate(c *gin.Context) {
	secret := s.cfg.Webhook.Secret
	if secret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "revalidation is not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if !validSignature(secret, body, c.GetHeader(signatureHeader)) {
		log.Warnf("🚫 Rejected revalidation webhook with bad signature from %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var req revalidateRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document _type is required"})
		return
	}

	tags, err := s.storefront.Revalidate(c.Request.Context(), req.Type, req.ID)
	if err != nil {
		abortInternal(c, "Failed to queue revalidation", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"revalidated": len(tags) > 0, "tags": tags})
}
