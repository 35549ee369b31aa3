package http

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/hoopgate/core"
	"github.com/layer-3/hoopgate/service"
)

var refererSlug = regexp.MustCompile(`[?&](?:s|v)=([^&#]+)`)

// GateHandlers contains HTTP handlers for the game pages and gate API
type GateHandlers struct {
	gate  *service.GateService
	links *service.LinkService
}

// NewGateHandlers creates new gate handlers
func NewGateHandlers(gate *service.GateService, links *service.LinkService) *GateHandlers {
	return &GateHandlers{
		gate:  gate,
		links: links,
	}
}

// Landing starts a session and renders the first game
func (h *GateHandlers) Landing(c *gin.Context) {
	slug := c.Query("s")
	if slug == "" {
		slug = c.Query("v")
	}

	sess, err := h.gate.StartSession(c.Request.Context(), c.ClientIP(), slug)
	if err != nil {
		renderError(c, http.StatusInternalServerError, titleServer, "Initialization failed.")
		return
	}

	data, err := gameData(sess.Challenge)
	if err != nil {
		renderError(c, http.StatusInternalServerError, titleServer, "Security handshake failed. Please refresh.")
		return
	}

	c.HTML(http.StatusOK, "game.html", gin.H{
		"Title":        "Verify",
		"SessionToken": sess.Token,
		"GData":        data,
	})
}

// Final renders the step-two game. StepTwoShield runs first.
func (h *GateHandlers) Final(c *gin.Context) {
	linkID := c.Query("id")

	pc, err := h.gate.Issue(c.Request.Context(), service.IssueRequest{LinkID: linkID})
	if err != nil {
		renderError(c, http.StatusInternalServerError, titleServer, "Final stage failed.")
		return
	}

	data, err := gameData(pc)
	if err != nil {
		renderError(c, http.StatusInternalServerError, titleServer, "Security handshake failed. Please refresh.")
		return
	}

	c.HTML(http.StatusOK, "final.html", gin.H{
		"Title":  "Final Step",
		"LinkID": linkID,
		"GData":  data,
	})
}

// Init issues a challenge for the link named in the body, its slug, or the
// slug found in the Referer query
func (h *GateHandlers) Init(c *gin.Context) {
	var req struct {
		SessionToken string `json:"sessionToken"`
		Slug         string `json:"slug"`
		LinkID       string `json:"linkId"`
	}

	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}

	if req.LinkID == "" && req.Slug == "" {
		if m := refererSlug.FindStringSubmatch(c.GetHeader("Referer")); m != nil {
			req.Slug = m[1]
		}
	}

	pc, err := h.gate.Issue(c.Request.Context(), service.IssueRequest{LinkID: req.LinkID, Slug: req.Slug})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Init failed"})
		return
	}

	c.JSON(http.StatusOK, struct {
		Success bool `json:"success"`
		core.PublicChallenge
	}{true, pc})
}

// ValidateStepOne checks a first-stage shot
func (h *GateHandlers) ValidateStepOne(c *gin.Context) {
	var req struct {
		ChallengeID  string `json:"challengeId" binding:"required"`
		SessionToken string `json:"sessionToken"`
		Payload      string `json:"v" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	res, err := h.gate.SubmitStepOne(c.Request.Context(), service.StepOneRequest{
		ChallengeID:  req.ChallengeID,
		Payload:      req.Payload,
		SessionToken: req.SessionToken,
		IP:           c.ClientIP(),
		UserAgent:    c.GetHeader("User-Agent"),
	})
	if err != nil {
		writeError(c, err, "Validation failed")
		return
	}

	if res.Verdict == core.VerdictMiss {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "miss"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "redirect": res.Redirect})
}

// ValidateStepTwo checks the final shot and returns the destination
func (h *GateHandlers) ValidateStepTwo(c *gin.Context) {
	var req struct {
		ChallengeID string `json:"challengeId" binding:"required"`
		LinkID      string `json:"linkId" binding:"required"`
		Payload     string `json:"v" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	res, err := h.gate.SubmitStepTwo(c.Request.Context(), service.StepTwoRequest{
		ChallengeID: req.ChallengeID,
		LinkID:      req.LinkID,
		Payload:     req.Payload,
		IP:          c.ClientIP(),
	})
	if err != nil {
		writeError(c, err, "Final verification failed")
		return
	}

	if res.Verdict == core.VerdictMiss {
		c.JSON(http.StatusForbidden, gin.H{"error": "Verification failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"destination": res.Destination})
}

// Preview returns the cosmetic flight of a shot under the displayed physics
func (h *GateHandlers) Preview(c *gin.Context) {
	var req struct {
		ChallengeID  string  `json:"challengeId" binding:"required"`
		Angle        float64 `json:"a"`
		Power        float64 `json:"p"`
		ScreenWidth  float64 `json:"sw"`
		ScreenHeight float64 `json:"sh"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	path, err := h.gate.Preview(c.Request.Context(), service.PreviewRequest{
		ChallengeID:  req.ChallengeID,
		Angle:        req.Angle,
		Power:        req.Power,
		ScreenWidth:  req.ScreenWidth,
		ScreenHeight: req.ScreenHeight,
	})
	if err != nil {
		writeError(c, err, "Preview failed")
		return
	}

	c.JSON(http.StatusOK, path)
}

// seconds accepts a JSON number or numeric string
type seconds int

func (s *seconds) UnmarshalJSON(b []byte) error {
	str := strings.Trim(string(b), `"`)
	if str == "" || str == "null" {
		return nil
	}
	n, err := strconv.Atoi(str)
	if err != nil {
		return err
	}
	*s = seconds(n)
	return nil
}

type generateBody struct {
	TargetURL string  `json:"targetUrl"`
	URL       string  `json:"url"`
	API       string  `json:"api"`
	Site      string  `json:"site"`
	Wait      seconds `json:"wait"`
}

// bindGenerate merges query parameters with an optional JSON body; the body wins
func bindGenerate(c *gin.Context) (generateBody, error) {
	var body generateBody
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
			return generateBody{}, err
		}
	}
	if body.URL == "" {
		body.URL = c.Query("url")
	}
	if body.API == "" {
		body.API = c.Query("api")
	}
	if body.Site == "" {
		body.Site = c.Query("site")
	}
	if body.Wait == 0 {
		if n, err := strconv.Atoi(c.Query("wait")); err == nil {
			body.Wait = seconds(n)
		}
	}
	return body, nil
}

func baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

// Generate creates a link shortened through the configured shortener
func (h *GateHandlers) Generate(c *gin.Context) {
	body, err := bindGenerate(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	target := c.Query("url")
	if target == "" {
		target = body.TargetURL
	}
	if target == "" {
		target = body.URL
	}
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing targetUrl"})
		return
	}

	out, err := h.links.Generate(c.Request.Context(), service.GenerateRequest{
		TargetURL: target,
		MinWait:   time.Duration(body.Wait) * time.Second,
		BaseURL:   baseURL(c),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Gen failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

// GetLink creates a link shortened through the caller's shortener account
func (h *GateHandlers) GetLink(c *gin.Context) {
	body, err := bindGenerate(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.API == "" || body.Site == "" || body.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing params"})
		return
	}

	out, err := h.links.GenerateDynamic(c.Request.Context(), service.DynamicGenerateRequest{
		GenerateRequest: service.GenerateRequest{
			TargetURL: body.URL,
			MinWait:   time.Duration(body.Wait) * time.Second,
			BaseURL:   baseURL(c),
		},
		APIToken: body.API,
		Site:     body.Site,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "GetLink failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

// Health reports liveness
func (h *GateHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
