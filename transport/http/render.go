package http

import (
	"embed"
	"encoding/base64"
	"encoding/json"
	"html/template"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/hoopgate/core"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page titles and messages shown on themed error pages
const (
	titleForbidden  = "403 Forbidden"
	titleBadRequest = "400 Bad Request"
	titleServer     = "500 Server Error"
)

// LoadTemplates parses the embedded pages once. The result is installed on the
// engine and never modified afterwards.
func LoadTemplates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// gameData encodes the public challenge the way the client bootstraps from it
func gameData(pc core.PublicChallenge) (string, error) {
	b, err := json.Marshal(pc)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func renderError(c *gin.Context, status int, title, message string) {
	c.HTML(status, "error.html", gin.H{"Title": title, "Message": message})
}
