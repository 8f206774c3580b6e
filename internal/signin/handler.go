package signin

import (
	"net/http"
	"strings"

	apierrors "github.com/dekaandassociates/booking-relay/internal/errors"
	"github.com/dekaandassociates/booking-relay/internal/logger"
	"github.com/gin-gonic/gin"
)

const (
	// Provider is the identity provider admins sign in with.
	Provider = "google"

	// DefaultNext is where the browser lands after sign-in.
	DefaultNext = "/dashboard.html"
)

// Authorizer builds hosted OAuth sign-in URLs.
type Authorizer interface {
	AuthorizeURL(provider, redirectTo string) string
}

type Handler struct {
	authorizer Authorizer
	siteURL    string
	logger     *logger.Logger
}

// NewHandler creates the sign-in redirect handler. A nil authorizer means sign-in
// is not configured.
func NewHandler(authorizer Authorizer, siteURL string, logger *logger.Logger) *Handler {
	return &Handler{
		authorizer: authorizer,
		siteURL:    strings.TrimRight(siteURL, "/"),
		logger:     logger,
	}
}

// Google handles GET /auth/google by redirecting to the provider's consent page.
func (h *Handler) Google(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("signin")

	if h.authorizer == nil {
		log.Error("sign-in requested but SUPABASE_URL is not configured")
		apierrors.AbortWithInternal(c, "sign-in is not configured", nil)
		return
	}

	target := h.authorizer.AuthorizeURL(Provider, h.siteURL+nextPath(c.Query("next")))
	c.Redirect(http.StatusFound, target)
}

// nextPath keeps redirects on this site: only paths starting with a single "/"
// are accepted.
func nextPath(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return DefaultNext
	}
	return next
}
