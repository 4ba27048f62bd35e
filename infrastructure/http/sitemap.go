package http

import (
	"encoding/xml"
	"fmt"
	"net/http"

	"deal-lab/domain"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type sitemapURL struct {
	Loc string `xml:"loc"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

func (s *Server) getSitemap(c *gin.Context) {
	keys, err := s.service.Domains(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}

	set := urlSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: lo.Map(keys, func(key domain.DomainKey, _ int) sitemapURL {
			return sitemapURL{Loc: fmt.Sprintf("%s/%s/%s", s.baseURL, key.TLD, key.Label)}
		}),
	}
	c.XML(http.StatusOK, set)
}
