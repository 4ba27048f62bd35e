// Package http exposes the deal pages API: offer submission, chat
// sessions, domain and orderbook reads, and the sitemap. It carries no
// engine logic, every handler delegates to the negotiation service.
package http

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	"deal-lab/auth"
	"deal-lab/domain"
	liberrors "deal-lab/errors"
	"deal-lab/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Server struct {
	service services.INegotiationService
	issuer  *auth.TokenIssuer
	log     *slog.Logger
	baseURL string
	engine  *gin.Engine
}

func NewServer(service services.INegotiationService, issuer *auth.TokenIssuer,
	log *slog.Logger, baseURL string) *Server {
	s := &Server{
		service: service,
		issuer:  issuer,
		log:     log,
		baseURL: baseURL,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	v1 := r.Group("/")
	{
		v1.GET("/domains/:tld/:label", s.getDomain)
		v1.GET("/orderbook/:tld/:label", s.getOrderbook)
		v1.GET("/sitemap.xml", s.getSitemap)

		v1.POST("/chat/session", s.openSession)
		v1.POST("/chat/session/restart", s.restartSession)
		v1.DELETE("/chat/session", s.closeSession)
		v1.GET("/chat/messages", s.getMessages)
		v1.POST("/chat/messages", s.postMessage)
		v1.POST("/chat/quick-offer", s.postQuickOffer)

		v1.POST("/offers", s.submitOffer)
		v1.GET("/offers", s.listOffers)
		v1.GET("/offers/:id", s.getOffer)
		v1.POST("/offers/:id/accept", s.acceptOffer)
		v1.POST("/offers/:id/cancel", s.cancelOffer)
	}
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Engine exposes the router for tests and embedding.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func errorResponse(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case stderrors.Is(err, liberrors.ErrInvalidOfferInput),
		stderrors.Is(err, liberrors.ErrInvalidMessage),
		stderrors.Is(err, liberrors.ErrInvalidDomainKey):
		status = http.StatusBadRequest
	case stderrors.Is(err, liberrors.ErrInvalidToken):
		status = http.StatusUnauthorized
	case stderrors.Is(err, liberrors.ErrUnknownOffer):
		status = http.StatusNotFound
	case stderrors.Is(err, liberrors.ErrInvalidTransition),
		stderrors.Is(err, liberrors.ErrSessionNotActive):
		status = http.StatusConflict
	case stderrors.Is(err, liberrors.ErrOfferSubmissionFailed):
		status = http.StatusBadGateway
	case stderrors.Is(err, liberrors.ErrChannelUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func pathKey(c *gin.Context) (domain.DomainKey, error) {
	return domain.NewDomainKey(c.Param("tld"), c.Param("label"))
}

func (s *Server) getDomain(c *gin.Context) {
	key, err := pathKey(c)
	if err != nil {
		errorResponse(c, err)
		return
	}
	info, err := s.service.Domain(c.Request.Context(), key)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) getOrderbook(c *gin.Context) {
	key, err := pathKey(c)
	if err != nil {
		errorResponse(c, err)
		return
	}
	snapshot, err := s.service.Orderbook(c.Request.Context(), key)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

type openSessionRequest struct {
	TLD    string `json:"tld" validate:"required"`
	Label  string `json:"label" validate:"required"`
	Buyer  string `json:"buyer" validate:"required"`
	Seller string `json:"seller" validate:"required"`
}

func (s *Server) openSession(c *gin.Context) {
	var body openSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		errorResponse(c, fmt.Errorf("%w: %v", liberrors.ErrInvalidMessage, err))
		return
	}
	if err := validate.Struct(body); err != nil {
		errorResponse(c, fmt.Errorf("%w: %v", liberrors.ErrInvalidMessage, err))
		return
	}
	key, err := domain.NewDomainKey(body.TLD, body.Label)
	if err != nil {
		errorResponse(c, err)
		return
	}

	participants := domain.Participants{Buyer: body.Buyer, Seller: body.Seller}
	if err := s.service.StartSession(c.Request.Context(), key, participants); err != nil {
		errorResponse(c, err)
		return
	}

	token, err := s.issuer.Generate(body.Buyer, key)
	if err != nil {
		errorResponse(c, err)
		return
	}
	state, _ := s.service.SessionState()
	c.JSON(http.StatusCreated, gin.H{"token": token, "state": state})
}

func (s *Server) restartSession(c *gin.Context) {
	if err := s.service.RestartSession(c.Request.Context()); err != nil {
		errorResponse(c, err)
		return
	}
	state, _ := s.service.SessionState()
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (s *Server) closeSession(c *gin.Context) {
	s.service.StopSession()
	state, _ := s.service.SessionState()
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (s *Server) getMessages(c *gin.Context) {
	if err := s.authorize(c); err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": s.service.Messages()})
}

type postMessageRequest struct {
	Body string `json:"body" validate:"required"`
}

func (s *Server) postMessage(c *gin.Context) {
	if err := s.authorize(c); err != nil {
		errorResponse(c, err)
		return
	}
	var body postMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		errorResponse(c, fmt.Errorf("%w: %v", liberrors.ErrInvalidMessage, err))
		return
	}
	if err := validate.Struct(body); err != nil {
		errorResponse(c, fmt.Errorf("%w: %v", liberrors.ErrInvalidMessage, err))
		return
	}
	msg, err := s.service.SendText(c.Request.Context(), body.Body)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

type quickOfferRequest struct {
	Amount string `json:"amount" validate:"required"`
}

func (s *Server) postQuickOffer(c *gin.Context) {
	if err := s.authorize(c); err != nil {
		errorResponse(c, err)
		return
	}
	var body quickOfferRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		errorResponse(c, fmt.Errorf("%w: %v", liberrors.ErrInvalidMessage, err))
		return
	}
	if err := validate.Struct(body); err != nil {
		errorResponse(c, fmt.Errorf("%w: %v", liberrors.ErrInvalidMessage, err))
		return
	}
	msg, err := s.service.SendQuickOffer(c.Request.Context(), body.Amount)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

type submitOfferRequest struct {
	Price      string `json:"price" validate:"required"`
	TTLMinutes int    `json:"ttlMinutes" validate:"required,gt=0"`
}

func (s *Server) submitOffer(c *gin.Context) {
	var body submitOfferRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		errorResponse(c, fmt.Errorf("%w: %v", liberrors.ErrInvalidOfferInput, err))
		return
	}
	if err := validate.Struct(body); err != nil {
		errorResponse(c, fmt.Errorf("%w: %v", liberrors.ErrInvalidOfferInput, err))
		return
	}
	offer, err := s.service.SubmitOffer(c.Request.Context(), body.Price, body.TTLMinutes)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, offer)
}

func (s *Server) listOffers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"offers": s.service.Offers()})
}

func (s *Server) getOffer(c *gin.Context) {
	offerID := c.Param("id")
	status, err := s.service.OfferStatus(offerID)
	if err != nil {
		errorResponse(c, err)
		return
	}
	remaining, err := s.service.TimeRemaining(offerID)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"offerId":          offerID,
		"status":           status,
		"secondsRemaining": int64(remaining.Seconds()),
	})
}

func (s *Server) acceptOffer(c *gin.Context) {
	offer, err := s.service.AcceptOffer(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

func (s *Server) cancelOffer(c *gin.Context) {
	offer, err := s.service.CancelOffer(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

// authorize checks the bearer session token on chat endpoints.
func (s *Server) authorize(c *gin.Context) error {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return liberrors.ErrInvalidToken
	}
	if _, err := s.issuer.Validate(header[len(prefix):]); err != nil {
		return fmt.Errorf("%w: %v", liberrors.ErrInvalidToken, err)
	}
	return nil
}
