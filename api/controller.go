// Package api implements §6.1/§6.5: the REST and WebSocket surface, built
// with gin-gonic/gin and gorilla/websocket following the teacher's
// Controller-with-injected-accessor pattern (api/api.go's Controller holding
// a DatabaseAccessor/FlowEventAccessor pair, generalized here to a
// Repository/NotificationHub/Orchestrator trio).
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coreconvo/config"
	"coreconvo/contentstore"
	"coreconvo/domain"
	"coreconvo/introspection"
	"coreconvo/notificationhub"
	"coreconvo/orchestrator"
	"coreconvo/tools"
)

// ContentStore is the media boundary of §6.3.
type ContentStore = contentstore.Store

// Controller is DialogueCore's HTTP face, matching the teacher's Controller
// struct shape: one struct holding every collaborator a handler method needs,
// with handlers defined as its methods.
type Controller struct {
	repo     domain.Repository
	hub      *notificationhub.Hub
	orch     *orchestrator.Orchestrator
	intro    *introspection.Engine
	invoker  *tools.Invoker
	cfg      *config.Config
	store    ContentStore
	origins  *AllowedOrigins
}

func NewController(
	repo domain.Repository,
	hub *notificationhub.Hub,
	orch *orchestrator.Orchestrator,
	intro *introspection.Engine,
	invoker *tools.Invoker,
	cfg *config.Config,
	store ContentStore,
) *Controller {
	origins, err := ParseAllowedOrigins(cfg.CORSOrigins)
	if err != nil {
		origins = &AllowedOrigins{origins: map[string]struct{}{}}
	}
	return &Controller{repo: repo, hub: hub, orch: orch, intro: intro, invoker: invoker, cfg: cfg, store: store, origins: origins}
}

// DefineRoutes wires every route of §6.1, mirroring the teacher's
// DefineRoutes/DefineWorkspaceApiRoutes grouping style.
func DefineRoutes(ctrl *Controller) *gin.Engine {
	r := gin.Default()
	r.ForwardedByClientIP = true
	_ = r.SetTrustedProxies(nil)
	r.Use(CORSMiddleware(ctrl.origins))

	apiRoutes := r.Group("/api")

	apiRoutes.POST("/input", ctrl.PostInputHandler)

	dialogueRoutes := apiRoutes.Group("/dialogues")
	dialogueRoutes.POST("/new", ctrl.CreateDialogueHandler(""))
	for _, dt := range []domain.DialogueType{
		domain.DialogueTypeHumanAI, domain.DialogueTypeAISelf, domain.DialogueTypeAIAI,
		domain.DialogueTypeHumanHumanPrivate, domain.DialogueTypeHumanHumanGroup,
		domain.DialogueTypeHumanAIGroup, domain.DialogueTypeAIMultiHuman,
	} {
		dialogueRoutes.POST("/"+string(dt), ctrl.CreateDialogueHandler(dt))
	}
	dialogueRoutes.GET("", ctrl.ListDialoguesHandler)
	dialogueRoutes.GET("/:id", ctrl.GetDialogueHandler)
	dialogueRoutes.POST("/:id/close", ctrl.CloseDialogueHandler)

	queryRoutes := apiRoutes.Group("/query")
	queryRoutes.GET("/dialogues", ctrl.ListDialoguesHandler)
	queryRoutes.GET("/sessions", ctrl.QuerySessionsHandler)
	queryRoutes.GET("/turns", ctrl.QueryTurnsHandler)
	queryRoutes.GET("/messages", ctrl.QueryMessagesHandler)

	toolRoutes := apiRoutes.Group("/tools")
	toolRoutes.GET("", ctrl.ListToolsHandler)
	toolRoutes.POST("", ctrl.InvokeToolHandler)
	toolRoutes.GET("/categories", ctrl.ListToolCategoriesHandler)

	notifyRoutes := apiRoutes.Group("/notify")
	notifyRoutes.POST("/message", ctrl.NotifyMessageHandler)
	notifyRoutes.POST("/dialogue_update", ctrl.NotifyDialogueUpdateHandler)
	notifyRoutes.POST("/stream_response", ctrl.NotifyStreamResponseHandler)

	mediaRoutes := apiRoutes.Group("/media")
	mediaRoutes.POST("/upload", ctrl.UploadMediaHandler)
	mediaRoutes.POST("/upload/base64", ctrl.UploadMediaBase64Handler)
	r.GET("/media/:category/:filename", ctrl.ServeMediaHandler)

	introspectionRoutes := apiRoutes.Group("/introspection")
	introspectionRoutes.POST("/run", ctrl.RunIntrospectionHandler)
	introspectionRoutes.GET("/:id", ctrl.GetIntrospectionSessionHandler)

	r.GET("/ws", ctrl.WebsocketHandler)

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	return r
}

func errorStatus(err error) int {
	kind, ok := domain.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case domain.ErrNotFound, domain.ErrDialogueNotFound:
		return http.StatusNotFound
	case domain.ErrInvalidInput, domain.ErrInvalidReference, domain.ErrInvalidParameters, domain.ErrUnsupportedModality:
		return http.StatusBadRequest
	case domain.ErrDialogueClosed, domain.ErrTurnClosed:
		return http.StatusConflict
	case domain.ErrUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{"error": err.Error()})
}
