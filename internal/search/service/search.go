package service

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/ai-search-dispatcher/internal/pkg/logger"
	"github.com/lk2023060901/ai-search-dispatcher/internal/pkg/response"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/biz"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

type SearchService struct {
	dispatcher *biz.Dispatcher
}

func NewSearchService(dispatcher *biz.Dispatcher) *SearchService {
	return &SearchService{dispatcher: dispatcher}
}

// SearchRequest is the POST /search body. Option fields left out of the
// body stay unset and do not override the preset.
type SearchRequest struct {
	Query       string             `json:"query" binding:"required"`
	MaxTokens   types.Opt[int]     `json:"max_tokens"`
	Temperature types.Opt[float64] `json:"temperature"`
	Preset      string             `json:"preset"`
	Academic    bool               `json:"academic"`
	Pro         bool               `json:"pro"`
	Mode        string             `json:"mode"`
	BestEffort  bool               `json:"best_effort"`

	types.Options
}

// PresetResponse describes one built-in preset
type PresetResponse struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Options     types.Options `json:"options"`
}

// BackendResponse describes one configured backend
type BackendResponse struct {
	ID           types.BackendID    `json:"id"`
	Name         string             `json:"name"`
	Ready        bool               `json:"ready"`
	Capabilities []types.Capability `json:"capabilities"`
}

func (s *SearchService) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/search", s.Search)
	r.GET("/presets", s.ListPresets)
	r.GET("/backends", s.ListBackends)
}

func (s *SearchService) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	in := &biz.SearchRequest{
		Query: types.SearchQuery{
			Text:        req.Query,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		},
		Preset:    req.Preset,
		Shortcuts: types.Shortcuts{Academic: req.Academic, Pro: req.Pro},
		Options:   req.Options,
		Mode:      req.Mode,
	}
	if req.BestEffort {
		in.Policy = types.PolicyBestEffort
	}

	ctx := c.Request.Context()
	result := s.dispatcher.Search(ctx, in)
	if !result.Success {
		// request-scoped logger installed by the logging middleware
		logger.FromContext(ctx).Named("search-service").Info("search unsuccessful",
			zap.String("kind", string(result.Error.Kind)),
			zap.Int("code", result.Error.Code),
		)
		response.Failure(c, result.Error.Code, result.Error.Message, result)
		return
	}

	response.Success(c, result)
}

func (s *SearchService) ListPresets(c *gin.Context) {
	presets := s.dispatcher.Presets().All()
	out := make([]PresetResponse, 0, len(presets))
	for _, p := range presets {
		out = append(out, PresetResponse{Name: p.Name, Description: p.Description, Options: p.Options})
	}
	response.Success(c, gin.H{"presets": out})
}

func (s *SearchService) ListBackends(c *gin.Context) {
	descs := s.dispatcher.Backends()
	out := make([]BackendResponse, 0, len(descs))
	for _, d := range descs {
		out = append(out, BackendResponse{
			ID:           d.ID,
			Name:         d.Name,
			Ready:        d.Ready(),
			Capabilities: d.Capabilities.List(),
		})
	}
	response.Success(c, gin.H{"backends": out})
}
