package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/inspeaker/smartlink/internal/middleware"
	"github.com/inspeaker/smartlink/internal/models"
	"github.com/inspeaker/smartlink/internal/repository"
	"github.com/inspeaker/smartlink/internal/service"
	"github.com/inspeaker/smartlink/internal/token"
	"go.uber.org/zap"
)

type CampaignHandler struct {
	service service.CampaignService
	baseURL string
	logger  *zap.Logger
}

func NewCampaignHandler(service service.CampaignService, baseURL string, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{
		service: service,
		baseURL: baseURL,
		logger:  logger,
	}
}

type RenameRequest struct {
	Name string `json:"name" binding:"required"`
}

type StatusRequest struct {
	Status models.GroupStatus `json:"status" binding:"required"`
}

type CreateSubgroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// LinkResponse ссылка вместе с публичной (маскированной) формой
type LinkResponse struct {
	*models.Link
	PublicURL string `json:"public_url"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateGroup godoc
// @Summary Create a campaign group
// @Description Create an unpublished group with N default subgroups in one transaction
// @Tags groups
// @Accept json
// @Produce json
// @Param request body models.CreateGroupInput true "Group creation request"
// @Success 201 {object} models.Group
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/groups [post]
func (h *CampaignHandler) CreateGroup(c *gin.Context) {
	var req models.CreateGroupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	group, err := h.service.CreateGroup(c.Request.Context(), req.Name, req.SubgroupCount, middleware.ActorFromContext(c))
	if err != nil {
		h.fail(c, err, "Failed to create group")
		return
	}

	c.JSON(http.StatusCreated, group)
}

// ListGroups godoc
// @Summary List groups with their full tree
// @Description Each group comes with its subgroups, each populated with links
// @Tags groups
// @Produce json
// @Success 200 {array} models.Group
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/groups [get]
func (h *CampaignHandler) ListGroups(c *gin.Context) {
	groups, err := h.service.ListGroups(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to list groups")
		return
	}

	c.JSON(http.StatusOK, groups)
}

// RenameGroup godoc
// @Summary Rename a group
// @Tags groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param request body RenameRequest true "New name"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/groups/{id} [put]
func (h *CampaignHandler) RenameGroup(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	if err := h.service.RenameGroup(c.Request.Context(), c.Param("id"), req.Name, middleware.ActorFromContext(c)); err != nil {
		h.fail(c, err, "Failed to rename group")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group renamed"})
}

// SetGroupStatus godoc
// @Summary Publish or unpublish a group
// @Description Transition the publish gate; published_at is stamped only on an actual transition
// @Tags groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param request body StatusRequest true "Target status"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/groups/{id}/status [put]
func (h *CampaignHandler) SetGroupStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	if err := h.service.SetGroupStatus(c.Request.Context(), c.Param("id"), req.Status, middleware.ActorFromContext(c)); err != nil {
		h.fail(c, err, "Failed to set group status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
}

// DeleteGroup godoc
// @Summary Delete a group with all descendants
// @Description Cascade delete of subgroups and links in one transaction
// @Tags groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/groups/{id} [delete]
func (h *CampaignHandler) DeleteGroup(c *gin.Context) {
	if err := h.service.DeleteGroup(c.Request.Context(), c.Param("id"), middleware.ActorFromContext(c)); err != nil {
		h.fail(c, err, "Failed to delete group")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group deleted"})
}

// CreateSubgroup godoc
// @Summary Create a subgroup inside a group
// @Tags subgroups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param request body CreateSubgroupRequest true "Subgroup name"
// @Success 201 {object} models.Subgroup
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/groups/{id}/subgroups [post]
func (h *CampaignHandler) CreateSubgroup(c *gin.Context) {
	var req CreateSubgroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	subgroup, err := h.service.CreateSubgroup(c.Request.Context(), c.Param("id"), req.Name, middleware.ActorFromContext(c))
	if err != nil {
		h.fail(c, err, "Failed to create subgroup")
		return
	}

	c.JSON(http.StatusCreated, subgroup)
}

// RenameSubgroup godoc
// @Summary Rename a subgroup
// @Tags subgroups
// @Accept json
// @Produce json
// @Param id path string true "Subgroup ID"
// @Param request body RenameRequest true "New name"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/subgroups/{id} [put]
func (h *CampaignHandler) RenameSubgroup(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	if err := h.service.RenameSubgroup(c.Request.Context(), c.Param("id"), req.Name, middleware.ActorFromContext(c)); err != nil {
		h.fail(c, err, "Failed to rename subgroup")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Subgroup renamed"})
}

// DeleteSubgroup godoc
// @Summary Delete a subgroup with its links
// @Tags subgroups
// @Produce json
// @Param id path string true "Subgroup ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/subgroups/{id} [delete]
func (h *CampaignHandler) DeleteSubgroup(c *gin.Context) {
	if err := h.service.DeleteSubgroup(c.Request.Context(), c.Param("id"), middleware.ActorFromContext(c)); err != nil {
		h.fail(c, err, "Failed to delete subgroup")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Subgroup deleted"})
}

// CreateLinks godoc
// @Summary Bulk-create links in a subgroup
// @Description Generate N links with fresh unique short codes
// @Tags links
// @Accept json
// @Produce json
// @Param id path string true "Subgroup ID"
// @Param request body models.CreateLinksInput true "Bulk creation request"
// @Success 201 {array} LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/subgroups/{id}/links [post]
func (h *CampaignHandler) CreateLinks(c *gin.Context) {
	var req models.CreateLinksInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	links, err := h.service.CreateLinks(c.Request.Context(), c.Param("id"), &req, middleware.ActorFromContext(c))
	if err != nil {
		h.fail(c, err, "Failed to create links")
		return
	}

	out := make([]LinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, LinkResponse{
			Link:      l,
			PublicURL: h.baseURL + "/l/" + token.Mask(l.ShortCode),
		})
	}

	c.JSON(http.StatusCreated, out)
}

// UpdateLink godoc
// @Summary Update a link
// @Tags links
// @Accept json
// @Produce json
// @Param id path string true "Link ID"
// @Param request body models.UpdateLinkInput true "Fields to update"
// @Success 200 {object} LinkResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{id} [put]
func (h *CampaignHandler) UpdateLink(c *gin.Context) {
	var req models.UpdateLinkInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	link, err := h.service.UpdateLink(c.Request.Context(), c.Param("id"), &req, middleware.ActorFromContext(c))
	if err != nil {
		h.fail(c, err, "Failed to update link")
		return
	}

	c.JSON(http.StatusOK, LinkResponse{
		Link:      link,
		PublicURL: h.baseURL + "/l/" + token.Mask(link.ShortCode),
	})
}

// DeleteLink godoc
// @Summary Delete a link
// @Tags links
// @Produce json
// @Param id path string true "Link ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{id} [delete]
func (h *CampaignHandler) DeleteLink(c *gin.Context) {
	if err := h.service.DeleteLink(c.Request.Context(), c.Param("id"), middleware.ActorFromContext(c)); err != nil {
		h.fail(c, err, "Failed to delete link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link deleted"})
}

// fail единое сопоставление ошибок сервиса в HTTP-ответы
func (h *CampaignHandler) fail(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, repository.ErrGroupNotFound),
		errors.Is(err, repository.ErrSubgroupNotFound),
		errors.Is(err, repository.ErrLinkNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Entity not found"})

	case errors.Is(err, service.ErrGroupPublished):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "group_published",
			Message: "Published groups are immutable; unpublish first",
		})

	case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})

	default:
		h.logger.Error(logMsg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: logMsg})
	}
}
