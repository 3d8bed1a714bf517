package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"campusconnect/internal/metrics"
	"campusconnect/internal/middleware"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/internal/service"
	"campusconnect/pkg/pinata"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// FilePinner stores uploaded resources on IPFS.
type FilePinner interface {
	PinFile(ctx context.Context, fileName string, content io.Reader, meta pinata.FileMetadata) (*pinata.PinResponse, error)
	FileURL(cid string) string
}

type ResourceHandler struct {
	repo      *repository.ResourceRepository
	groupRepo *repository.GroupRepository
	pinner    FilePinner
	notifier  *service.NotificationService
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewResourceHandler(
	repo *repository.ResourceRepository,
	groupRepo *repository.GroupRepository,
	pinner FilePinner,
	notifier *service.NotificationService,
	m *metrics.Metrics,
	log *zap.Logger,
) *ResourceHandler {
	return &ResourceHandler{repo: repo, groupRepo: groupRepo, pinner: pinner, notifier: notifier, metrics: m, log: log}
}

type resourceView struct {
	models.Resource
	URL string `json:"url"`
}

func (h *ResourceHandler) view(r models.Resource) resourceView {
	return resourceView{Resource: r, URL: h.pinner.FileURL(r.StorageHash)}
}

// List supports ?group_id=, ?search=, ?course=, ?professor= and ?topic=.
func (h *ResourceHandler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context(), repository.ResourceFilters{
		GroupID:   c.Query("group_id"),
		Search:    c.Query("search"),
		Course:    c.Query("course"),
		Professor: c.Query("professor"),
		Topic:     c.Query("topic"),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	out := make([]resourceView, len(list))
	for i, r := range list {
		out[i] = h.view(r)
	}
	c.JSON(http.StatusOK, gin.H{"resources": out})
}

// Upload pins a multipart file to IPFS and records it as a group resource.
// Form fields: file, group_id, description, course, professor, topic.
func (h *ResourceHandler) Upload(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	groupID := c.PostForm("group_id")
	if groupID == "" {
		badRequest(c, "group_id required")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file required")
		return
	}
	if file.Size > pinata.MaxFileSize {
		h.metrics.PinOutcome(metrics.OutcomeRejected)
		respondError(c, h.log, pinata.ErrFileTooLarge)
		return
	}
	g, err := h.groupRepo.Get(ctx, groupID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	f, err := file.Open()
	if err != nil {
		badRequest(c, "could not read file")
		return
	}
	defer f.Close()
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		badRequest(c, "could not read file")
		return
	}
	head = head[:n]
	contentType := pinata.DetectContentType(head, file.Header.Get("Content-Type"))
	if err := pinata.ValidateFile(file.Size, contentType); err != nil {
		h.metrics.PinOutcome(metrics.OutcomeRejected)
		respondError(c, h.log, err)
		return
	}

	tags := models.ResourceTags{
		Course:    strings.TrimSpace(c.PostForm("course")),
		Professor: strings.TrimSpace(c.PostForm("professor")),
		Topic:     strings.TrimSpace(c.PostForm("topic")),
	}
	description := c.PostForm("description")
	pin, err := h.pinner.PinFile(ctx, file.Filename, io.MultiReader(bytes.NewReader(head), f), pinata.FileMetadata{
		Name:        file.Filename,
		Description: description,
		Course:      tags.Course,
		Professor:   tags.Professor,
		Topic:       tags.Topic,
		ContentType: contentType,
		Size:        file.Size,
	})
	if err != nil {
		h.metrics.PinOutcome(metrics.OutcomeFailed)
		h.log.Error("pin failed", zap.String("user_id", userID), zap.String("file", file.Filename), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to upload file to IPFS"})
		return
	}
	h.metrics.PinOutcome(metrics.OutcomeUploaded)

	res := &models.Resource{
		GroupID:     g.ID,
		UploadedBy:  userID,
		FileName:    file.Filename,
		StorageHash: pin.IpfsHash,
		Tags:        datatypes.NewJSONType(tags),
		Description: description,
	}
	if err := h.repo.Create(ctx, res); err != nil {
		h.log.Error("resource not recorded after pin", zap.String("cid", pin.IpfsHash), zap.Error(err))
		respondError(c, h.log, err)
		return
	}
	h.notifier.NotifyResourceShared(ctx, g, res)
	c.JSON(http.StatusCreated, gin.H{"resource": h.view(*res)})
}

// Download counts a download and returns the gateway URL.
func (h *ResourceHandler) Download(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.repo.IncrementDownloadCount(ctx, id); err != nil {
		respondError(c, h.log, err)
		return
	}
	r, err := h.repo.Get(ctx, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": h.pinner.FileURL(r.StorageHash), "download_count": r.DownloadCount})
}
