package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/project"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/utils"
)

// FilePayload is one file in a project write
type FilePayload struct {
	Path     string         `json:"path" binding:"required"`
	Content  string         `json:"content"`
	Language types.Language `json:"language,omitempty"`
}

// ProjectPayload replaces a project's title and files
type ProjectPayload struct {
	Title string        `json:"title"`
	Files []FilePayload `json:"files"`
}

// ListProjects lists project metadata
func (h *Handlers) ListProjects(c *gin.Context) {
	projects, err := h.store.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects, "count": len(projects)})
}

// GetProject returns a project with its files
func (h *Handlers) GetProject(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	p, err := h.store.Get(c.Request.Context(), projectID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// PutProject replaces the title and files of a project and notifies
// live previews
func (h *Handlers) PutProject(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	var req ProjectPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p := &types.Project{ID: projectID, Title: strings.TrimSpace(req.Title), Files: make([]types.SourceFile, len(req.Files))}
	for i, f := range req.Files {
		lang := f.Language
		if lang == "" {
			lang = types.LanguageFromPath(f.Path)
		}
		p.Files[i] = types.SourceFile{Path: f.Path, Content: f.Content, Language: lang}
	}
	if err := utils.ValidateProject(p); err != nil {
		badRequest(c, err)
		return
	}

	h.save(c, p)
}

// ImportProject replaces a project with the contents of a tar archive,
// plain or gzip/zstd compressed
func (h *Handlers) ImportProject(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	body := http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxProjectSize)
	p, err := project.Import(body, projectID)
	if err != nil {
		badRequest(c, err)
		return
	}
	h.save(c, p)
}

// ExportProject streams a project as an archive. ?format= selects gzip
// (default), zstd or none.
func (h *Handlers) ExportProject(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	format, err := project.ParseCompression(c.Query("format"))
	if err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.store.Get(c.Request.Context(), projectID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", `attachment; filename="`+projectID+format.Extension()+`"`)
	c.Status(http.StatusOK)
	if err := project.Export(c.Writer, p, format); err != nil {
		h.logger.Warn("Export interrupted", zap.String("project_id", projectID), zap.Error(err))
	}
}

func (h *Handlers) save(c *gin.Context, p *types.Project) {
	if err := h.store.Put(c.Request.Context(), p); err != nil {
		h.fail(c, err)
		return
	}
	h.previews.Invalidate(p.ID)
	notified := 0
	if h.notifier != nil {
		notified = h.notifier.FilesChanged(p.ID)
	}

	h.logger.Info("Project saved",
		zap.String("project_id", p.ID),
		zap.Int("files", len(p.Files)),
		zap.Int("notified", notified))
	c.JSON(http.StatusOK, gin.H{"project": p.ToMetadata(), "notified": notified})
}

// DeleteProject removes a project
func (h *Handlers) DeleteProject(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), projectID); err != nil {
		h.fail(c, err)
		return
	}
	h.previews.Invalidate(projectID)
	c.JSON(http.StatusOK, gin.H{"success": true, "project_id": projectID})
}

func projectParam(c *gin.Context) (string, bool) {
	projectID := c.Param("id")
	if err := utils.ValidateID(projectID, "project_id", true); err != nil {
		badRequest(c, err)
		return "", false
	}
	return projectID, true
}
